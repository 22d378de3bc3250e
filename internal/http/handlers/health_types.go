package handlers

// HealthResponse is the body of the /health endpoint.
type HealthResponse struct {
	// OK, ActiveJobs and QueueSize are the minimal fields a caller
	// polling for liveness needs; everything else is diagnostic detail.
	OK         bool `json:"ok"`
	ActiveJobs int  `json:"active_jobs"`
	QueueSize  int  `json:"queue_size"`

	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	SystemLoad    float64           `json:"system_load"`
	CPUInfo       CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Disk          DiskInfo          `json:"disk"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo summarizes host CPU load.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo summarizes host and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB     float64           `json:"total_memory_mb"`
	UsedMemoryMB      float64           `json:"used_memory_mb"`
	FreeMemoryMB      float64           `json:"free_memory_mb"`
	AvailableMemoryMB float64           `json:"available_memory_mb"`
	SwapTotalMB       float64           `json:"swap_total_mb"`
	SwapUsedMB        float64           `json:"swap_used_mb"`
	ProcessMemory     ProcessMemoryInfo `json:"process"`
}

// ProcessMemoryInfo summarizes this process's (and children's) RSS.
type ProcessMemoryInfo struct {
	MainProcessMB       float64 `json:"main_process_mb"`
	ChildProcessesMB    float64 `json:"child_processes_mb"`
	TotalProcessTreeMB  float64 `json:"total_process_tree_mb"`
	ChildProcessCount   int     `json:"child_process_count"`
	PercentageOfSystem  float64 `json:"percentage_of_system"`
}

// DiskInfo reports free space on the ArtifactStore root, so an operator
// can see at a glance whether the next render is likely to fit.
type DiskInfo struct {
	Path        string  `json:"path,omitempty"`
	TotalBytes  uint64  `json:"total_bytes,omitempty"`
	FreeBytes   uint64  `json:"free_bytes,omitempty"`
	Total       string  `json:"total,omitempty"`
	Free        string  `json:"free,omitempty"`
	UsedPercent float64 `json:"used_percent,omitempty"`
	Used        string  `json:"used,omitempty"`
	Unavailable bool    `json:"unavailable,omitempty"`
}

// HealthComponents breaks health down by subsystem.
type HealthComponents struct {
	Database        DatabaseHealth          `json:"database"`
	Scheduler       SchedulerHealth         `json:"scheduler"`
	CircuitBreakers []CircuitBreakerStatus  `json:"circuit_breakers,omitempty"`
}

// DatabaseHealth reports connection pool and responsiveness state.
type DatabaseHealth struct {
	Status                 string  `json:"status"`
	TablesAccessible        bool    `json:"tables_accessible"`
	WriteCapability         bool    `json:"write_capability"`
	NoBlockingLocks         bool    `json:"no_blocking_locks"`
	ResponseTimeMS          float64 `json:"response_time_ms"`
	ResponseTimeStatus      string  `json:"response_time_status"`
	ConnectionPoolSize      int     `json:"connection_pool_size"`
	ActiveConnections       int     `json:"active_connections"`
	IdleConnections         int     `json:"idle_connections"`
	PoolUtilizationPercent  float64 `json:"pool_utilization_percent"`
}

// SchedulerHealth reports the job queue worker pool's health.
type SchedulerHealth struct {
	Status string `json:"status"`
}

// CircuitBreakerStatus mirrors pkg/httpclient.CircuitBreakerStatus for
// the handlers package's JSON response, avoiding a cross-package type
// leak into the OpenAPI schema.
type CircuitBreakerStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}
