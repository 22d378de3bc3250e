// Package config provides configuration management for episoded using
// Viper. It supports configuration from files, environment variables,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/pathresolve"
)

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultMaxOpenConns          = 25
	defaultMaxIdleConns          = 10
	defaultConnMaxIdleTime       = 30 * time.Minute
	defaultMaxWorkers            = 2
	defaultQueueCapacity         = 100
	defaultStuckCheckInterval    = 60 * time.Second
	defaultWebhookMaxAttempts    = 3
	defaultWebhookBaseDelay      = time.Second
	defaultWebhookMaxDelay       = 16 * time.Second
	defaultWebhookTimeout        = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	JobQueue  JobQueueConfig  `mapstructure:"job_queue"`
	Naming    NamingConfig    `mapstructure:"naming"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Clips     ClipConfig      `mapstructure:"clips"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration: the ArtifactStore
// root (BaseDir) plus the mount aliases PathResolver uses to translate
// caller-supplied paths (e.g. a container path) to this host's view of
// the same file.
type StorageConfig struct {
	BaseDir      string             `mapstructure:"base_dir"`
	OutputDir    string             `mapstructure:"output_dir"`
	TempDir      string             `mapstructure:"temp_dir"`
	MountAliases []MountAliasConfig `mapstructure:"mount_aliases"`

	// MinFreeSpace is the low-watermark free space on BaseDir: on each
	// of its ticks, CleanupManager reclaims finished episodes' bulk media
	// while free space is below it. Supports human-readable values like "5GB".
	MinFreeSpace ByteSize `mapstructure:"min_free_space"`
}

// MountAliasConfig maps a path prefix supplied by a caller (e.g. a
// container mount point) to the equivalent prefix on this host, per
// PathResolver.
type MountAliasConfig struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// Aliases converts the configured mount aliases into pathresolve.Alias values.
func (s *StorageConfig) Aliases() []pathresolve.Alias {
	out := make([]pathresolve.Alias, 0, len(s.MountAliases))
	for _, a := range s.MountAliases {
		out = append(out, pathresolve.Alias{From: a.From, To: a.To})
	}
	return out
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// JobQueueConfig controls the in-memory job queue's worker pool,
// per-stage progress weighting, stuck-job detection, and webhook
// delivery policy.
type JobQueueConfig struct {
	MaxWorkers    int                      `mapstructure:"max_workers"`
	QueueCapacity int                      `mapstructure:"queue_capacity"`
	StageWeights  map[string]float64       `mapstructure:"stage_weights"`
	StageTimeouts map[string]time.Duration `mapstructure:"stage_timeouts"`
	StuckCheckInterval time.Duration       `mapstructure:"stuck_check_interval"`
	Webhook       WebhookConfig            `mapstructure:"webhook"`
	DiscoverySchedule string               `mapstructure:"discovery_schedule"` // optional cron expression for recurring DiscoverEpisodes
}

// WebhookConfig controls retry/backoff/circuit-breaking behavior for
// job-completion webhook delivery.
type WebhookConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// NamingConfig controls NamingService construction.
type NamingConfig struct {
	// ShowMappingsFile is a YAML file of show_mappings entries, loaded
	// once at startup into naming.Service. Optional; an empty/missing
	// file leaves NamingService with only its slugify fallback.
	ShowMappingsFile string `mapstructure:"show_mappings_file"`
}

// DiscoveryConfig controls the filesystem scan that finds new episode files.
type DiscoveryConfig struct {
	Extensions []string `mapstructure:"extensions"`
}

// ClipConfig bounds the inline clip-candidate discovery operation,
// passed straight through to collaborator.ClipSegmenter.
type ClipConfig struct {
	MaxClips    int     `mapstructure:"max_clips"`
	MinDuration float64 `mapstructure:"min_duration_seconds"`
	MaxDuration float64 `mapstructure:"max_duration_seconds"`
	Threshold   float64 `mapstructure:"threshold"`
}

// CleanupConfig controls CleanupManager's retention policy for
// JobHistory rows and orphaned partial artifacts.
type CleanupConfig struct {
	// HistoryRetention is how long a terminal JobHistory row is kept
	// before CleanupManager deletes it. Supports human-readable values
	// like "30d" or "2w".
	HistoryRetention Duration `mapstructure:"history_retention"`
	Interval         time.Duration `mapstructure:"interval"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with EPISODED_ and use
// underscores for nesting. Example: EPISODED_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/episoded")
		v.AddConfigPath("$HOME/.episoded")
	}

	// Environment variable settings
	v.SetEnvPrefix("EPISODED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "episoded.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.min_free_space", int64(5*1024*1024*1024)) // 5GB

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Job queue defaults
	v.SetDefault("job_queue.max_workers", defaultMaxWorkers)
	v.SetDefault("job_queue.queue_capacity", defaultQueueCapacity)
	v.SetDefault("job_queue.stage_weights", map[string]float64{
		"transcribed":      0.55,
		"enriched":         0.30,
		"rendered":         0.05,
		"clips_discovered": 0.10,
	})
	v.SetDefault("job_queue.stage_timeouts", map[string]time.Duration{
		"transcribed":      20 * time.Minute,
		"enriched":         10 * time.Minute,
		"rendered":         15 * time.Minute,
		"clips_discovered": 5 * time.Minute,
	})
	v.SetDefault("job_queue.stuck_check_interval", defaultStuckCheckInterval)
	v.SetDefault("job_queue.discovery_schedule", "")
	v.SetDefault("job_queue.webhook.max_attempts", defaultWebhookMaxAttempts)
	v.SetDefault("job_queue.webhook.base_delay", defaultWebhookBaseDelay)
	v.SetDefault("job_queue.webhook.max_delay", defaultWebhookMaxDelay)
	v.SetDefault("job_queue.webhook.timeout", defaultWebhookTimeout)

	// Naming defaults
	v.SetDefault("naming.show_mappings_file", "")

	// Discovery defaults
	v.SetDefault("discovery.extensions", []string{".mp4", ".mkv", ".mov"})

	// Cleanup defaults
	v.SetDefault("cleanup.history_retention", "30d")
	v.SetDefault("cleanup.interval", time.Hour)

	// Clip discovery defaults
	v.SetDefault("clips.max_clips", 10)
	v.SetDefault("clips.min_duration_seconds", 15.0)
	v.SetDefault("clips.max_duration_seconds", 60.0)
	v.SetDefault("clips.threshold", 0.5)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Job queue validation
	if c.JobQueue.MaxWorkers < 1 {
		return fmt.Errorf("job_queue.max_workers must be at least 1")
	}
	if c.JobQueue.QueueCapacity < 1 {
		return fmt.Errorf("job_queue.queue_capacity must be at least 1")
	}
	if c.JobQueue.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("job_queue.webhook.max_attempts must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}

// showMappingsFile is the on-disk YAML shape for NamingConfig.ShowMappingsFile.
type showMappingsFile struct {
	ShowMappings []struct {
		CanonicalFolder string   `yaml:"canonical_folder"`
		Variants        []string `yaml:"variants"`
	} `yaml:"show_mappings"`
}

// LoadShowMappings reads the configured show_mappings YAML file, if
// any, into the format naming.New expects. A missing or empty path
// returns an empty, non-error result: NamingService still works via
// its slugify fallback.
func (c *NamingConfig) LoadShowMappings() ([]naming.ShowMapping, error) {
	if c.ShowMappingsFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.ShowMappingsFile)
	if err != nil {
		return nil, fmt.Errorf("reading show mappings file: %w", err)
	}

	var parsed showMappingsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing show mappings file: %w", err)
	}

	mappings := make([]naming.ShowMapping, 0, len(parsed.ShowMappings))
	for _, m := range parsed.ShowMappings {
		mappings = append(mappings, naming.ShowMapping{
			CanonicalFolder: m.CanonicalFolder,
			Variants:        m.Variants,
		})
	}
	return mappings, nil
}

// ResolvedStageWeights converts the configured per-stage progress
// weights into the models.EpisodeStage-keyed map core.Orchestrator
// expects, dropping any key that is not a recognized stage.
func (c *JobQueueConfig) ResolvedStageWeights() map[models.EpisodeStage]float64 {
	return resolveStageMap(c.StageWeights)
}

// ResolvedStageTimeouts converts the configured per-stage timeouts
// into the models.EpisodeStage-keyed map the stuck-job detector
// expects.
func (c *JobQueueConfig) ResolvedStageTimeouts() map[models.EpisodeStage]time.Duration {
	out := make(map[models.EpisodeStage]time.Duration, len(c.StageTimeouts))
	for k, v := range c.StageTimeouts {
		out[models.EpisodeStage(k)] = v
	}
	return out
}

func resolveStageMap(in map[string]float64) map[models.EpisodeStage]float64 {
	out := make(map[models.EpisodeStage]float64, len(in))
	for k, v := range in {
		out[models.EpisodeStage(k)] = v
	}
	return out
}
