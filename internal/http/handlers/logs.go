package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/episoded/episoded/internal/service/logs"
)

// LogsHandler exposes the in-memory log tail service: a snapshot/stats
// read over the REST API, and a live tail over SSE for an operator
// watching a run in progress.
type LogsHandler struct {
	service *logs.Service
}

// NewLogsHandler creates a new logs handler.
func NewLogsHandler(service *logs.Service) *LogsHandler {
	return &LogsHandler{service: service}
}

// Register registers the logs routes with the API.
func (h *LogsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getRecentLogs",
		Method:      "GET",
		Path:        "/api/v1/logs",
		Summary:     "Get recent log entries",
		Description: "Returns the most recent in-memory log entries, newest last",
		Tags:        []string{"System"},
	}, h.GetRecentLogs)

	huma.Register(api, huma.Operation{
		OperationID: "getLogStats",
		Method:      "GET",
		Path:        "/api/v1/logs/stats",
		Summary:     "Get log statistics",
		Description: "Returns counts by level and module, recent errors, and the current log rate",
		Tags:        []string{"System"},
	}, h.GetStats)
}

// RegisterSSE registers the live log tail endpoint directly on the
// router, since huma has no streaming response support.
func (h *LogsHandler) RegisterSSE(router chi.Router) {
	router.Get("/api/v1/logs/stream", h.stream)
}

// GetRecentLogsInput is the input for fetching recent log entries.
type GetRecentLogsInput struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"1000"`
}

// GetRecentLogsOutput is the output for fetching recent log entries.
type GetRecentLogsOutput struct {
	Body struct {
		Entries []logs.LogEntry `json:"entries"`
	}
}

// GetRecentLogs returns the most recent log entries.
func (h *LogsHandler) GetRecentLogs(ctx context.Context, input *GetRecentLogsInput) (*GetRecentLogsOutput, error) {
	out := &GetRecentLogsOutput{}
	out.Body.Entries = h.service.GetRecentLogs(input.Limit)
	return out, nil
}

// GetLogStatsInput is the (empty) input for fetching log statistics.
type GetLogStatsInput struct{}

// GetLogStatsOutput is the output for fetching log statistics.
type GetLogStatsOutput struct {
	Body logs.LogStats
}

// GetStats returns current log statistics.
func (h *LogsHandler) GetStats(ctx context.Context, input *GetLogStatsInput) (*GetLogStatsOutput, error) {
	return &GetLogStatsOutput{Body: h.service.GetStats()}, nil
}

// stream writes newline-delimited SSE "log" events for every entry
// captured from here on, plus a periodic heartbeat so proxies don't
// time out an idle connection.
func (h *LogsHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.service.Subscribe(r.Context())
	defer h.service.Unsubscribe(sub.ID)

	heartbeat := time.NewTicker(logs.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case entry, open := <-sub.Events:
			if !open {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
