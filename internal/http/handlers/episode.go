package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/discovery"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
)

// EpisodeHandler exposes the episode registry: a synchronous discovery
// scan, single/paginated reads, and deletion.
type EpisodeHandler struct {
	episodes  repository.EpisodeRepository
	discovery *discovery.Service
	logger    *slog.Logger
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(episodes repository.EpisodeRepository, discoverySvc *discovery.Service) *EpisodeHandler {
	return &EpisodeHandler{episodes: episodes, discovery: discoverySvc, logger: slog.Default()}
}

// WithLogger sets the logger used for the handler.
func (h *EpisodeHandler) WithLogger(logger *slog.Logger) *EpisodeHandler {
	h.logger = logger
	return h
}

// Register registers the episode routes with the API.
func (h *EpisodeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "discoverEpisodes",
		Method:      "POST",
		Path:        "/api/v1/episodes/discover",
		Summary:     "Scan for new episodes",
		Description: "Walks the configured source tree and registers any new or moved files; idempotent on repeated calls",
		Tags:        []string{"Episodes"},
	}, h.DiscoverEpisodes)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisode",
		Method:      "GET",
		Path:        "/api/v1/episodes/{episode_id}",
		Summary:     "Get an episode",
		Tags:        []string{"Episodes"},
	}, h.GetEpisode)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      "GET",
		Path:        "/api/v1/episodes",
		Summary:     "List episodes",
		Tags:        []string{"Episodes"},
	}, h.ListEpisodes)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteEpisode",
		Method:        "DELETE",
		Path:          "/api/v1/episodes/{episode_id}",
		Summary:       "Delete an episode",
		Description:   "Cascades to clips, clip assets, and the processing log; never touches on-disk artifacts",
		Tags:          []string{"Episodes"},
		DefaultStatus: 204,
	}, h.DeleteEpisode)
}

// EpisodeResponse is the wire representation of an Episode.
type EpisodeResponse struct {
	ID              string                  `json:"id"`
	EpisodeID       string                  `json:"episode_id"`
	ContentHash     string                  `json:"content_hash"`
	SourcePath      string                  `json:"source_path"`
	FileSize        int64                   `json:"file_size"`
	DurationSeconds int                     `json:"duration_seconds"`
	Stage           string                  `json:"stage"`
	Metadata        models.EpisodeMetadata  `json:"metadata"`
	Error           string                  `json:"error,omitempty"`
}

func episodeResponse(e *models.Episode) EpisodeResponse {
	metadata, _ := e.GetMetadata()
	return EpisodeResponse{
		ID:              e.ID.String(),
		EpisodeID:       e.EpisodeID,
		ContentHash:     e.ContentHash,
		SourcePath:      e.SourcePath,
		FileSize:        e.FileSize,
		DurationSeconds: e.DurationSeconds,
		Stage:           string(e.Stage),
		Metadata:        metadata,
		Error:           e.Error,
	}
}

// DiscoverEpisodesInput is the (empty) input for the discovery scan.
type DiscoverEpisodesInput struct{}

// DiscoverEpisodesOutput is the output of a discovery scan.
type DiscoverEpisodesOutput struct {
	Body struct {
		New       int               `json:"new"`
		Unchanged int               `json:"unchanged"`
		Moved     int               `json:"moved"`
		Skipped   int               `json:"skipped"`
		Episodes  []EpisodeResponse `json:"episodes"`
	}
}

// DiscoverEpisodes runs a synchronous source-tree scan. Source trees
// large enough to exceed the HTTP request lifetime should instead rely
// on JobQueueConfig.DiscoverySchedule's recurring background scan.
func (h *EpisodeHandler) DiscoverEpisodes(ctx context.Context, input *DiscoverEpisodesInput) (*DiscoverEpisodesOutput, error) {
	result, err := h.discovery.Scan(ctx, nil)
	if err != nil {
		return nil, mapAppError(err)
	}

	out := &DiscoverEpisodesOutput{}
	out.Body.New = result.New
	out.Body.Unchanged = result.Unchanged
	out.Body.Moved = result.Moved
	out.Body.Skipped = result.Skipped
	out.Body.Episodes = make([]EpisodeResponse, 0, len(result.NewEpisodes))
	for _, e := range result.NewEpisodes {
		out.Body.Episodes = append(out.Body.Episodes, episodeResponse(e))
	}
	return out, nil
}

// GetEpisodeInput is the input for fetching a single episode.
type GetEpisodeInput struct {
	EpisodeID string `path:"episode_id"`
}

// GetEpisodeOutput is the output for fetching a single episode.
type GetEpisodeOutput struct {
	Body EpisodeResponse
}

// GetEpisode returns a single episode by its canonical episode_id.
func (h *EpisodeHandler) GetEpisode(ctx context.Context, input *GetEpisodeInput) (*GetEpisodeOutput, error) {
	episode, err := h.episodes.GetByEpisodeID(ctx, input.EpisodeID)
	if err != nil {
		return nil, mapAppError(err)
	}
	return &GetEpisodeOutput{Body: episodeResponse(episode)}, nil
}

// ListEpisodesInput is the input for listing episodes.
type ListEpisodesInput struct {
	Stage string `query:"stage"`
	Show  string `query:"show"`
	Page  int    `query:"page" default:"1" minimum:"1"`
	Limit int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

// ListEpisodesOutput is the output for listing episodes.
type ListEpisodesOutput struct {
	Body struct {
		Items []EpisodeResponse `json:"items"`
		Total int64             `json:"total"`
		Page  int               `json:"page"`
		Limit int               `json:"limit"`
	}
}

// ListEpisodes returns a paginated, optionally stage/show-filtered list
// of episodes.
func (h *EpisodeHandler) ListEpisodes(ctx context.Context, input *ListEpisodesInput) (*ListEpisodesOutput, error) {
	filter := repository.EpisodeFilter{
		Show:   input.Show,
		Limit:  input.Limit,
		Offset: (input.Page - 1) * input.Limit,
	}
	if input.Stage != "" {
		stage := models.EpisodeStage(input.Stage)
		if !stage.IsValid() {
			return nil, mapAppError(&apperr.ValidationError{Field: "stage", Message: "unknown stage"})
		}
		filter.Stage = &stage
	}

	episodes, total, err := h.episodes.ListEpisodes(ctx, filter)
	if err != nil {
		return nil, mapAppError(err)
	}

	out := &ListEpisodesOutput{}
	out.Body.Items = make([]EpisodeResponse, 0, len(episodes))
	for _, e := range episodes {
		out.Body.Items = append(out.Body.Items, episodeResponse(e))
	}
	out.Body.Total = total
	out.Body.Page = input.Page
	out.Body.Limit = input.Limit
	return out, nil
}

// DeleteEpisodeInput is the input for deleting an episode.
type DeleteEpisodeInput struct {
	EpisodeID string `path:"episode_id"`
}

// DeleteEpisodeOutput is the (empty) output for a successful deletion.
type DeleteEpisodeOutput struct{}

// DeleteEpisode removes an episode and its clips/assets/log rows.
func (h *EpisodeHandler) DeleteEpisode(ctx context.Context, input *DeleteEpisodeInput) (*DeleteEpisodeOutput, error) {
	episode, err := h.episodes.GetByEpisodeID(ctx, input.EpisodeID)
	if err != nil {
		return nil, mapAppError(err)
	}
	if err := h.episodes.DeleteEpisode(ctx, episode.ID); err != nil {
		return nil, mapAppError(err)
	}
	return &DeleteEpisodeOutput{}, nil
}
