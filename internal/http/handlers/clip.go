package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/config"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
)

// ClipHandler exposes inline clip-candidate discovery. Rendering
// selected candidates is a separate, asynchronous operation (see
// JobHandler.SubmitRenderClipsJob) since encoding is the slow part;
// discovery itself is expected to complete well within a request.
type ClipHandler struct {
	episodes  repository.EpisodeRepository
	clips     repository.ClipRepository
	segmenter collaborator.ClipSegmenter
	defaults  config.ClipConfig
	logger    *slog.Logger
}

// NewClipHandler creates a new clip handler.
func NewClipHandler(episodes repository.EpisodeRepository, clips repository.ClipRepository, segmenter collaborator.ClipSegmenter, defaults config.ClipConfig) *ClipHandler {
	return &ClipHandler{episodes: episodes, clips: clips, segmenter: segmenter, defaults: defaults, logger: slog.Default()}
}

// WithLogger sets the logger used for the handler.
func (h *ClipHandler) WithLogger(logger *slog.Logger) *ClipHandler {
	h.logger = logger
	return h
}

// Register registers the clip routes with the API.
func (h *ClipHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "discoverClips",
		Method:      "POST",
		Path:        "/api/v1/episodes/{episode_id}/clips/discover",
		Summary:     "Discover clip candidates",
		Description: "Runs the segmentation collaborator over the episode's transcript inline and persists the resulting candidates",
		Tags:        []string{"Clips"},
	}, h.DiscoverClips)
}

// ClipResponse is the wire representation of a Clip.
type ClipResponse struct {
	ID         string              `json:"id"`
	EpisodeID  string              `json:"episode_id"`
	StartMs    int64               `json:"start_ms"`
	EndMs      int64               `json:"end_ms"`
	DurationMs int64               `json:"duration_ms"`
	Score      float64             `json:"score"`
	Status     string              `json:"status"`
	Metadata   models.ClipMetadata `json:"metadata"`
}

func clipResponse(c *models.Clip) ClipResponse {
	metadata, _ := c.GetMetadata()
	return ClipResponse{
		ID:         c.ID.String(),
		EpisodeID:  c.EpisodeID.String(),
		StartMs:    c.StartMs,
		EndMs:      c.EndMs,
		DurationMs: c.DurationMs,
		Score:      c.Score,
		Status:     string(c.Status),
		Metadata:   metadata,
	}
}

// ClipDiscoveryOptions overrides the configured clip-discovery
// defaults for a single request; zero values fall back to defaults.
type ClipDiscoveryOptions struct {
	MaxClips    int     `json:"max_clips,omitempty"`
	MinDuration float64 `json:"min_duration_seconds,omitempty"`
	MaxDuration float64 `json:"max_duration_seconds,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// DiscoverClipsInput is the input for discovering clip candidates.
type DiscoverClipsInput struct {
	EpisodeID string `path:"episode_id"`
	Body      ClipDiscoveryOptions
}

// DiscoverClipsOutput is the output of a clip discovery request.
type DiscoverClipsOutput struct {
	Body struct {
		Clips []ClipResponse `json:"clips"`
	}
}

// DiscoverClips requires the episode to already carry a transcript
// (stage >= transcribed); it does not submit or wait on a pipeline job.
func (h *ClipHandler) DiscoverClips(ctx context.Context, input *DiscoverClipsInput) (*DiscoverClipsOutput, error) {
	episode, err := h.episodes.GetByEpisodeID(ctx, input.EpisodeID)
	if err != nil {
		return nil, mapAppError(err)
	}
	if !episode.Stage.AtLeast(models.StageTranscribed) {
		return nil, mapAppError(&apperr.ValidationError{Field: "episode_id", Message: "episode has no transcript yet"})
	}

	var transcript collaborator.Transcript
	if err := episode.GetTranscription(&transcript); err != nil {
		return nil, mapAppError(&apperr.ArtifactIOError{Path: "transcription", Cause: err})
	}

	cfg := h.resolveConfig(input.Body)

	candidates, err := h.segmenter.DiscoverClips(ctx, transcript, cfg, nil)
	if err != nil {
		return nil, mapAppError(&apperr.CollaboratorError{Stage: "discover_clips", Cause: err})
	}

	clipRows := make([]*models.Clip, 0, len(candidates))
	for _, cand := range candidates {
		clip := &models.Clip{
			EpisodeID: episode.ID,
			StartMs:   cand.StartMs,
			EndMs:     cand.EndMs,
			Score:     cand.Score,
			Status:    models.ClipStatusDiscovered,
		}
		if err := clip.SetMetadata(models.ClipMetadata{Title: cand.Title, Caption: cand.Caption, Hashtags: cand.Hashtags}); err != nil {
			return nil, mapAppError(err)
		}
		clipRows = append(clipRows, clip)
	}
	if len(clipRows) > 0 {
		if err := h.clips.CreateBatch(ctx, clipRows); err != nil {
			return nil, mapAppError(err)
		}
	}

	out := &DiscoverClipsOutput{}
	out.Body.Clips = make([]ClipResponse, 0, len(clipRows))
	for _, c := range clipRows {
		out.Body.Clips = append(out.Body.Clips, clipResponse(c))
	}
	return out, nil
}

func (h *ClipHandler) resolveConfig(body ClipDiscoveryOptions) collaborator.ClipConfig {
	cfg := collaborator.ClipConfig{
		MaxClips:    h.defaults.MaxClips,
		MinDuration: h.defaults.MinDuration,
		MaxDuration: h.defaults.MaxDuration,
		Threshold:   h.defaults.Threshold,
	}
	if body.MaxClips > 0 {
		cfg.MaxClips = body.MaxClips
	}
	if body.MinDuration > 0 {
		cfg.MinDuration = body.MinDuration
	}
	if body.MaxDuration > 0 {
		cfg.MaxDuration = body.MaxDuration
	}
	if body.Threshold > 0 {
		cfg.Threshold = body.Threshold
	}
	return cfg
}
