// Package cleanup retires stale JobHistory rows and reclaims disk
// space once the storage root drops below its configured free-space
// watermark.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/episoded/episoded/internal/config"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// Manager runs on a ticker, pruning JobHistory older than the
// configured retention window and, when the artifact store's free
// space drops below MinFreeSpace, reclaiming bulk media (clips, HTML
// renders, social crops) from episodes that have already finished the
// pipeline. Transcripts are kept: they're small text and the only
// artifact that can't be regenerated without re-running an external
// collaborator.
type Manager struct {
	history      repository.JobHistoryRepository
	episodes     repository.EpisodeRepository
	artifacts    *storage.ArtifactStore
	storageCfg   config.StorageConfig
	cleanupCfg   config.CleanupConfig
	logger       *slog.Logger
}

// New builds a Manager from its dependencies and configuration.
func New(history repository.JobHistoryRepository, episodes repository.EpisodeRepository, artifacts *storage.ArtifactStore, storageCfg config.StorageConfig, cleanupCfg config.CleanupConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		history:    history,
		episodes:   episodes,
		artifacts:  artifacts,
		storageCfg: storageCfg,
		cleanupCfg: cleanupCfg,
		logger:     logger,
	}
}

// Run blocks, ticking at cleanupCfg.Interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cleanupCfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	m.pruneHistory(ctx)
	m.reclaimIfLow(ctx)
}

func (m *Manager) pruneHistory(ctx context.Context) {
	before := time.Now().Add(-m.cleanupCfg.HistoryRetention.Duration())
	n, err := m.history.DeleteOlderThan(ctx, before)
	if err != nil {
		m.logger.Error("failed to prune job history", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		m.logger.Info("pruned expired job history rows", slog.Int64("count", n), slog.Time("before", before))
	}
}

// reclaimIfLow checks free space on the storage root on every tick and,
// if it has dropped below MinFreeSpace, reclaims finished episodes' bulk
// media in that same pass.
func (m *Manager) reclaimIfLow(ctx context.Context) {
	if m.storageCfg.MinFreeSpace <= 0 {
		return
	}
	usage, err := disk.Usage(m.storageCfg.BaseDir)
	if err != nil {
		m.logger.Warn("failed to read disk usage for storage root", slog.String("path", m.storageCfg.BaseDir), slog.String("error", err.Error()))
		return
	}
	if usage.Free >= uint64(m.storageCfg.MinFreeSpace) {
		return
	}

	m.logger.Warn("storage root below free space watermark, reclaiming finished episodes' bulk media",
		slog.Uint64("free_bytes", usage.Free),
		slog.Int64("watermark_bytes", int64(m.storageCfg.MinFreeSpace)))

	// Unset Limit: ListEpisodes defaults to a bounded batch (50) per
	// call, so a single low-space tick can't block the cleanup loop for
	// long; any remainder catches up on the next tick.
	stage := models.StageClipsDiscovered
	episodes, _, err := m.episodes.ListEpisodes(ctx, repository.EpisodeFilter{Stage: &stage})
	if err != nil {
		m.logger.Error("failed to list finished episodes for reclaim", slog.String("error", err.Error()))
		return
	}

	for _, episode := range episodes {
		if err := m.artifacts.CleanupEpisode(episode, true); err != nil {
			m.logger.Warn("partial failure reclaiming episode artifacts",
				slog.String("episode_id", episode.EpisodeID), slog.String("error", err.Error()))
			continue
		}
		m.logger.Info("reclaimed bulk media for finished episode", slog.String("episode_id", episode.EpisodeID))
	}
}
