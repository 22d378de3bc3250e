// Package discovery scans a mounted source tree for episode files, and
// registers each in the Registry, classifying it as new, unchanged or
// moved by content hash rather than path (invariant 1, spec §4.8).
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/episoded/episoded/internal/dedup"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// defaultExtensions are the source file extensions discovery
// recognizes as candidate episodes.
var defaultExtensions = []string{".mp4", ".mov", ".mkv", ".m4a", ".wav", ".mp3"}

// ProgressFunc reports scan progress as files are visited.
type ProgressFunc func(filesScanned, filesTotal int, currentPath string)

// Result summarizes one Scan invocation.
type Result struct {
	New       int
	Unchanged int
	Moved     int
	Skipped   int

	// NewEpisodes holds the episodes registered for the first time
	// during this scan, in discovery order.
	NewEpisodes []*models.Episode
}

// Service scans sandbox for candidate episode files and registers them.
type Service struct {
	sandbox    *storage.Sandbox
	episodes   repository.EpisodeRepository
	naming     *naming.Service
	index      *dedup.Index
	extensions map[string]bool
}

// New creates a discovery Service rooted at sandbox.
func New(sandbox *storage.Sandbox, episodes repository.EpisodeRepository, namingService *naming.Service) *Service {
	extensions := make(map[string]bool, len(defaultExtensions))
	for _, ext := range defaultExtensions {
		extensions[ext] = true
	}
	return &Service{
		sandbox:    sandbox,
		episodes:   episodes,
		naming:     namingService,
		index:      dedup.New(episodes),
		extensions: extensions,
	}
}

// Scan walks the entire sandbox tree and registers every candidate
// file found, reporting progress as it goes.
func (s *Service) Scan(ctx context.Context, progress ProgressFunc) (Result, error) {
	var result Result
	var candidates []string

	err := s.sandbox.Walk(".", func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info == nil || info.IsDir() {
			return nil
		}
		if !s.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking source tree: %w", err)
	}

	for i, relPath := range candidates {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if progress != nil {
			progress(i+1, len(candidates), relPath)
		}

		if err := s.registerOne(ctx, relPath, &result); err != nil {
			result.Skipped++
			continue
		}
	}
	return result, nil
}

func (s *Service) registerOne(ctx context.Context, relPath string, result *Result) error {
	absPath, err := s.sandbox.ResolvePath(relPath)
	if err != nil {
		return err
	}
	hash, err := dedup.HashFile(absPath)
	if err != nil {
		return err
	}

	classification, err := s.index.Classify(ctx, hash, relPath)
	if err != nil {
		return err
	}

	info, err := s.sandbox.Stat(relPath)
	if err != nil {
		return err
	}

	switch classification {
	case dedup.ClassificationUnchanged:
		result.Unchanged++
		return nil
	case dedup.ClassificationMoved:
		result.Moved++
	default:
		result.New++
	}

	episodeID := s.naming.GenerateEpisodeID("", 0, time.Time{}, relPath, info.ModTime())
	draft := &models.Episode{
		EpisodeID:    episodeID,
		ContentHash:  hash,
		SourcePath:   filepath.ToSlash(relPath),
		FileSize:     info.Size(),
		LastModified: info.ModTime(),
		Stage:        models.StageDiscovered,
	}
	registered, created, err := s.episodes.RegisterEpisode(ctx, draft)
	if err != nil {
		return err
	}
	if created {
		result.NewEpisodes = append(result.NewEpisodes, registered)
	}
	return nil
}
