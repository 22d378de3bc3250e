package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
)

// ArtifactPaths are the per-episode output locations under the
// ArtifactStore root, laid out per the filesystem layout:
//
//	{root}/outputs/{show}/{YYYY}/{episode_id}/clips
//	{root}/outputs/{show}/{YYYY}/{episode_id}/html
//	{root}/outputs/{show}/{YYYY}/{episode_id}/social
//	{root}/transcripts/{episode_id}
type ArtifactPaths struct {
	Episode     string
	Clips       string
	HTML        string
	Social      string
	Transcripts string
}

// ArtifactStore is a thin filesystem manager layered over NamingService
// and a Sandbox, owning the on-disk output tree for episodes and clips.
// Failure to clean a file is logged by the caller but never fatal.
type ArtifactStore struct {
	sandbox *Sandbox
	naming  *naming.Service
}

// NewArtifactStore creates an ArtifactStore rooted at sandbox, using
// naming to compute per-episode folder names.
func NewArtifactStore(sandbox *Sandbox, namingService *naming.Service) *ArtifactStore {
	return &ArtifactStore{sandbox: sandbox, naming: namingService}
}

// PathsFor computes the artifact tree locations for episode, relative
// to the sandbox root.
func (s *ArtifactStore) PathsFor(episode *models.Episode) (ArtifactPaths, error) {
	meta, err := episode.GetMetadata()
	if err != nil {
		return ArtifactPaths{}, fmt.Errorf("reading episode metadata: %w", err)
	}

	episodeDir := s.naming.EpisodeFolder("outputs", episode.EpisodeID, meta.ShowName, parseAirDate(meta.AirDate))
	return ArtifactPaths{
		Episode:     episodeDir,
		Clips:       filepath.ToSlash(filepath.Join(episodeDir, "clips")),
		HTML:        filepath.ToSlash(filepath.Join(episodeDir, "html")),
		Social:      filepath.ToSlash(filepath.Join(episodeDir, "social")),
		Transcripts: filepath.ToSlash(filepath.Join("transcripts", episode.EpisodeID)),
	}, nil
}

// WriteBytes writes data to relativePath. When atomic is true (the
// default for all pipeline output) it writes to a sibling temp file
// and renames on success, so a crash mid-write never leaves a
// half-written artifact visible.
func (s *ArtifactStore) WriteBytes(relativePath string, data []byte, atomic bool) error {
	if atomic {
		return s.sandbox.AtomicWrite(relativePath, data)
	}
	return s.sandbox.WriteFile(relativePath, data)
}

// CleanupEpisode removes the clips, html and social subtrees for
// episode, optionally preserving transcripts. Errors are collected and
// returned jointly but never block removal of the remaining subtrees.
func (s *ArtifactStore) CleanupEpisode(episode *models.Episode, keepTranscripts bool) error {
	paths, err := s.PathsFor(episode)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range []string{paths.Clips, paths.HTML, paths.Social} {
		if err := s.sandbox.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	if !keepTranscripts {
		if err := s.sandbox.RemoveAll(paths.Transcripts); err != nil {
			errs = append(errs, err)
		}
	}
	return joinBestEffort(errs)
}

// CleanupPartial removes artifacts produced at-or-after fromStage,
// used before a forced re-run so stale downstream outputs never
// survive a force-reprocess.
func (s *ArtifactStore) CleanupPartial(episode *models.Episode, fromStage models.EpisodeStage) error {
	paths, err := s.PathsFor(episode)
	if err != nil {
		return err
	}

	var errs []error
	remove := func(p string) {
		if err := s.sandbox.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}

	if models.StageTranscribed.AtLeast(fromStage) {
		remove(paths.Transcripts)
	}
	if models.StageRendered.AtLeast(fromStage) {
		remove(paths.HTML)
		remove(paths.Social)
	}
	if models.StageClipsDiscovered.AtLeast(fromStage) {
		remove(paths.Clips)
	}
	return joinBestEffort(errs)
}

// parseAirDate parses the enrichment collaborator's "YYYY-MM-DD" air
// date string, falling back to the zero time (which EpisodeFolder
// treats as unknown) when absent or malformed.
func parseAirDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func joinBestEffort(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := "cleanup encountered errors: "
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
