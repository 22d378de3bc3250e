// Package pathresolve translates between the path a caller supplies
// and the path on this host: substituting configured mount aliases,
// normalizing separators to forward-slash for storage, and resolving
// relative paths against a project root.
package pathresolve

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/episoded/episoded/internal/repository"
)

// Alias maps a container/host mount prefix to the equivalent path
// prefix on this host.
type Alias struct {
	From string
	To   string
}

// Resolver normalizes paths received from callers (HTTP requests,
// discovery scans) into a canonical host path, and provides a
// filename-based fallback lookup against the Registry.
type Resolver struct {
	projectRoot string
	aliases     []Alias
	episodes    repository.EpisodeRepository
}

// New creates a Resolver rooted at projectRoot with the given mount
// aliases, sorted longest-prefix-first so the most specific alias wins.
func New(projectRoot string, aliases []Alias, episodes repository.EpisodeRepository) *Resolver {
	sorted := make([]Alias, len(aliases))
	copy(sorted, aliases)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].From) > len(sorted[j].From)
	})
	return &Resolver{
		projectRoot: filepath.Clean(projectRoot),
		aliases:     sorted,
		episodes:    episodes,
	}
}

// Resolve normalizes p: applies the first matching mount alias, then
// resolves the result against the project root if it is still
// relative, and returns the result with forward slashes (the storage
// form), regardless of host OS.
func (r *Resolver) Resolve(p string) string {
	p = filepath.ToSlash(p)

	for _, alias := range r.aliases {
		from := filepath.ToSlash(alias.From)
		if strings.HasPrefix(p, from) {
			p = filepath.ToSlash(alias.To) + strings.TrimPrefix(p, from)
			break
		}
	}

	if !filepath.IsAbs(p) {
		p = filepath.ToSlash(filepath.Join(r.projectRoot, p))
	}
	return p
}

// Portable returns path relative to the project root when it falls
// under it, otherwise the absolute path unchanged — the storage form
// used for Episode.SourcePath.
func (r *Resolver) Portable(absPath string) string {
	rel, err := filepath.Rel(r.projectRoot, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// FindByFilename is the fallback lookup used when an HTTP caller
// supplies an episode ID that does not match any registered episode:
// it searches the Registry for an episode whose source path ends in
// name.
func (r *Resolver) FindByFilename(ctx context.Context, name string) (string, error) {
	episode, err := r.episodes.FindByFilename(ctx, name)
	if err != nil {
		return "", fmt.Errorf("finding episode by filename: %w", err)
	}
	if episode == nil {
		return "", nil
	}
	return episode.EpisodeID, nil
}
