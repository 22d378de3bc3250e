// Package dedup implements the content-hash deduplication rule set
// used during episode discovery (invariant 1, spec §4.8): at most one
// Episode per content hash, with moved/renamed source files detected
// by hash rather than path.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/episoded/episoded/internal/repository"
)

// chunkSize is the streaming read buffer; hashing never loads a whole
// source file into memory.
const chunkSize = 64 * 1024

// HashFile computes the SHA-256 of a file's bytes, streaming in 64 KiB
// chunks so arbitrarily large source videos hash in bounded memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Index consults the Registry to classify a freshly-discovered file by
// content hash before NamingService/Registry create or update a row.
type Index struct {
	episodes repository.EpisodeRepository
}

// New creates an Index backed by episodes.
func New(episodes repository.EpisodeRepository) *Index {
	return &Index{episodes: episodes}
}

// Classification is the dedup outcome for one discovered file.
type Classification string

const (
	// ClassificationNew means no episode exists with this hash; insert one.
	ClassificationNew Classification = "new"
	// ClassificationUnchanged means the hash is known and source_path
	// already matches; no write needed.
	ClassificationUnchanged Classification = "unchanged"
	// ClassificationMoved means the hash is known but source_path has
	// changed; update the existing row's path.
	ClassificationMoved Classification = "moved"
)

// Classify looks up contentHash and reports what discovery should do
// with sourcePath. A hash change at the same sourcePath is NOT handled
// here — that is detected by the caller re-hashing and getting a
// different hash, which Classify then reports as ClassificationNew
// because the old hash's row, if any, keeps its own sourcePath.
func (idx *Index) Classify(ctx context.Context, contentHash, sourcePath string) (Classification, error) {
	existing, err := idx.episodes.FindByHash(ctx, contentHash)
	if err != nil {
		return "", fmt.Errorf("looking up episode by hash: %w", err)
	}
	switch {
	case existing == nil:
		return ClassificationNew, nil
	case existing.SourcePath == sourcePath:
		return ClassificationUnchanged, nil
	default:
		return ClassificationMoved, nil
	}
}
