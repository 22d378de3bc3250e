package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o640))

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashFile_DifferentContentDifferentHash(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.mp4")
	pathB := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(pathA, []byte("content a"), 0o640))
	require.NoError(t, os.WriteFile(pathB, []byte("content b"), 0o640))

	hA, err := HashFile(pathA)
	require.NoError(t, err)
	hB, err := HashFile(pathB)
	require.NoError(t, err)

	assert.NotEqual(t, hA, hB)
}
