package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
)

func testArtifactStore(t *testing.T) *ArtifactStore {
	t.Helper()
	sandbox, err := NewSandbox(t.TempDir())
	require.NoError(t, err)
	namingService := naming.New([]naming.ShowMapping{
		{CanonicalFolder: "forum-daily-news", Variants: []string{"Forum Daily News", "FDN"}},
	})
	return NewArtifactStore(sandbox, namingService)
}

func episodeWithMetadata(t *testing.T, episodeID string, meta models.EpisodeMetadata) *models.Episode {
	t.Helper()
	ep := &models.Episode{EpisodeID: episodeID}
	require.NoError(t, ep.SetMetadata(meta))
	return ep
}

func TestPathsFor_KnownShow(t *testing.T) {
	store := testArtifactStore(t)
	ep := episodeWithMetadata(t, "forum-daily-news_ep140_2026-01-05", models.EpisodeMetadata{
		ShowName: "FDN",
		AirDate:  "2026-01-05",
	})

	paths, err := store.PathsFor(ep)
	require.NoError(t, err)

	assert.Equal(t, "outputs/forum-daily-news/2026/forum-daily-news_ep140_2026-01-05", paths.Episode)
	assert.Contains(t, paths.Clips, "clips")
	assert.Contains(t, paths.HTML, "html")
	assert.Contains(t, paths.Social, "social")
	assert.Equal(t, "transcripts/forum-daily-news_ep140_2026-01-05", paths.Transcripts)
}

func TestPathsFor_EmptyShowIsUncategorized(t *testing.T) {
	store := testArtifactStore(t)
	ep := episodeWithMetadata(t, "some-source_1700000000", models.EpisodeMetadata{})

	paths, err := store.PathsFor(ep)
	require.NoError(t, err)

	assert.Equal(t, "outputs/_uncategorized/some-source_1700000000", paths.Episode)
}

func TestWriteBytesAndCleanupEpisode(t *testing.T) {
	store := testArtifactStore(t)
	ep := episodeWithMetadata(t, "forum-daily-news_ep140_2026-01-05", models.EpisodeMetadata{
		ShowName: "FDN",
		AirDate:  "2026-01-05",
	})
	paths, err := store.PathsFor(ep)
	require.NoError(t, err)

	require.NoError(t, store.WriteBytes(paths.HTML+"/index.html", []byte("<html></html>"), true))
	require.NoError(t, store.WriteBytes(paths.Transcripts+"/transcript.txt", []byte("hello"), true))

	exists, err := store.sandbox.Exists(paths.HTML + "/index.html")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.CleanupEpisode(ep, true))
	exists, err = store.sandbox.Exists(paths.HTML)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.sandbox.Exists(paths.Transcripts + "/transcript.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.CleanupEpisode(ep, false))
	exists, err = store.sandbox.Exists(paths.Transcripts)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCleanupPartial_OnlyRemovesDownstreamStages(t *testing.T) {
	store := testArtifactStore(t)
	ep := episodeWithMetadata(t, "forum-daily-news_ep140_2026-01-05", models.EpisodeMetadata{
		ShowName: "FDN",
		AirDate:  "2026-01-05",
	})
	paths, err := store.PathsFor(ep)
	require.NoError(t, err)

	require.NoError(t, store.WriteBytes(paths.Transcripts+"/t.txt", []byte("t"), true))
	require.NoError(t, store.WriteBytes(paths.HTML+"/i.html", []byte("h"), true))
	require.NoError(t, store.WriteBytes(paths.Clips+"/c.mp4", []byte("c"), true))

	require.NoError(t, store.CleanupPartial(ep, models.StageRendered))

	exists, err := store.sandbox.Exists(paths.Transcripts + "/t.txt")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.sandbox.Exists(paths.HTML)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.sandbox.Exists(paths.Clips)
	require.NoError(t, err)
	assert.False(t, exists)
}
