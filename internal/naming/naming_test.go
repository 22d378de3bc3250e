package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testService() *Service {
	return New([]ShowMapping{
		{CanonicalFolder: "ForumDailyNews", Variants: []string{"Forum Daily News", "FDN"}},
	})
}

func TestMapShow(t *testing.T) {
	s := testService()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"exact canonical", "ForumDailyNews", "ForumDailyNews"},
		{"case-insensitive variant", "forum daily news", "ForumDailyNews"},
		{"abbreviation variant", "FDN", "ForumDailyNews"},
		{"unknown show slugifies", "Some Other Show!!", "some-other-show"},
		{"empty show is uncategorized", "", uncategorizedFolder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MapShow(tt.raw))
		})
	}
}

func TestGenerateEpisodeID(t *testing.T) {
	s := testService()
	airDate := time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC)

	id := s.GenerateEpisodeID("Forum Daily News", 140, airDate, "source.mp4", time.Now())
	assert.Equal(t, "ForumDailyNews_ep140_2024-10-27", id)
}

func TestGenerateEpisodeID_Fallback(t *testing.T) {
	s := testService()
	fallback := time.Unix(1700000000, 0)

	id := s.GenerateEpisodeID("", 0, time.Time{}, "My Recording!.mp4", fallback)
	assert.Equal(t, "my-recording-mp4_1700000000", id)
}

func TestEpisodeFolder(t *testing.T) {
	s := testService()
	airDate := time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC)

	got := s.EpisodeFolder("/data/outputs", "ForumDailyNews_ep140_2024-10-27", "Forum Daily News", airDate)
	assert.Equal(t, "/data/outputs/ForumDailyNews/2024/ForumDailyNews_ep140_2024-10-27", got)
}

func TestEpisodeFolder_UnknownShow(t *testing.T) {
	s := testService()

	got := s.EpisodeFolder("/data/outputs", "some-recording_1700000000", "", time.Time{})
	assert.Equal(t, "/data/outputs/_uncategorized/some-recording_1700000000", got)
}

func TestParseEpisodeID_RoundTrip(t *testing.T) {
	s := testService()
	airDate := time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC)

	id := s.GenerateEpisodeID("Forum Daily News", 140, airDate, "source.mp4", time.Now())

	parsed, ok := ParseEpisodeID(id)
	assert.True(t, ok)
	assert.Equal(t, "ForumDailyNews", parsed.Show)
	assert.Equal(t, 140, parsed.EpisodeNumber)
	assert.True(t, airDate.Equal(parsed.AirDate))
}

func TestParseEpisodeID_FallbackFormNotParsed(t *testing.T) {
	s := testService()
	fallback := time.Unix(1700000000, 0)

	id := s.GenerateEpisodeID("", 0, time.Time{}, "My Recording!.mp4", fallback)

	_, ok := ParseEpisodeID(id)
	assert.False(t, ok)
}

func TestParseEpisodeID_Invalid(t *testing.T) {
	for _, bad := range []string{"", "not-an-episode-id", "Show_ep_2024-10-27", "Show_epNN_2024-10-27"} {
		_, ok := ParseEpisodeID(bad)
		assert.False(t, ok, bad)
	}
}
