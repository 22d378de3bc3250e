package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_MountAlias(t *testing.T) {
	r := New("/srv/episoded", []Alias{{From: "/data", To: "/srv/episoded/data"}}, nil)
	assert.Equal(t, "/srv/episoded/data/inbox/ep1.mp4", r.Resolve("/data/inbox/ep1.mp4"))
}

func TestResolve_RelativeToProjectRoot(t *testing.T) {
	r := New("/srv/episoded", nil, nil)
	assert.Equal(t, "/srv/episoded/inbox/ep1.mp4", r.Resolve("inbox/ep1.mp4"))
}

func TestResolve_LongestAliasWins(t *testing.T) {
	r := New("/srv/episoded", []Alias{
		{From: "/data", To: "/srv/a"},
		{From: "/data/special", To: "/srv/b"},
	}, nil)
	assert.Equal(t, "/srv/b/file.mp4", r.Resolve("/data/special/file.mp4"))
}

func TestPortable(t *testing.T) {
	r := New("/srv/episoded", nil, nil)
	assert.Equal(t, "inbox/ep1.mp4", r.Portable("/srv/episoded/inbox/ep1.mp4"))
	assert.Equal(t, "/outside/ep1.mp4", r.Portable("/outside/ep1.mp4"))
}
