package dummy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbench/internal/gremlin"
)

func TestNewServerRejectsUnknownProfile(t *testing.T) {
	_, err := NewServer(ServerConfig{Profile: "glacial"}, nil)
	assert.ErrorContains(t, err, "unknown profile")
}

func TestResultShapesFollowScript(t *testing.T) {
	s, err := NewServer(ServerConfig{Profile: "instant", Results: 3, Seed: 1}, nil)
	require.NoError(t, err)

	sites := s.results("g.V().hasLabel('website').limit(limit).id()")
	assert.Equal(t, []any{"site-0", "site-1", "site-2"}, sites)

	ids := s.results("g.V().coin(coin).id()")
	require.Len(t, ids, 3)
	assert.Regexp(t, `^v-\d+$`, ids[0])

	paths := s.results("g.V().out().path()")
	require.Len(t, paths, 3)
	p, ok := paths[0].(gremlin.Typed)
	require.True(t, ok)
	assert.Equal(t, "g:Path", p.Type)
}

func TestRollHonoursProfile(t *testing.T) {
	s, err := NewServer(ServerConfig{Profile: "error", Seed: 3}, nil)
	require.NoError(t, err)

	fails := 0
	for i := 0; i < 1000; i++ {
		d, fail := s.roll()
		assert.GreaterOrEqual(t, d, Profiles["error"].MinLatency)
		assert.Less(t, d, Profiles["error"].MaxLatency)
		if fail {
			fails++
		}
	}
	assert.InDelta(t, 200, fails, 60)

	s, err = NewServer(ServerConfig{Profile: "instant"}, nil)
	require.NoError(t, err)
	d, fail := s.roll()
	assert.Zero(t, d)
	assert.False(t, fail)
}

func TestProfileNamesSorted(t *testing.T) {
	names := ProfileNames()
	assert.Len(t, names, len(Profiles))
	assert.IsNonDecreasing(t, names)
}
