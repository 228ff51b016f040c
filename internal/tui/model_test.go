package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbench/internal/runner"
)

func TestModelFollowsSnapshots(t *testing.T) {
	updates := make(runner.StatsUpdateChan, 1)
	m := NewModel(runner.Config{Query: "q", Samples: 10, Concurrency: 2}, updates)

	updates <- runner.StatsSnapshot{Query: "q", Completed: 5, Success: 4, Fail: 1, Inflight: 2}
	msg := m.Init()()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	got := next.(Model)

	assert.Equal(t, uint64(5), got.Last.Completed)
	assert.Equal(t, 0.5, got.percent())
	assert.Equal(t, []float64{2}, got.Inflight.Data)
	assert.Contains(t, got.View(), "graphbench · q")
}

func TestModelQuitsWhenDone(t *testing.T) {
	m := NewModel(runner.Config{Query: "q", Samples: 1, Concurrency: 1}, make(runner.StatsUpdateChan))
	boom := errors.New("boom")
	next, cmd := m.Update(DoneMsg{Err: boom})
	got := next.(Model)
	assert.True(t, got.Done)
	assert.ErrorIs(t, got.Err, boom)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestZeroSamplesIsComplete(t *testing.T) {
	m := NewModel(runner.Config{Query: "q"}, nil)
	assert.Equal(t, 1.0, m.percent())
}
