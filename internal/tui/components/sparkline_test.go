package components

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineScrolls(t *testing.T) {
	s := NewSparkline(3, "inflight", lipgloss.NewStyle())
	for _, v := range []float64{1, 2, 3, 4} {
		s.Add(v)
	}
	assert.Equal(t, []float64{2, 3, 4}, s.Data)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, "▄▆█", s.Graph())
}

func TestSparklineFit(t *testing.T) {
	s := NewSparkline(2, "", lipgloss.NewStyle())
	s.Fit([]float64{1, 3, 4, 4})
	assert.Equal(t, []float64{2, 4}, s.Data)
	assert.Equal(t, 2, utf8.RuneCountInString(s.Graph()))
}

func TestSparklinePadsAndHandlesZero(t *testing.T) {
	s := NewSparkline(4, "", lipgloss.NewStyle())
	s.Add(0)
	assert.Equal(t, "    ", s.Graph())
}
