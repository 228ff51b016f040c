package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one-line bar chart over a scrolling window of values.
type Sparkline struct {
	Data  []float64
	Width int
	Max   float64
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

// Add appends val, dropping the oldest value once the window is full.
func (s *Sparkline) Add(val float64) {
	s.Data = append(s.Data, val)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
	s.Max = 0
	for _, v := range s.Data {
		s.Max = max(s.Max, v)
	}
}

// Fit replaces the data with values squeezed into Width columns, each column
// the mean of its share of values.
func (s *Sparkline) Fit(values []float64) {
	s.Data = s.Data[:0]
	s.Max = 0
	if len(values) == 0 || s.Width <= 0 {
		return
	}
	cols := min(s.Width, len(values))
	for c := 0; c < cols; c++ {
		lo := c * len(values) / cols
		hi := (c + 1) * len(values) / cols
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		mean := sum / float64(hi-lo)
		s.Data = append(s.Data, mean)
		s.Max = max(s.Max, mean)
	}
}

func (s Sparkline) Graph() string {
	var graph strings.Builder
	for _, v := range s.Data {
		idx := 0
		if s.Max > 0 && v > 0 {
			idx = int(v / s.Max * float64(len(levels)-1))
			idx = min(max(idx, 1), len(levels)-1)
		}
		graph.WriteString(levels[idx])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}
	return graph.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	return s.Style.Render(s.Label) + "\n" + s.Style.Render(s.Graph())
}
