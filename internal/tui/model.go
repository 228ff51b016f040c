// Package tui renders live benchmark progress with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"graphbench/internal/runner"
	"graphbench/internal/tui/components"
	"graphbench/internal/tui/styles"
)

const sparkWidth = 40

// DoneMsg ends the program once the run returned.
type DoneMsg struct {
	Err error
}

type snapshotMsg runner.StatsSnapshot

// Model shows the progress of one query benchmark fed from a runner's
// update channel.
type Model struct {
	Query       string
	Samples     int
	Concurrency int

	Progress  progress.Model
	Inflight  components.Sparkline
	Last      runner.StatsSnapshot
	StartTime time.Time
	Err       error

	updates  runner.StatsUpdateChan
	Done     bool
	Quitting bool
}

func NewModel(cfg runner.Config, updates runner.StatsUpdateChan) Model {
	return Model{
		Query:       cfg.Query,
		Samples:     cfg.Samples,
		Concurrency: cfg.Concurrency,
		Progress:    progress.New(progress.WithDefaultGradient()),
		Inflight:    components.NewSparkline(sparkWidth, "Inflight", styles.Active),
		StartTime:   time.Now(),
		updates:     updates,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(ch runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Progress.Width = max(10, msg.Width-4)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Quitting = true
			return m, tea.Quit
		}

	case snapshotMsg:
		m.Last = runner.StatsSnapshot(msg)
		m.Inflight.Add(float64(m.Last.Inflight))
		return m, tea.Batch(m.Progress.SetPercent(m.percent()), waitForSnapshot(m.updates))

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.Progress.Update(msg)
		m.Progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) percent() float64 {
	if m.Samples == 0 {
		return 1
	}
	return min(1, float64(m.Last.Completed)/float64(m.Samples))
}

func (m Model) View() string {
	if m.Quitting && !m.Done {
		return styles.Warn.Render("Interrupted.") + "\n"
	}

	var s strings.Builder
	s.WriteString(styles.Title.Render("graphbench · " + m.Query))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Samples: %s | Users: %d | Elapsed: %s",
		humanize.Comma(int64(m.Samples)), m.Concurrency, time.Since(m.StartTime).Round(time.Second))))
	s.WriteString("\n\n")

	errStyle := styles.Value
	if m.Last.Fail > 0 {
		errStyle = styles.Error
	}
	left := strings.Join([]string{
		styles.Row("Completed", humanize.Comma(int64(m.Last.Completed))),
		styles.Row("Succeeded", humanize.Comma(int64(m.Last.Success))),
		styles.Label.Render("Failed") + errStyle.Render(fmt.Sprintf("%s (%.1f%%)", humanize.Comma(int64(m.Last.Fail)), m.Last.ErrorRate)),
		styles.Row("Inflight", fmt.Sprint(m.Last.Inflight)),
	}, "\n")
	right := strings.Join([]string{
		styles.Row("P50", fmt.Sprintf("%.2f ms", m.Last.P50ServiceMs)),
		styles.Row("P90", fmt.Sprintf("%.2f ms", m.Last.P90ServiceMs)),
		styles.Row("P99", fmt.Sprintf("%.2f ms", m.Last.P99ServiceMs)),
		styles.Row("Max", fmt.Sprintf("%d ms", m.Last.MaxServiceMs)),
		styles.Row("Queue wait", fmt.Sprintf("%.2f ms", m.Last.AvgQueueWaitMs)),
	}, "\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(30).Render(left),
		lipgloss.NewStyle().Width(30).Render(right),
	))
	s.WriteString("\n\n")
	s.WriteString(m.Inflight.View())
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "quit"))
	s.WriteString("\n")
	return s.String()
}
