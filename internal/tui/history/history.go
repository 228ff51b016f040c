package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"graphbench/internal/storage"
	"graphbench/internal/tui/styles"
)

type Model struct {
	Table table.Model
	Runs  []storage.RunSummary
}

var columns = []table.Column{
	{Title: "Time", Width: 20},
	{Title: "Query", Width: 36},
	{Title: "Users", Width: 6},
	{Title: "Samples", Width: 9},
	{Title: "OK", Width: 9},
	{Title: "Failed", Width: 7},
	{Title: "Median", Width: 10},
	{Title: "P99", Width: 10},
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}

// NewModel shows up to height runs at once. The table height includes its
// header, so the header lines are added on top.
func NewModel(runs []storage.RunSummary, height int) Model {
	s := tableStyles()
	header := lipgloss.Height(s.Header.Render(columns[0].Title))

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithStyles(s),
	)
	t.SetHeight(max(1, min(height, len(runs))) + header)

	m := Model{Table: t, Runs: runs}
	m.Table.SetRows(Rows(runs))
	return m
}

// Render lays out every run without a viewport, for non-interactive output.
func Render(runs []storage.RunSummary) string {
	s := tableStyles()
	cells := func(values []string, style lipgloss.Style) string {
		out := make([]string, len(columns))
		for i, c := range columns {
			v := lipgloss.NewStyle().Width(c.Width).MaxWidth(c.Width).Inline(true).Render(values[i])
			out[i] = style.Render(v)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}

	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	lines := []string{cells(titles, s.Header)}
	for _, row := range Rows(runs) {
		lines = append(lines, cells(row, s.Cell))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func Rows(runs []storage.RunSummary) []table.Row {
	rows := make([]table.Row, len(runs))
	for i, r := range runs {
		rows[i] = table.Row{
			r.Timestamp.Local().Format(time.DateTime),
			r.Config.Query,
			fmt.Sprint(r.Config.Concurrency),
			humanize.Comma(int64(r.Config.Samples)),
			humanize.Comma(int64(r.Succeeded)),
			humanize.Comma(int64(r.Failed)),
			fmt.Sprintf("%.2fms", r.MedianMs),
			fmt.Sprintf("%.2fms", r.P99Ms),
		}
	}
	return rows
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Table.SetWidth(msg.Width - 4)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return styles.Box.Render(m.Table.View()) + "\n" + styles.RenderKey("q", "quit") + "\n"
}
