package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"graphbench/internal/stats"
	"graphbench/internal/tui/styles"
)

func printSummary(out io.Writer, res Result) {
	run := res.Run
	var b strings.Builder
	b.WriteString(styles.Title.Render(res.Query))
	b.WriteString("\n")

	rows := []string{
		styles.Row("Samples", humanize.Comma(int64(run.Config.Samples))),
		styles.Row("Users", strconv.Itoa(run.Config.Concurrency)),
		styles.Row("Elapsed", run.Elapsed().Round(time.Millisecond).String()),
		styles.Row("Succeeded", humanize.Comma(int64(run.Succeeded()))),
	}
	failed := styles.Value
	if run.Failed() > 0 {
		failed = styles.Error
	}
	rows = append(rows, styles.Label.Render("Failed")+failed.Render(humanize.Comma(int64(run.Failed()))))
	if secs := run.Elapsed().Seconds(); secs > 0 {
		rows = append(rows, styles.Row("Throughput", humanize.CommafWithDigits(float64(run.Succeeded())/secs, 1)+" q/s"))
	}
	left := strings.Join(rows, "\n")

	var right string
	switch {
	case errors.Is(res.SummaryErr, stats.ErrNoSamples):
		right = styles.Warn.Render("no successful samples")
	case res.SummaryErr != nil:
		right = styles.Error.Render(res.SummaryErr.Error())
	default:
		s := res.Summary
		lat := []string{
			styles.Row("Mean", fmtMs(s.Mean)),
			styles.Row("Median", fmtMs(s.Median)),
			styles.Row("Min", fmtMs(s.Min)),
			styles.Row("Max", fmtMs(s.Max)),
		}
		for _, p := range s.Percentiles {
			lat = append(lat, styles.Row("P"+strconv.FormatFloat(p.P, 'f', -1, 64), fmtMs(p.Value)))
		}
		right = strings.Join(lat, "\n")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(34).Render(left),
		lipgloss.NewStyle().Width(34).Render(right),
	))
	b.WriteString("\n\n")
	io.WriteString(out, b.String())
}

func fmtMs(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", ms(d))
}
