package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"graphbench/internal/storage"
	"graphbench/internal/tui/history"
)

// History prints the recorded runs, newest first. With interactive set the
// table can be scrolled.
func History(dbPath string, limit int, interactive bool, out io.Writer) error {
	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(limit)
	store.Close()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded yet")
		return nil
	}

	if !interactive {
		fmt.Fprintln(out, history.Render(runs))
		return nil
	}
	_, err = tea.NewProgram(history.NewModel(runs, 20), tea.WithOutput(out)).Run()
	return err
}
