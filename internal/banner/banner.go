package banner

import (
	"github.com/charmbracelet/lipgloss"

	"graphbench/internal/tui/styles"
)

const ascii = `
                         _     _                     _
  __ _ _ __ __ _ _ __ | |__ | |__   ___ _ __   ___| |__
 / _' | '__/ _' | '_ \| '_ \| '_ \ / _ \ '_ \ / __| '_ \
| (_| | | | (_| | |_) | | | | |_) |  __/ | | | (__| | | |
 \__, |_|  \__,_| .__/|_| |_|_.__/ \___|_| |_|\___|_| |_|
 |___/          |_|`

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	return "\n" + style.Render(ascii) + "\n"
}
