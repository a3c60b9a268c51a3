// Package output renders human-facing CLI output: framed sections, build
// summaries and CI reports.
package output

import (
	"os"

	"github.com/gookit/color"
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// paint applies style when color is on.
func paint(style color.Style, text string, on bool) string {
	if !on {
		return text
	}
	return style.Sprint(text)
}

var (
	styleHeader  = color.New(color.FgCyan, color.OpFuzzy)
	styleSuccess = color.New(color.FgGreen)
	styleFailed  = color.New(color.FgRed)
	styleSkipped = color.New(color.FgYellow)
	styleDim     = color.New(color.FgDarkGray)
	styleBold    = color.New(color.OpBold)
)

// Dimmed returns dimmed text if color is enabled.
func Dimmed(text string, on bool) string {
	return paint(styleDim, text, on)
}

// Bold returns bold text if color is enabled.
func Bold(text string, on bool) string {
	return paint(styleBold, text, on)
}
