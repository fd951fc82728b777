package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

var titleCaser = cases.Title(language.English)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stateLabel renders a machine state name for terminal output, e.g.
// "AssetGeneration" becomes "Asset Generation".
func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	var b strings.Builder
	for i, r := range state {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(state[i-1])) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func colorizeState(state string, colorize bool) string {
	label := stateLabel(state)
	if !colorize {
		return label
	}
	switch state {
	case "End":
		return ansiGreen + label + ansiReset
	case "Failed":
		return ansiRed + label + ansiReset
	case "PlanReview", "AssetReview", "LayoutReview":
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

// modeLabel renders a run mode for terminal output ("story" -> "Story").
func modeLabel(mode string) string {
	return titleCaser.String(strings.TrimSpace(mode))
}

func formatProgress(progress float64) string {
	return fmt.Sprintf("%d%%", int(progress*100))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
