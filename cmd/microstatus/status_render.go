package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"microstatus/internal/store"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// phaseLabel turns "built_volume" into "Built Volume".
func phaseLabel(phase string) string {
	if phase == "" {
		return "-"
	}
	return titleCaser.String(strings.ReplaceAll(phase, "_", " "))
}

func processingColor(phase store.ProcessingPhase) string {
	switch phase {
	case store.ProcessingFinished:
		return ansiGreen
	case store.ProcessingPaused:
		return ansiRed
	case store.ProcessingNotStarted:
		return ""
	default:
		return ansiYellow
	}
}

func colorize(value, color string, enabled bool) string {
	if !enabled || color == "" {
		return value
	}
	return color + value + ansiReset
}

// renderSectionHeader returns a title line and an underline of equal width.
func renderSectionHeader(title string, color bool) []string {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	underline := strings.Repeat("-", len(heading))
	return []string{colorize(heading, ansiBlue, color), colorize(underline, ansiBlue, color)}
}

func relativeAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// shouldColorize is true only when w is a terminal.
func shouldColorize(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}
