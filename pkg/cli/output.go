package cli

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorGray  = "\033[90m"
)

// c returns the color code if colors are enabled, empty string otherwise
func (s *settings) c(code string) string {
	if s.color {
		return code
	}
	return ""
}

// formatDelta renders a coverage change as +N% / -N% / ±0%.
func formatDelta(s *settings, delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("%s+%d%%%s", s.c(colorGreen), delta, s.c(colorReset))
	case delta < 0:
		return fmt.Sprintf("%s%d%%%s", s.c(colorRed), delta, s.c(colorReset))
	default:
		return "±0%"
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func rule(width int) string {
	return strings.Repeat("─", width)
}
