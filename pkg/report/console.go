package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ConsoleOptions controls the terminal summary.
type ConsoleOptions struct {
	Color        bool
	MaxUncovered int // 0 means 20
}

// ColorEnabled reports whether ANSI colors should be used on f. NO_COLOR
// disables them.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type printer struct {
	w     io.Writer
	color bool
	err   error
}

func (p *printer) c(code string) string {
	if p.color {
		return code
	}
	return ""
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// WriteConsole prints a human-readable summary.
func WriteConsole(w io.Writer, r *Report, opts ConsoleOptions) error {
	p := &printer{w: w, color: opts.Color}
	limit := opts.MaxUncovered
	if limit <= 0 {
		limit = 20
	}

	p.printf("\n  %s%s%s\n", p.c(colorBold), r.Title, p.c(colorReset))
	p.printf("%s\n", strings.Repeat("─", 60))

	s := r.Summary
	p.printf("  Coverage: %s%d%%%s  (%d of %d elements)\n",
		p.c(severityColor(s.Severity)), s.CoveragePercentage, p.c(colorReset), s.CoveredElements, s.TotalElements)
	if s.TotalSelectors > 0 {
		p.printf("  Selectors: %d matched, %d unmatched\n", s.MatchedSelectors, s.TotalSelectors-s.MatchedSelectors)
	}

	if len(r.Types) > 0 {
		p.printf("\n  %sBy type%s\n", p.c(colorBold), p.c(colorReset))
		for _, t := range r.Types {
			pct := t.Display()
			col := colorGray
			if t.Applicable {
				col = percentColor(t.Percentage)
			}
			p.printf("    %-12s %s%5s%s  %s%d/%d%s\n", t.Type, p.c(col), pct, p.c(colorReset), p.c(colorGray), t.Covered, t.Total, p.c(colorReset))
		}
	}

	if len(r.Pages) > 1 || (len(r.Pages) == 1 && r.Source == SourceStore) {
		p.printf("\n  %sBy page%s\n", p.c(colorBold), p.c(colorReset))
		for _, pg := range r.Pages {
			p.printf("    %s%4d%%%s  %s %s(%d/%d)%s\n", p.c(percentColor(pg.Percentage)), pg.Percentage, p.c(colorReset),
				pg.URL, p.c(colorGray), pg.Covered, pg.Total, p.c(colorReset))
		}
	}

	if n := r.UncoveredCount(); n > 0 {
		p.printf("\n  %sUncovered (%d)%s\n", p.c(colorBold), n, p.c(colorReset))
		shown := 0
		for _, e := range r.Elements {
			if e.Covered {
				continue
			}
			if shown == limit {
				p.printf("    %s… and %d more%s\n", p.c(colorGray), n-shown, p.c(colorReset))
				break
			}
			shown++
			name := ""
			if e.Name != "" {
				name = fmt.Sprintf(" %s%q%s", p.c(colorDim), e.Name, p.c(colorReset))
			}
			p.printf("    %s✗%s %-10s %s%s\n", p.c(colorRed), p.c(colorReset), e.Type, e.Selector, name)
		}
	}

	if len(r.UnmatchedSelectors) > 0 {
		p.printf("\n  %sUnmatched selectors (%d)%s\n", p.c(colorBold), len(r.UnmatchedSelectors), p.c(colorReset))
		for _, u := range r.UnmatchedSelectors {
			loc := ""
			if u.Location != "" {
				loc = fmt.Sprintf(" %s%s%s", p.c(colorGray), u.Location, p.c(colorReset))
			}
			p.printf("    %s?%s %s%s\n", p.c(colorYellow), p.c(colorReset), u.Selector, loc)
		}
	}

	if len(r.Recommendations) > 0 {
		head := colorBold
		if s.ActionNeeded {
			head = colorYellow
		}
		p.printf("\n  %sRecommendations%s\n", p.c(head), p.c(colorReset))
		for _, rec := range r.Recommendations {
			p.printf("    %s▸%s %s\n", p.c(colorCyan), p.c(colorReset), rec)
		}
	}
	p.printf("\n")
	return p.err
}

func severityColor(severity string) string {
	switch severity {
	case "critical":
		return colorRed
	case "warning":
		return colorYellow
	case "good", "excellent":
		return colorGreen
	}
	return colorGray
}

func percentColor(pct int) string {
	switch {
	case pct < 50:
		return colorRed
	case pct < 75:
		return colorYellow
	default:
		return colorGreen
	}
}
