// Package report renders coverage for people and tools.
//
// A Report is built once, either from a single analyze run or from the
// persisted store, and then written in any supported format:
//   - console: colored summary for terminals
//   - json: the Report itself (report.json)
//   - html: a standalone page (report.html)
//   - lcov: one record per page, one line per element (coverage.lcov)
package report

import (
	"strconv"
	"time"
)

// Version is the report schema version.
const Version = "1.0.0"

// Format names an output format.
type Format string

// Format values.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatHTML    Format = "html"
	FormatLCOV    Format = "lcov"
)

// Source tells where a report's numbers came from.
type Source string

// Source values.
const (
	SourceRun   Source = "run"   // One analyze invocation
	SourceStore Source = "store" // The persisted aggregate across runs
)

// Report is the renderer-neutral view of a coverage result.
type Report struct {
	Version            string        `json:"version"`
	Title              string        `json:"title"`
	Source             Source        `json:"source"`
	GeneratedAt        time.Time     `json:"generatedAt"`
	Summary            Summary       `json:"summary"`
	Types              []TypeRow     `json:"types"`
	Pages              []PageRow     `json:"pages,omitempty"`
	Elements           []ElementRow  `json:"elements"`
	UnmatchedSelectors []SelectorRow `json:"unmatchedSelectors,omitempty"`
	TestFiles          []string      `json:"testFiles,omitempty"`
	Recommendations    []string      `json:"recommendations,omitempty"`
}

// Summary contains the headline numbers.
type Summary struct {
	TotalElements      int    `json:"totalElements"`
	CoveredElements    int    `json:"coveredElements"`
	CoveragePercentage int    `json:"coveragePercentage"`
	Severity           string `json:"severity"`
	ActionNeeded       bool   `json:"actionNeeded"` // critical or warning tier
	TotalSelectors     int    `json:"totalSelectors,omitempty"`
	MatchedSelectors   int    `json:"matchedSelectors,omitempty"`
}

// TypeRow is the coverage of one semantic type.
type TypeRow struct {
	Type       string `json:"type"`
	Total      int    `json:"total"`
	Covered    int    `json:"covered"`
	Percentage int    `json:"percentage"`
	Applicable bool   `json:"applicable"` // false when no element of the type exists
}

// Display returns the percentage for output, or "n/a" for a type with no
// elements.
func (t TypeRow) Display() string {
	if !t.Applicable {
		return "n/a"
	}
	return strconv.Itoa(t.Percentage) + "%"
}

// PageRow is the coverage of one page.
type PageRow struct {
	URL        string `json:"url"`
	Total      int    `json:"total"`
	Covered    int    `json:"covered"`
	Percentage int    `json:"percentage"`
}

// ElementRow is one discovered element.
type ElementRow struct {
	Selector  string   `json:"selector"`
	Type      string   `json:"type"`
	Name      string   `json:"name,omitempty"` // Accessible name or text
	Page      string   `json:"page,omitempty"`
	Covered   bool     `json:"covered"`
	Hits      int      `json:"hits"`
	CoveredBy []string `json:"coveredBy,omitempty"`
}

// SelectorRow is a selector that matched nothing.
type SelectorRow struct {
	Selector string `json:"selector"`
	Kind     string `json:"kind"`
	Location string `json:"location,omitempty"`
}

// UncoveredCount returns the number of element rows without coverage.
func (r *Report) UncoveredCount() int {
	n := 0
	for _, e := range r.Elements {
		if !e.Covered {
			n++
		}
	}
	return n
}
