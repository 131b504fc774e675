package coverage

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// maxListed caps how many selectors a single recommendation names.
const maxListed = 5

// Links are listed once, under high priority.
var (
	highPriority   = map[string]bool{core.TypeButton: true, core.TypeInput: true, core.TypeLink: true}
	mediumPriority = map[string]bool{core.TypeSelect: true, core.TypeTextarea: true, core.TypeNav: true}
)

// GenerateRecommendations returns human-readable guidance for a result.
func GenerateRecommendations(r *Result) []string {
	if r == nil || r.TotalElements == 0 {
		return []string{"No interactive elements were discovered. Check that the page loaded and that the discovery source is correct."}
	}

	var recs []string
	pct := r.CoveragePercentage

	switch r.Severity() {
	case core.SeverityCritical:
		recs = append(recs, fmt.Sprintf("Critical: only %d%% of interactive elements are covered. Start with the primary user flows.", pct))
	case core.SeverityWarning:
		recs = append(recs, fmt.Sprintf("Warning: coverage is %d%%. Add tests for the uncovered elements listed below.", pct))
	case core.SeverityGood:
		recs = append(recs, fmt.Sprintf("Good: coverage is %d%%. A few elements still have no test.", pct))
	default:
		recs = append(recs, fmt.Sprintf("Excellent: coverage is %d%%.", pct))
	}

	for _, t := range SortedTypes(r.TypeStats) {
		s := r.TypeStats[t]
		if !s.Applicable() {
			continue
		}
		switch {
		case s.Percentage < 50:
			recs = append(recs, fmt.Sprintf("Low %s coverage: %d%% (%d of %d).", t, s.Percentage, s.Covered, s.Total))
		case s.Percentage < 75:
			recs = append(recs, fmt.Sprintf("Improve %s coverage: %d%% (%d of %d).", t, s.Percentage, s.Covered, s.Total))
		}
	}

	var high, medium, named []core.ElementDescriptor
	for _, el := range r.UncoveredElements {
		switch {
		case highPriority[el.SemanticType]:
			high = append(high, el)
		case mediumPriority[el.SemanticType]:
			medium = append(medium, el)
		}
		if el.AccessibleName != "" {
			named = append(named, el)
		}
	}

	if len(high) > 0 {
		recs = append(recs, fmt.Sprintf("High priority: %d untested buttons, inputs or links: %s", len(high), listSelectors(high)))
	}
	if len(medium) > 0 {
		recs = append(recs, fmt.Sprintf("Medium priority: %d untested selects, textareas or navigation elements: %s", len(medium), listSelectors(medium)))
	}
	if len(named) > 0 {
		recs = append(recs, fmt.Sprintf("%d untested elements have accessible names; target them with role or text selectors: %s", len(named), listNames(named)))
	}

	return recs
}

func listSelectors(elements []core.ElementDescriptor) string {
	names := make([]string, 0, maxListed)
	for i, el := range elements {
		if i == maxListed {
			break
		}
		names = append(names, selector.NormalizeForDisplay(el.Selector))
	}
	return joinListed(names, len(elements))
}

func listNames(elements []core.ElementDescriptor) string {
	names := make([]string, 0, maxListed)
	for i, el := range elements {
		if i == maxListed {
			break
		}
		names = append(names, fmt.Sprintf("%q", el.AccessibleName))
	}
	return joinListed(names, len(elements))
}

func joinListed(names []string, total int) string {
	out := strings.Join(names, ", ")
	if more := total - len(names); more > 0 {
		out += fmt.Sprintf(" (and %d more)", more)
	}
	return out
}
