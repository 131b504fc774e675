// Package coverage computes per-page and multi-page UI coverage from
// matcher output.
//
// Empty populations: a page with no elements has 0% coverage, while a
// semantic type with no elements is reported as 100% (vacuously covered).
// TypeStats keeps the raw counts so renderers can show "n/a" for a type
// whose Total is 0 instead of a misleading 100%.
package coverage

import (
	"math"
	"sort"
	"time"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/matcher"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// TypeStat holds the counts behind one per-type percentage.
type TypeStat struct {
	Total      int `json:"total"`
	Covered    int `json:"covered"`
	Percentage int `json:"percentage"`
}

// Applicable reports whether the type had any elements.
func (s TypeStat) Applicable() bool {
	return s.Total > 0
}

// SelectorMatch is the serializable form of one matcher decision.
type SelectorMatch struct {
	Selector selector.Selector       `json:"selector"`
	Element  *core.ElementDescriptor `json:"element,omitempty"`
	Strategy string                  `json:"strategy,omitempty"`
	Claimed  bool                    `json:"claimed"`
}

// PageSummary is one page's line in a multi-page result.
type PageSummary struct {
	URL                string `json:"url"`
	TotalElements      int    `json:"totalElements"`
	CoveredElements    int    `json:"coveredElements"`
	CoveragePercentage int    `json:"coveragePercentage"`
}

// Result is the coverage of one page, or of several pages combined.
type Result struct {
	PageURL            string                   `json:"pageUrl,omitempty"`
	TotalElements      int                      `json:"totalElements"`
	CoveredElements    int                      `json:"coveredElements"`
	CoveragePercentage int                      `json:"coveragePercentage"`
	CoverageByType     map[string]int           `json:"coverageByType"`
	TypeStats          map[string]TypeStat      `json:"typeStats"`
	Covered            []core.ElementDescriptor `json:"covered"`
	UncoveredElements  []core.ElementDescriptor `json:"uncoveredElements"`
	TotalSelectors     int                      `json:"totalSelectors"`
	MatchedSelectors   int                      `json:"matchedSelectors"`
	UnmatchedSelectors []selector.Selector      `json:"unmatchedSelectors,omitempty"`
	Matches            []SelectorMatch          `json:"matches,omitempty"`
	Pages              []PageSummary            `json:"pages,omitempty"`
	Timestamp          time.Time                `json:"timestamp"`
}

// Severity returns the recommendation tier for the overall percentage.
func (r *Result) Severity() core.Severity {
	if r.TotalElements == 0 {
		return core.SeverityNone
	}
	return core.SeverityFor(r.CoveragePercentage)
}

// CalculateCoverage runs the matcher once over a page and derives the
// coverage figures from the claimed set.
func CalculateCoverage(elements []core.ElementDescriptor, selectors []selector.Selector, pageURL string) *Result {
	res := matcher.Run(selectors, elements)

	r := &Result{
		PageURL:            pageURL,
		TotalElements:      len(elements),
		CoveredElements:    res.ClaimedCount(),
		TotalSelectors:     len(selectors),
		MatchedSelectors:   res.MatchedCount(),
		UnmatchedSelectors: res.Unmatched(),
		Covered:            []core.ElementDescriptor{},
		UncoveredElements:  []core.ElementDescriptor{},
		Timestamp:          time.Now(),
	}
	r.CoveragePercentage = Percentage(r.CoveredElements, r.TotalElements)

	covered := make([]bool, len(elements))
	for i, el := range elements {
		covered[i] = res.IsClaimed(i)
		if covered[i] {
			r.Covered = append(r.Covered, el)
		} else {
			r.UncoveredElements = append(r.UncoveredElements, el)
		}
	}
	r.TypeStats, r.CoverageByType = TypeBreakdown(elements, covered)

	for _, m := range res.Matches {
		sm := SelectorMatch{Selector: m.Selector, Strategy: m.Strategy, Claimed: m.Claimed}
		if m.Matched() {
			el := elements[m.Element]
			sm.Element = &el
		}
		r.Matches = append(r.Matches, sm)
	}

	return r
}

// AggregatePageCoverage combines single-page results. Elements are
// identified across pages by their raw selector string; an element counts
// as covered when any page covered it.
func AggregatePageCoverage(pages []*Result) *Result {
	agg := &Result{
		CoverageByType:    map[string]int{},
		TypeStats:         map[string]TypeStat{},
		Covered:           []core.ElementDescriptor{},
		UncoveredElements: []core.ElementDescriptor{},
		Timestamp:         time.Now(),
	}

	var (
		order     []string
		elements  = map[string]core.ElementDescriptor{}
		isCovered = map[string]bool{}
		selSeen   = map[string]selector.Selector{}
		selOrder  []string
		selFound  = map[string]bool{}
	)

	add := func(el core.ElementDescriptor, covered bool) {
		if _, ok := elements[el.Selector]; !ok {
			elements[el.Selector] = el
			order = append(order, el.Selector)
		}
		if covered {
			isCovered[el.Selector] = true
		}
	}

	for _, p := range pages {
		if p == nil {
			continue
		}
		for _, el := range p.Covered {
			add(el, true)
		}
		for _, el := range p.UncoveredElements {
			add(el, false)
		}
		agg.TotalSelectors += p.TotalSelectors
		agg.MatchedSelectors += p.MatchedSelectors
		for _, m := range p.Matches {
			key := string(m.Selector.Kind) + "\x00" + m.Selector.Text + "\x00" + m.Selector.Location()
			if _, ok := selSeen[key]; !ok {
				selSeen[key] = m.Selector
				selOrder = append(selOrder, key)
			}
			if m.Element != nil {
				selFound[key] = true
			}
		}
		agg.Pages = append(agg.Pages, PageSummary{
			URL:                p.PageURL,
			TotalElements:      p.TotalElements,
			CoveredElements:    p.CoveredElements,
			CoveragePercentage: p.CoveragePercentage,
		})
	}

	all := make([]core.ElementDescriptor, 0, len(order))
	covered := make([]bool, 0, len(order))
	for _, key := range order {
		el := elements[key]
		all = append(all, el)
		covered = append(covered, isCovered[key])
		if isCovered[key] {
			agg.Covered = append(agg.Covered, el)
		} else {
			agg.UncoveredElements = append(agg.UncoveredElements, el)
		}
	}

	for _, key := range selOrder {
		if !selFound[key] {
			agg.UnmatchedSelectors = append(agg.UnmatchedSelectors, selSeen[key])
		}
	}

	agg.TotalElements = len(all)
	agg.CoveredElements = len(agg.Covered)
	agg.CoveragePercentage = Percentage(agg.CoveredElements, agg.TotalElements)
	agg.TypeStats, agg.CoverageByType = TypeBreakdown(all, covered)

	return agg
}

// TypeBreakdown counts covered/total per semantic type; covered[i] belongs
// to elements[i]. Standard types are always present so an absent type is
// visible as vacuously covered.
func TypeBreakdown(elements []core.ElementDescriptor, covered []bool) (map[string]TypeStat, map[string]int) {
	stats := make(map[string]TypeStat, len(core.StandardTypes))
	for _, t := range core.StandardTypes {
		stats[t] = TypeStat{}
	}
	for i, el := range elements {
		t := el.SemanticType
		if t == "" {
			t = core.TypeInteractive
		}
		s := stats[t]
		s.Total++
		if covered[i] {
			s.Covered++
		}
		stats[t] = s
	}

	byType := make(map[string]int, len(stats))
	for t, s := range stats {
		s.Percentage = TypePercentage(s.Covered, s.Total)
		stats[t] = s
		byType[t] = s.Percentage
	}
	return stats, byType
}

// SortedTypes returns the type names of a breakdown in a stable order.
func SortedTypes(stats map[string]TypeStat) []string {
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Percentage is the overall rule: an empty population is 0%.
func Percentage(covered, total int) int {
	if total <= 0 {
		return 0
	}
	return roundPercent(covered, total)
}

// TypePercentage is the per-type rule: an empty type is 100%.
func TypePercentage(covered, total int) int {
	if total <= 0 {
		return 100
	}
	return roundPercent(covered, total)
}

func roundPercent(covered, total int) int {
	p := int(math.Floor(float64(covered)*100/float64(total) + 0.5))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
