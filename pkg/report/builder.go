package report

import (
	"sort"
	"strings"
	"time"

	"github.com/devicelab-dev/ui-coverage/pkg/aggregator"
	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/coverage"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "UI Coverage Report"

// FromResult builds a report from one analyze run.
func FromResult(r *coverage.Result, title string) *Report {
	rep := newReport(title, SourceRun)
	if r == nil {
		rep.Summary.Severity = core.SeverityNone.String()
		return rep
	}

	rep.Summary = Summary{
		TotalElements:      r.TotalElements,
		CoveredElements:    r.CoveredElements,
		CoveragePercentage: r.CoveragePercentage,
		Severity:           r.Severity().String(),
		ActionNeeded:       r.Severity().IsActionable(),
		TotalSelectors:     r.TotalSelectors,
		MatchedSelectors:   r.MatchedSelectors,
	}
	rep.Types = typeRows(r.TypeStats)

	switch {
	case len(r.Pages) > 0:
		for _, p := range r.Pages {
			rep.Pages = append(rep.Pages, PageRow{URL: p.URL, Total: p.TotalElements, Covered: p.CoveredElements, Percentage: p.CoveragePercentage})
		}
	case r.PageURL != "":
		rep.Pages = []PageRow{{URL: r.PageURL, Total: r.TotalElements, Covered: r.CoveredElements, Percentage: r.CoveragePercentage}}
	}

	// Claimed matches tell which selector covered which element.
	coveredBy := map[string][]string{}
	for _, m := range r.Matches {
		if !m.Claimed || m.Element == nil {
			continue
		}
		key := elementKey(*m.Element)
		by := m.Selector.Location()
		if by == "" {
			by = m.Selector.Describe()
		}
		coveredBy[key] = appendUnique(coveredBy[key], by)
	}

	for _, el := range r.Covered {
		row := elementRow(el, r.PageURL)
		row.Covered = true
		row.CoveredBy = coveredBy[elementKey(el)]
		row.Hits = len(row.CoveredBy)
		if row.Hits == 0 {
			row.Hits = 1
		}
		rep.Elements = append(rep.Elements, row)
	}
	for _, el := range r.UncoveredElements {
		rep.Elements = append(rep.Elements, elementRow(el, r.PageURL))
	}
	sortElements(rep.Elements)

	for _, s := range r.UnmatchedSelectors {
		rep.UnmatchedSelectors = append(rep.UnmatchedSelectors, SelectorRow{
			Selector: s.Describe(),
			Kind:     string(s.Kind),
			Location: s.Location(),
		})
	}

	rep.Recommendations = coverage.GenerateRecommendations(r)
	return rep
}

// FromAggregate builds a report from the persisted store.
func FromAggregate(agg aggregator.AggregatedCoverage, records []*aggregator.Record, title string) *Report {
	rep := newReport(title, SourceStore)

	view := &coverage.Result{
		TotalElements:      agg.TotalElements,
		CoveredElements:    agg.CoveredElements,
		CoveragePercentage: agg.CoveragePercentage,
		CoverageByType:     agg.CoverageByType,
		TypeStats:          agg.TypeStats,
		UncoveredElements:  agg.UncoveredElements,
	}

	rep.Summary = Summary{
		TotalElements:      agg.TotalElements,
		CoveredElements:    agg.CoveredElements,
		CoveragePercentage: agg.CoveragePercentage,
		Severity:           view.Severity().String(),
		ActionNeeded:       view.Severity().IsActionable(),
	}
	rep.Types = typeRows(agg.TypeStats)
	rep.TestFiles = agg.TestFiles

	urls := make([]string, 0, len(agg.CoverageByPage))
	for url := range agg.CoverageByPage {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	for _, url := range urls {
		pc := agg.CoverageByPage[url]
		rep.Pages = append(rep.Pages, PageRow{URL: url, Total: pc.TotalElements, Covered: pc.CoveredElements, Percentage: pc.CoveragePercentage})
	}

	for _, rec := range records {
		page := ""
		if len(rec.DiscoveredIn) > 0 {
			page = rec.DiscoveredIn[0].URL
		}
		row := elementRow(rec.Element, page)
		row.Covered = rec.IsCovered()
		row.Hits = len(rec.CoveredBy)
		for _, c := range rec.CoveredBy {
			by := c.TestFile
			if c.TestName != "" {
				by += " › " + c.TestName
			}
			row.CoveredBy = append(row.CoveredBy, by)
		}
		rep.Elements = append(rep.Elements, row)
	}
	sortElements(rep.Elements)

	if agg.LastUpdated > 0 {
		rep.GeneratedAt = time.UnixMilli(agg.LastUpdated)
	}
	rep.Recommendations = coverage.GenerateRecommendations(view)
	return rep
}

func newReport(title string, source Source) *Report {
	if title == "" {
		title = DefaultTitle
	}
	return &Report{
		Version:     Version,
		Title:       title,
		Source:      source,
		GeneratedAt: time.Now(),
		Types:       []TypeRow{},
		Elements:    []ElementRow{},
	}
}

func typeRows(stats map[string]coverage.TypeStat) []TypeRow {
	rows := make([]TypeRow, 0, len(stats))
	for _, t := range coverage.SortedTypes(stats) {
		s := stats[t]
		rows = append(rows, TypeRow{
			Type:       t,
			Total:      s.Total,
			Covered:    s.Covered,
			Percentage: s.Percentage,
			Applicable: s.Applicable(),
		})
	}
	return rows
}

func elementRow(el core.ElementDescriptor, fallbackPage string) ElementRow {
	name := el.AccessibleName
	if name == "" {
		name = el.TextContent
	}
	page := el.DiscoveryContext
	if page == "" {
		page = fallbackPage
	}
	return ElementRow{
		Selector: el.Selector,
		Type:     el.SemanticType,
		Name:     name,
		Page:     page,
	}
}

func elementKey(el core.ElementDescriptor) string {
	return el.Selector + "|" + el.SemanticType + "|" + el.DiscoveryContext
}

// sortElements orders rows by page, then uncovered first, then selector.
func sortElements(rows []ElementRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Covered != b.Covered {
			return !a.Covered
		}
		return strings.Compare(a.Selector, b.Selector) < 0
	})
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
