// Package matcher decides which discovered element, if any, each test
// selector covers.
//
// Matching is first-fit with claims. For every selector, in input order:
//  1. exact match (normalized selector equality, #id or .class shorthand)
//     against unclaimed elements;
//  2. the kind-specific predicate against unclaimed elements;
//  3. steps 1-2 against already claimed elements, which records that the
//     selector found a target without claiming the element twice.
//
// A selector that matches nothing is reported as unmatched.
package matcher

import (
	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// Strategy names reported on a Match.
const (
	StrategyExact          = "exact"
	StrategyID             = "id"
	StrategyClass          = "class"
	StrategyAttribute      = "attribute"
	StrategyDescendant     = "descendant"
	StrategyCompound       = "compound"
	StrategyText           = "text"
	StrategyRole           = "role"
	StrategyTestID         = "testid"
	StrategyAccessibleName = "accessible-name"
	StrategyXPath          = "xpath"
)

// Match is the outcome for a single selector.
type Match struct {
	Selector selector.Selector
	Element  int    // index into the element list, -1 when unmatched
	Strategy string // rule that produced the match
	Claimed  bool   // true when this selector claimed the element first
}

// Matched reports whether the selector found a target.
func (m Match) Matched() bool {
	return m.Element >= 0
}

// Result holds per-selector matches and the claimed element set.
type Result struct {
	Matches []Match
	claimed []bool
	count   int
}

// IsClaimed reports whether element i was claimed by some selector.
func (r *Result) IsClaimed(i int) bool {
	return i >= 0 && i < len(r.claimed) && r.claimed[i]
}

// ClaimedCount is the size of the claimed set.
func (r *Result) ClaimedCount() int {
	return r.count
}

// Unmatched returns the selectors that found no element.
func (r *Result) Unmatched() []selector.Selector {
	var out []selector.Selector
	for _, m := range r.Matches {
		if !m.Matched() {
			out = append(out, m.Selector)
		}
	}
	return out
}

// MatchedCount returns how many selectors found a target.
func (r *Result) MatchedCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Matched() {
			n++
		}
	}
	return n
}

// Run matches selectors against the elements of one page or run.
func Run(selectors []selector.Selector, elements []core.ElementDescriptor) *Result {
	res := &Result{
		Matches: make([]Match, 0, len(selectors)),
		claimed: make([]bool, len(elements)),
	}

	normalized := make([]string, len(elements))
	for i := range elements {
		normalized[i] = selector.NormalizeForMatching(elements[i].Selector)
	}

	for _, sel := range selectors {
		p := compile(sel)
		m := Match{Selector: sel, Element: -1}

		if idx, strategy, ok := p.find(elements, normalized, res.claimed, false); ok {
			res.claimed[idx] = true
			res.count++
			m.Element, m.Strategy, m.Claimed = idx, strategy, true
		} else if idx, strategy, ok := p.find(elements, normalized, res.claimed, true); ok {
			m.Element, m.Strategy = idx, strategy
		}

		res.Matches = append(res.Matches, m)
	}

	return res
}

// find scans elements whose claim state equals claimed, exact rule first.
func (p *compiled) find(elements []core.ElementDescriptor, normalized []string, claims []bool, claimed bool) (int, string, bool) {
	for i := range elements {
		if claims[i] != claimed {
			continue
		}
		el := &elements[i]
		if safeMatch(func() bool { return p.exact(el, normalized[i]) }) {
			return i, StrategyExact, true
		}
	}
	for i := range elements {
		if claims[i] != claimed {
			continue
		}
		el := &elements[i]
		var strategy string
		ok := safeMatch(func() bool {
			var matched bool
			strategy, matched = p.predicate(el)
			return matched
		})
		if ok {
			return i, strategy, true
		}
	}
	return -1, "", false
}

// safeMatch evaluates one predicate and treats a panic as "no match" so a
// single malformed element cannot abort the batch.
func safeMatch(fn func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn()
}
