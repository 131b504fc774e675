package aggregator

import (
	"sort"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// Discovery records one sighting of an element.
type Discovery struct {
	URL       string               `json:"url"`
	Timestamp int64                `json:"timestamp"`
	Source    core.DiscoverySource `json:"source,omitempty"`
}

// Coverage records one test that interacted with an element.
type Coverage struct {
	TestFile        string `json:"testFile"`
	TestName        string `json:"testName"`
	Timestamp       int64  `json:"timestamp"`
	InteractionType string `json:"interactionType,omitempty"`
}

// Record is the persisted coverage state of one element.
type Record struct {
	Element      core.ElementDescriptor `json:"element"`
	FirstSeenAt  int64                  `json:"firstSeenAt"`
	LastSeenAt   int64                  `json:"lastSeenAt"`
	DiscoveredIn []Discovery            `json:"discoveredIn"`
	CoveredBy    []Coverage             `json:"coveredBy"`
}

// Key returns the canonical identity key of the record's element.
func (r *Record) Key() string {
	return selector.IdentityKey(r.Element.Selector, r.Element.SemanticType)
}

// IsCovered reports whether any test covered the element.
func (r *Record) IsCovered() bool {
	return len(r.CoveredBy) > 0
}

// CoveredByTest reports whether (testFile, testName) is already recorded.
func (r *Record) CoveredByTest(testFile, testName string) bool {
	for _, c := range r.CoveredBy {
		if c.TestFile == testFile && c.TestName == testName {
			return true
		}
	}
	return false
}

func (r *Record) clone() *Record {
	c := *r
	c.DiscoveredIn = append([]Discovery(nil), r.DiscoveredIn...)
	c.CoveredBy = append([]Coverage(nil), r.CoveredBy...)
	return &c
}

// observe bumps the seen window.
func (r *Record) observe(ts int64) {
	if r.FirstSeenAt == 0 || ts < r.FirstSeenAt {
		r.FirstSeenAt = ts
	}
	if ts > r.LastSeenAt {
		r.LastSeenAt = ts
	}
}

// since keeps only the discoveries and coverage recorded after ts. It
// returns the test files whose coverage was all removed, and false when
// nothing is left of the record.
func (r *Record) since(ts int64) (map[string]bool, bool) {
	if r.FirstSeenAt > ts {
		return nil, true
	}

	disc := make([]Discovery, 0, len(r.DiscoveredIn))
	for _, d := range r.DiscoveredIn {
		if d.Timestamp > ts {
			disc = append(disc, d)
		}
	}
	var dropped map[string]bool
	cov := make([]Coverage, 0, len(r.CoveredBy))
	for _, c := range r.CoveredBy {
		if c.Timestamp > ts {
			cov = append(cov, c)
			continue
		}
		if dropped == nil {
			dropped = make(map[string]bool)
		}
		dropped[c.TestFile] = true
	}
	for _, c := range cov {
		delete(dropped, c.TestFile)
	}
	if len(disc) == 0 && len(cov) == 0 {
		return dropped, false
	}

	r.DiscoveredIn, r.CoveredBy = disc, cov
	r.FirstSeenAt, r.LastSeenAt = 0, 0
	for _, d := range disc {
		r.observe(d.Timestamp)
	}
	for _, c := range cov {
		r.observe(c.Timestamp)
	}
	return dropped, true
}

// merge folds src into r. Lists are unioned, never shortened; CoveredBy
// keeps the earliest entry per (testFile, testName).
func (r *Record) merge(src *Record) {
	if src.FirstSeenAt != 0 {
		r.observe(src.FirstSeenAt)
	}
	if src.LastSeenAt != 0 {
		r.observe(src.LastSeenAt)
	}
	r.DiscoveredIn = mergeDiscoveries(r.DiscoveredIn, src.DiscoveredIn)
	r.CoveredBy = mergeCoverage(r.CoveredBy, src.CoveredBy)
}

func mergeDiscoveries(a, b []Discovery) []Discovery {
	if len(b) == 0 {
		return a
	}
	seen := make(map[Discovery]bool, len(a)+len(b))
	out := make([]Discovery, 0, len(a)+len(b))
	for _, list := range [][]Discovery{a, b} {
		for _, d := range list {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

type testID struct{ file, name string }

func mergeCoverage(a, b []Coverage) []Coverage {
	if len(b) == 0 && len(a) < 2 {
		return a
	}
	index := make(map[testID]int, len(a)+len(b))
	out := make([]Coverage, 0, len(a)+len(b))
	for _, list := range [][]Coverage{a, b} {
		for _, c := range list {
			id := testID{c.TestFile, c.TestName}
			if i, ok := index[id]; ok {
				if c.Timestamp < out[i].Timestamp {
					out[i] = c
				}
				continue
			}
			index[id] = len(out)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
