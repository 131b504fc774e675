package aggregator

import (
	"go.uber.org/zap"
)

// DedupReport summarizes one CleanupDuplicates pass.
type DedupReport struct {
	Before  int `json:"before"`
	After   int `json:"after"`
	Groups  int `json:"groups"`  // canonical keys that had more than one record
	Merged  int `json:"merged"`  // records folded into another
	Rekeyed int `json:"rekeyed"` // single records moved to their canonical key
}

// Changed reports whether the pass rewrote anything.
func (r DedupReport) Changed() bool {
	return r.Merged > 0 || r.Rekeyed > 0
}

// CleanupDuplicates folds records whose stored key differs from the
// canonical identity key of their element. Records are first laid out in an
// arena, grouped by canonical key, then each group collapses into one record
// holding the union of its discoveries and coverage. Running it again is a
// no-op.
func (a *Aggregator) CleanupDuplicates() DedupReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := a.sortedRecordKeys()
	arena := make([]*Record, len(keys))
	groups := make(map[string][]int, len(keys))
	var order []string

	for id, k := range keys {
		arena[id] = a.records[k]
		canonical := arena[id].Key()
		if _, ok := groups[canonical]; !ok {
			order = append(order, canonical)
		}
		groups[canonical] = append(groups[canonical], id)
	}

	report := DedupReport{Before: len(keys)}
	records := make(map[string]*Record, len(order))

	for _, canonical := range order {
		ids := groups[canonical]
		base := representative(ids, keys, canonical)

		rec := arena[base].clone()
		for _, id := range ids {
			if id != base {
				rec.merge(arena[id])
			}
		}
		rec.CoveredBy = mergeCoverage(rec.CoveredBy, nil)
		records[canonical] = rec

		if len(ids) > 1 {
			report.Groups++
			report.Merged += len(ids) - 1
		} else if keys[ids[0]] != canonical {
			report.Rekeyed++
		}
		for _, id := range ids {
			if keys[id] != canonical {
				a.aliases[keys[id]] = canonical
			}
		}
		delete(a.aliases, canonical)
	}

	report.After = len(records)
	if !report.Changed() {
		return report
	}

	a.records = records
	a.reindex()

	a.log.Info("duplicate records merged",
		zap.Int("before", report.Before),
		zap.Int("after", report.After),
		zap.Int("groups", report.Groups))
	a.persist()
	return report
}

// representative picks the record whose stored key is already canonical,
// falling back to the first one in key order.
func representative(ids []int, keys []string, canonical string) int {
	for _, id := range ids {
		if keys[id] == canonical {
			return id
		}
	}
	return ids[0]
}
