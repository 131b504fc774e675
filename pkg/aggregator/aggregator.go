// Package aggregator keeps element coverage across test runs and processes.
//
// State is a map of identity key to Record plus a test file index, persisted
// as one JSON document. Every mutating call saves. A save takes an exclusive
// lock on "<path>.lock", merges whatever other processes wrote since the last
// save, and replaces the file atomically, so parallel workers sharing a path
// do not lose each other's updates.
//
// Nothing here returns an error to the caller: unreadable state starts
// empty, failed writes keep the in-memory state, and an element that cannot
// be processed is skipped. Each case is logged.
package aggregator

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/coverage"
	"github.com/devicelab-dev/ui-coverage/pkg/logger"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// Aggregator owns the coverage records of one worker. It is safe for
// concurrent use within a process.
type Aggregator struct {
	mu           sync.Mutex
	path         string
	log          *zap.Logger
	now          func() time.Time
	records      map[string]*Record
	testCoverage map[string]map[string]struct{}
	aliases      map[string]string
	lastUpdated  int64
	clearedAt    int64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// PageCoverage is the per-URL slice of an aggregated report.
type PageCoverage struct {
	TotalElements      int `json:"totalElements"`
	CoveredElements    int `json:"coveredElements"`
	CoveragePercentage int `json:"coveragePercentage"`
}

// AggregatedCoverage is derived from the records on demand.
type AggregatedCoverage struct {
	TotalElements      int                          `json:"totalElements"`
	CoveredElements    int                          `json:"coveredElements"`
	CoveragePercentage int                          `json:"coveragePercentage"`
	UncoveredElements  []core.ElementDescriptor     `json:"uncoveredElements"`
	CoverageByType     map[string]int               `json:"coverageByType"`
	TypeStats          map[string]coverage.TypeStat `json:"typeStats"`
	CoverageByPage     map[string]PageCoverage      `json:"coverageByPage"`
	TestFiles          []string                     `json:"testFiles"`
	LastUpdated        int64                        `json:"lastUpdated"`
}

// Open loads the coverage file at path. An empty path keeps state in
// memory only. A missing file starts empty; an unreadable one starts empty
// and logs a warning.
func Open(path string, log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		path: path,
		log:  logger.OrNop(log).Named("aggregator"),
		now:  time.Now,
	}
	a.reset()
	for _, opt := range opts {
		opt(a)
	}

	if path == "" {
		return a
	}

	doc, err := readDocument(path)
	switch {
	case err == nil:
		a.absorb(doc)
		a.log.Debug("coverage state loaded", zap.String("path", path), zap.Int("records", len(a.records)))
	case isNotExist(err):
		a.log.Debug("no coverage state yet", zap.String("path", path))
	default:
		a.log.Warn("coverage state unreadable, starting empty",
			zap.String("path", path), zap.Error(core.ErrCorruptState.WithCause(err)))
	}
	return a
}

// Path returns the backing file path, empty for an in-memory aggregator.
func (a *Aggregator) Path() string {
	return a.path
}

// AddDiscoveredElements records elements seen on a page. label is the page
// URL or another page label; when empty the test file is used instead.
// It returns how many new records were created.
func (a *Aggregator) AddDiscoveredElements(elements []core.ElementDescriptor, testFile, label string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	url := label
	if url == "" {
		url = testFile
	}
	ts := a.stamp()
	created := 0

	for i := range elements {
		el := elements[i]
		a.guard(el, func() error {
			if strings.TrimSpace(el.Selector) == "" {
				return errEmptySelector
			}
			key := a.resolve(selector.IdentityKey(el.Selector, el.SemanticType))
			entry := Discovery{URL: url, Timestamp: ts, Source: el.DiscoverySource}

			rec, ok := a.records[key]
			if !ok {
				a.records[key] = &Record{
					Element:      el,
					FirstSeenAt:  ts,
					LastSeenAt:   ts,
					DiscoveredIn: []Discovery{entry},
					CoveredBy:    []Coverage{},
				}
				created++
				return nil
			}

			rec.observe(ts)
			if n := len(rec.DiscoveredIn); n == 0 || rec.DiscoveredIn[n-1].URL != url {
				rec.DiscoveredIn = append(rec.DiscoveredIn, entry)
			}
			return nil
		})
	}

	a.log.Debug("elements discovered",
		zap.String("testFile", testFile), zap.String("page", url),
		zap.Int("elements", len(elements)), zap.Int("new", created))
	a.persist()
	return created
}

// MarkElementsCovered records that testName in testFile interacted with
// elements. Elements resolve to existing records by identity key first,
// then by flexible matching; an element with no record gets a new one.
// Marking the same test twice is a no-op. It returns how many coverage
// entries were added.
func (a *Aggregator) MarkElementsCovered(elements []core.ElementDescriptor, testFile, testName, interactionType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.stamp()
	added := 0

	for i := range elements {
		el := elements[i]
		a.guard(el, func() error {
			if strings.TrimSpace(el.Selector) == "" {
				return errEmptySelector
			}
			key, rec := a.lookup(el)
			if rec == nil {
				if el.DiscoverySource == "" {
					el.DiscoverySource = core.SourceTestRun
				}
				key = selector.IdentityKey(el.Selector, el.SemanticType)
				rec = &Record{
					Element:      el,
					FirstSeenAt:  ts,
					LastSeenAt:   ts,
					DiscoveredIn: []Discovery{},
				}
				a.records[key] = rec
			}

			a.indexTest(testFile, key)
			if rec.CoveredByTest(testFile, testName) {
				return nil
			}
			rec.CoveredBy = append(rec.CoveredBy, Coverage{
				TestFile:        testFile,
				TestName:        testName,
				Timestamp:       ts,
				InteractionType: interactionType,
			})
			added++
			return nil
		})
	}

	a.log.Debug("elements covered",
		zap.String("testFile", testFile), zap.String("test", testName),
		zap.Int("elements", len(elements)), zap.Int("added", added))
	a.persist()
	return added
}

// lookup resolves an element to its record: exact identity key, then a
// record of the same type whose selector is equivalent after normalization
// or has the same attribute set.
func (a *Aggregator) lookup(el core.ElementDescriptor) (string, *Record) {
	key := a.resolve(selector.IdentityKey(el.Selector, el.SemanticType))
	if rec, ok := a.records[key]; ok {
		return key, rec
	}

	wantAttrs := selector.AttributeSet(el.Selector)

	for _, k := range a.sortedRecordKeys() {
		rec := a.records[k]
		if rec.Element.SemanticType != el.SemanticType {
			continue
		}
		if selector.Equivalent(rec.Element.Selector, el.Selector) {
			return k, rec
		}
		if wantAttrs != nil && reflect.DeepEqual(selector.AttributeSet(rec.Element.Selector), wantAttrs) {
			return k, rec
		}
	}
	return "", nil
}

// GenerateAggregatedCoverage computes the report over every record.
func (a *Aggregator) GenerateAggregatedCoverage() AggregatedCoverage {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := a.sortedRecordKeys()
	elements := make([]core.ElementDescriptor, 0, len(keys))
	covered := make([]bool, 0, len(keys))

	out := AggregatedCoverage{
		UncoveredElements: []core.ElementDescriptor{},
		CoverageByPage:    map[string]PageCoverage{},
		TestFiles:         make([]string, 0, len(a.testCoverage)),
		LastUpdated:       a.lastUpdated,
	}

	for _, k := range keys {
		rec := a.records[k]
		elements = append(elements, rec.Element)
		covered = append(covered, rec.IsCovered())
		if rec.IsCovered() {
			out.CoveredElements++
		} else {
			out.UncoveredElements = append(out.UncoveredElements, rec.Element)
		}

		pages := make(map[string]bool, len(rec.DiscoveredIn))
		for _, d := range rec.DiscoveredIn {
			if d.URL == "" || pages[d.URL] {
				continue
			}
			pages[d.URL] = true
			pc := out.CoverageByPage[d.URL]
			pc.TotalElements++
			if rec.IsCovered() {
				pc.CoveredElements++
			}
			out.CoverageByPage[d.URL] = pc
		}
	}

	for url, pc := range out.CoverageByPage {
		pc.CoveragePercentage = coverage.Percentage(pc.CoveredElements, pc.TotalElements)
		out.CoverageByPage[url] = pc
	}

	out.TotalElements = len(keys)
	out.CoveragePercentage = coverage.Percentage(out.CoveredElements, out.TotalElements)
	out.TypeStats, out.CoverageByType = coverage.TypeBreakdown(elements, covered)

	for file := range a.testCoverage {
		out.TestFiles = append(out.TestFiles, file)
	}
	sort.Strings(out.TestFiles)

	return out
}

// Clear drops every record. The clear time is saved with the document, and
// any process merging state recorded before it discards that state.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset()
	a.clearedAt = a.stamp()
	a.log.Info("coverage state cleared", zap.String("path", a.path))
	a.persist()
}

// Record returns a copy of the record stored under key. Keys folded by
// CleanupDuplicates resolve to their canonical record.
func (a *Aggregator) Record(key string) (*Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[a.resolve(key)]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Records returns copies of every record ordered by key.
func (a *Aggregator) Records() []*Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := a.sortedRecordKeys()
	out := make([]*Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.records[k].clone())
	}
	return out
}

// Keys returns the stored record keys in order.
func (a *Aggregator) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedRecordKeys()
}

// TestKeys returns the record keys covered by a test file.
func (a *Aggregator) TestKeys(testFile string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.testCoverage[testFile])
}

// stamp returns the current time in milliseconds, always after the last
// clear.
func (a *Aggregator) stamp() int64 {
	ts := a.now().UnixMilli()
	if ts <= a.clearedAt {
		ts = a.clearedAt + 1
	}
	return ts
}

func (a *Aggregator) reset() {
	a.records = make(map[string]*Record)
	a.testCoverage = make(map[string]map[string]struct{})
	a.aliases = make(map[string]string)
}

func (a *Aggregator) indexTest(testFile, key string) {
	if testFile == "" {
		return
	}
	set, ok := a.testCoverage[testFile]
	if !ok {
		set = make(map[string]struct{})
		a.testCoverage[testFile] = set
	}
	set[key] = struct{}{}
}

// resolve follows the alias chain left by dedup passes.
func (a *Aggregator) resolve(key string) string {
	for i := 0; i <= len(a.aliases); i++ {
		next, ok := a.aliases[key]
		if !ok || next == key {
			return key
		}
		key = next
	}
	return key
}

func (a *Aggregator) sortedRecordKeys() []string {
	keys := make([]string, 0, len(a.records))
	for k := range a.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var errEmptySelector = core.ErrElementSkipped.WithMessage("element has no selector")

// guard runs fn for one element. An error or panic skips that element only.
func (a *Aggregator) guard(el core.ElementDescriptor, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Debug("element skipped",
				zap.String("selector", el.Selector),
				zap.Any("panic", r),
				zap.Error(core.ErrElementSkipped))
		}
	}()
	if err := fn(); err != nil {
		a.log.Debug("element skipped", zap.String("type", el.SemanticType), zap.Error(err))
	}
}

// absorb merges a document into memory. Keys the document or memory has
// aliased are folded into their canonical records.
func (a *Aggregator) absorb(doc *document) {
	if doc.ClearedAt > a.clearedAt {
		a.clearedAt = doc.ClearedAt
	}
	for from, to := range doc.Aliases {
		if _, ok := a.aliases[from]; !ok && from != to {
			a.aliases[from] = to
		}
	}
	for key, rec := range doc.Records {
		a.mergeRecord(a.resolve(key), rec)
	}
	for key, rec := range a.records {
		if target := a.resolve(key); target != key {
			delete(a.records, key)
			a.mergeRecord(target, rec)
		}
	}
	for file, keys := range doc.TestCoverage {
		for _, k := range keys {
			a.indexTest(file, a.resolve(k))
		}
	}
	a.reindex()
	if a.clearedAt > 0 {
		a.forget(a.clearedAt)
	}
	if doc.LastUpdated > a.lastUpdated {
		a.lastUpdated = doc.LastUpdated
	}
}

// forget drops discoveries and coverage recorded at or before ts, and the
// records and test file entries left with nothing.
func (a *Aggregator) forget(ts int64) {
	removed := make(map[string]bool)
	uncovered := make(map[string]map[string]bool)
	for key, rec := range a.records {
		files, keep := rec.since(ts)
		if !keep {
			delete(a.records, key)
			removed[key] = true
			continue
		}
		if len(files) > 0 {
			uncovered[key] = files
		}
	}
	if len(removed) == 0 && len(uncovered) == 0 {
		return
	}
	for file, set := range a.testCoverage {
		for k := range set {
			if removed[k] || uncovered[k][file] {
				delete(set, k)
			}
		}
		if len(set) == 0 {
			delete(a.testCoverage, file)
		}
	}
	a.log.Debug("state from before clear dropped",
		zap.Int64("clearedAt", ts), zap.Int("records", len(removed)))
}

func (a *Aggregator) mergeRecord(key string, rec *Record) {
	if cur, ok := a.records[key]; ok {
		if cur != rec {
			cur.merge(rec)
		}
		return
	}
	a.records[key] = rec
}

// reindex points every test file entry at a live canonical key.
func (a *Aggregator) reindex() {
	for file, set := range a.testCoverage {
		next := make(map[string]struct{}, len(set))
		for k := range set {
			next[a.resolve(k)] = struct{}{}
		}
		a.testCoverage[file] = next
	}
}

func (a *Aggregator) snapshot() *document {
	doc := &document{
		Records:      make(map[string]*Record, len(a.records)),
		TestCoverage: make(map[string][]string, len(a.testCoverage)),
		LastUpdated:  a.lastUpdated,
		ClearedAt:    a.clearedAt,
	}
	for k, rec := range a.records {
		doc.Records[k] = rec
	}
	for file, set := range a.testCoverage {
		doc.TestCoverage[file] = sortedKeys(set)
	}
	if len(a.aliases) > 0 {
		doc.Aliases = make(map[string]string, len(a.aliases))
		for k, v := range a.aliases {
			doc.Aliases[k] = v
		}
	}
	return doc
}

// persist saves and logs failures; the in-memory state is kept either way.
func (a *Aggregator) persist() {
	if a.path == "" {
		return
	}
	if err := a.save(); err != nil {
		a.log.Warn("coverage state not saved",
			zap.String("path", a.path), zap.Error(core.ErrWriteState.WithCause(err)))
	}
}

func (a *Aggregator) save() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}

	unlock, err := lockFile(a.path + ".lock")
	if err != nil {
		a.log.Warn("saving without lock", zap.String("path", a.path), zap.Error(core.ErrLockState.WithCause(err)))
		unlock = func() {}
	}
	defer unlock()

	doc, err := readDocument(a.path)
	switch {
	case err == nil:
		a.absorb(doc)
	case isNotExist(err):
	default:
		a.log.Warn("overwriting unreadable coverage state",
			zap.String("path", a.path), zap.Error(core.ErrCorruptState.WithCause(err)))
	}

	a.lastUpdated = a.now().UnixMilli()
	return writeDocument(a.path, a.snapshot())
}
