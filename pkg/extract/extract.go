// Package extract pulls selector expressions out of test sources.
//
// Two extractors are provided: Source scans JavaScript and TypeScript test
// files (Playwright, Cypress, Testing Library, WebdriverIO) with an ordered
// regex rule table, and Flow walks Maestro YAML flows. Both emit
// selector.Selector values tagged with the file and line they came from.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/devicelab-dev/ui-coverage/pkg/logger"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// Extractor returns the selectors used in one source file.
type Extractor interface {
	Extract(path string, src []byte) ([]selector.Selector, error)
}

var (
	sourceExtractor = NewSource(nil)
	flowExtractor   = &Flow{}
)

// ForFile returns the extractor for path's extension, or nil when the file
// type is not supported.
func ForFile(path string) Extractor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts":
		return sourceExtractor
	case ".yaml", ".yml":
		return flowExtractor
	}
	return nil
}

// FileSelectors groups the selectors found in one test file.
type FileSelectors struct {
	File      string
	Selectors []selector.Selector
}

// Option configures FromFiles.
type Option func(*options)

type options struct {
	env map[string]string
}

// WithEnv supplies variables for ${...} expressions in flows.
func WithEnv(env map[string]string) Option {
	return func(o *options) { o.env = env }
}

// FromFiles extracts selectors from every file. Unreadable or unparsable
// files are logged and skipped; an error is returned only when no file
// could be read at all.
func FromFiles(files []string, log *zap.Logger, opts ...Option) ([]FileSelectors, error) {
	log = logger.OrNop(log).Named("extract")
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	flows := &Flow{Env: o.env}

	var (
		out     []FileSelectors
		lastErr error
		read    int
	)
	for _, path := range files {
		ex := ForFile(path)
		if ex == nil {
			log.Debug("unsupported test file", zap.String("file", path))
			continue
		}
		if _, ok := ex.(*Flow); ok {
			ex = flows
		}

		src, err := os.ReadFile(path) //#nosec G304 -- user-provided test file
		if err != nil {
			lastErr = err
			log.Warn("skipping unreadable test file", zap.String("file", path), zap.Error(err))
			continue
		}
		read++

		sels, err := ex.Extract(path, src)
		if err != nil {
			log.Warn("skipping test file", zap.String("file", path), zap.Error(err))
			continue
		}
		log.Debug("selectors extracted", zap.String("file", path), zap.Int("count", len(sels)))
		out = append(out, FileSelectors{File: path, Selectors: sels})
	}

	if read == 0 && lastErr != nil {
		return nil, fmt.Errorf("read test files: %w", lastErr)
	}
	return out, nil
}

// All flattens grouped selectors in file order.
func All(groups []FileSelectors) []selector.Selector {
	var out []selector.Selector
	for _, g := range groups {
		out = append(out, g.Selectors...)
	}
	return out
}

// interactions maps call names found on a selector's source line to the
// interaction recorded in coverage.
var interactions = []struct {
	token string
	kind  string
}{
	{".dblclick(", "dblclick"},
	{"doubleTapOn", "dblclick"},
	{".click(", "click"},
	{"tapOn", "click"},
	{"longPressOn", "press"},
	{".fill(", "fill"},
	{".type(", "fill"},
	{".setValue(", "fill"},
	{".check(", "check"},
	{".uncheck(", "check"},
	{".selectOption(", "select"},
	{".select(", "select"},
	{".hover(", "hover"},
	{"scrollUntilVisible", "scroll"},
	{"copyTextFrom", "read"},
	{"expect(", "assert"},
	{".should(", "assert"},
	{"assertVisible", "assert"},
	{"assertNotVisible", "assert"},
}

// InteractionFor guesses the interaction from a selector's source line.
func InteractionFor(sel selector.Selector) string {
	for _, it := range interactions {
		if strings.Contains(sel.Context, it.token) {
			return it.kind
		}
	}
	return "locate"
}
