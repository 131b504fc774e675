package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// literal matches a single, double or backtick quoted string. Template
// literals with interpolation are left out since their value is unknown
// until runtime.
const literal = `(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"|` + "`([^`$]*)`" + `)`

// SourceRule turns one call pattern into selectors. Pattern is matched
// against every line; Build receives each submatch and may return false to
// drop it.
type SourceRule struct {
	Name    string
	Pattern *regexp.Regexp
	Build   func(m []string) (selector.Selector, bool)
}

// DefaultSourceRules is the ordered rule table for JS and TS test code.
// Every rule is applied to every line, so a chained call such as
// page.locator('form').getByRole('button') yields both selectors.
var DefaultSourceRules = []SourceRule{
	{
		// getByRole('button', { name: 'Save', exact: true }) and the
		// findBy/queryBy/getAllBy variants
		Name:    "by-role",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByRole\(\s*` + literal + `\s*(?:,\s*\{([^}]*)\})?`),
		Build: func(m []string) (selector.Selector, bool) {
			role := strings.ToLower(str(m, 1))
			if role == "" {
				return selector.Selector{}, false
			}
			opts := m[4]
			return selector.Selector{
				Kind:  selector.KindRole,
				Text:  role,
				Name:  nameOption(opts),
				Exact: exactOption(opts),
			}, true
		},
	},
	{
		Name:    "by-text",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByText\(\s*` + literal + `\s*(?:,\s*\{([^}]*)\})?`),
		Build:   byValue(selector.KindText),
	},
	{
		Name:    "by-test-id",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByTestId\(\s*` + literal),
		Build:   byValue(selector.KindTestID),
	},
	{
		Name:    "by-label",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByLabel(?:Text)?\(\s*` + literal + `\s*(?:,\s*\{([^}]*)\})?`),
		Build:   byValue(selector.KindLabel),
	},
	{
		Name:    "by-placeholder",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByPlaceholder(?:Text)?\(\s*` + literal + `\s*(?:,\s*\{([^}]*)\})?`),
		Build:   byValue(selector.KindPlaceholder),
	},
	{
		Name:    "by-alt-text",
		Pattern: regexp.MustCompile(`\b(?:get|find|query)(?:All)?ByAltText\(\s*` + literal + `\s*(?:,\s*\{([^}]*)\})?`),
		Build:   byValue(selector.KindAltText),
	},
	{
		// cy.contains('Save') or cy.contains('button', 'Save'); the
		// two-argument form is handled by cy-contains-scoped.
		Name:    "cy-contains",
		Pattern: regexp.MustCompile(`(?:\bcy|\))\.contains\(\s*` + literal + `\s*\)`),
		Build:   byValue(selector.KindText),
	},
	{
		Name:    "cy-contains-scoped",
		Pattern: regexp.MustCompile(`(?:\bcy|\))\.contains\(\s*` + literal + `\s*,\s*` + literal + `\s*\)`),
		Build: func(m []string) (selector.Selector, bool) {
			text := unescape(str(m, 4))
			if text == "" {
				return selector.Selector{}, false
			}
			return selector.Selector{Kind: selector.KindText, Text: text}, true
		},
	},
	{
		// page.click('#save') and the other page-level actions, any
		// .locator(), cy.get(), .find() and WebdriverIO $() / $$(). Locator
		// actions such as locator.fill('text') take a value, not a selector,
		// so only page and frame receivers count. The argument may carry an
		// engine prefix (text=, xpath=, role=) and goes through the classifier.
		Name: "locator",
		Pattern: regexp.MustCompile(`(?:\b(?:page|frame)\.(?:click|dblclick|fill|type|check|uncheck|hover|selectOption|` +
			`waitForSelector|isVisible|textContent|inputValue|focus|press|tap|\$\$?)|\.locator|\bcy\.get|\.find|` +
			`(?:^|[^\w.$])\$\$?)\(\s*` + literal),
		Build: func(m []string) (selector.Selector, bool) {
			raw := unescape(str(m, 1))
			if raw == "" || strings.HasPrefix(raw, "@") {
				// cy.get('@alias') refers to an earlier selector
				return selector.Selector{}, false
			}
			sel := selector.Classify(raw)
			return sel, sel.Text != ""
		},
	},
}

// Source extracts selectors from JavaScript and TypeScript test files.
type Source struct {
	rules []SourceRule
}

// NewSource creates a source extractor. A nil table means DefaultSourceRules.
func NewSource(rules []SourceRule) *Source {
	if rules == nil {
		rules = DefaultSourceRules
	}
	return &Source{rules: rules}
}

// Extract scans src line by line. Comment lines are skipped.
func (s *Source) Extract(path string, src []byte) ([]selector.Selector, error) {
	var out []selector.Selector

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	inBlock := false

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if inBlock {
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			inBlock = !strings.Contains(trimmed, "*/")
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		for _, rule := range s.rules {
			for _, m := range rule.Pattern.FindAllStringSubmatch(line, -1) {
				sel, ok := rule.Build(m)
				if !ok {
					continue
				}
				sel.SourceFile = path
				sel.SourceLine = lineNo
				sel.Context = trimmed
				out = append(out, sel)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan %s: %w", path, err)
	}
	return out, nil
}

func byValue(kind selector.Kind) func(m []string) (selector.Selector, bool) {
	return func(m []string) (selector.Selector, bool) {
		v := unescape(str(m, 1))
		if v == "" {
			return selector.Selector{}, false
		}
		opts := ""
		if len(m) > 4 {
			opts = m[4]
		}
		return selector.Selector{Kind: kind, Text: v, Exact: exactOption(opts)}, true
	}
}

// str returns the first non-empty of the three literal groups starting at i.
func str(m []string, i int) string {
	for j := i; j < i+3 && j < len(m); j++ {
		if m[j] != "" {
			return m[j]
		}
	}
	return ""
}

var (
	escapeRe      = regexp.MustCompile(`\\(.)`)
	nameOptionRe  = regexp.MustCompile(`\bname\s*:\s*` + literal)
	exactOptionRe = regexp.MustCompile(`\bexact\s*:\s*true\b`)
)

func unescape(s string) string {
	return escapeRe.ReplaceAllString(s, "$1")
}

// nameOption reads a string name from an options object literal. Regex
// names (name: /save/i) are not resolved.
func nameOption(opts string) string {
	if opts == "" {
		return ""
	}
	m := nameOptionRe.FindStringSubmatch(opts)
	if m == nil {
		return ""
	}
	return unescape(str(m, 1))
}

func exactOption(opts string) bool {
	return opts != "" && exactOptionRe.MatchString(opts)
}
