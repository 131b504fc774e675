package selector

import (
	"regexp"
	"strings"
)

// Rule classifies a raw selector string. Pattern is matched against the
// trimmed input; Extract fills the selector from the submatches.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    Kind
	Extract func(m []string, sel *Selector)
}

// DefaultRules is the ordered rule table used by Classify. Rules are tried
// top to bottom and the first match wins; anything left over is CSS.
//
//  1. explicit engine prefixes (xpath=, css=, text=, role=, test id, label=,
//     placeholder=, alt=)
//  2. bare XPath (/, //, ./, (//)
//  3. quoted strings, which Playwright treats as text selectors
var DefaultRules = []Rule{
	{
		Name:    "xpath-engine",
		Pattern: regexp.MustCompile(`^xpath=(.+)$`),
		Kind:    KindXPath,
		Extract: groupValue(1),
	},
	{
		Name:    "css-engine",
		Pattern: regexp.MustCompile(`^css=(.+)$`),
		Kind:    KindCSS,
		Extract: groupValue(1),
	},
	{
		Name:    "text-engine",
		Pattern: regexp.MustCompile(`^text=(.+)$`),
		Kind:    KindText,
		Extract: func(m []string, sel *Selector) {
			v := strings.TrimSpace(m[1])
			// text="Login" is an exact match in Playwright, text=Login is not.
			sel.Exact = isQuoted(v)
			sel.Text = stripOuterQuotes(v)
		},
	},
	{
		Name:    "role-engine",
		Pattern: regexp.MustCompile(`^role=([A-Za-z]+)\s*(?:\[\s*name\s*=\s*(.+?)\s*\])?$`),
		Kind:    KindRole,
		Extract: func(m []string, sel *Selector) {
			sel.Text = strings.ToLower(m[1])
			sel.Name = stripOuterQuotes(m[2])
		},
	},
	{
		Name:    "testid-engine",
		Pattern: regexp.MustCompile(`^(?:data-testid|data-test-id|data-test|data-cy|data-qa|testid)=(.+)$`),
		Kind:    KindTestID,
		Extract: groupValue(1),
	},
	{
		Name:    "label-engine",
		Pattern: regexp.MustCompile(`^label=(.+)$`),
		Kind:    KindLabel,
		Extract: groupValue(1),
	},
	{
		Name:    "placeholder-engine",
		Pattern: regexp.MustCompile(`^placeholder=(.+)$`),
		Kind:    KindPlaceholder,
		Extract: groupValue(1),
	},
	{
		Name:    "alt-engine",
		Pattern: regexp.MustCompile(`^alt(?:text)?=(.+)$`),
		Kind:    KindAltText,
		Extract: groupValue(1),
	},
	{
		Name:    "bare-xpath",
		Pattern: regexp.MustCompile(`^(\(*\.?//?.*)$`),
		Kind:    KindXPath,
		Extract: groupValue(1),
	},
	{
		Name:    "quoted-text",
		Pattern: regexp.MustCompile(`^("[^"]+"|'[^']+')$`),
		Kind:    KindText,
		Extract: func(m []string, sel *Selector) {
			sel.Text = stripOuterQuotes(m[1])
			sel.Exact = true
		},
	},
}

// Classifier applies an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier. A nil table means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify infers the kind of a raw selector string. Empty input yields a
// selector with no kind, which never matches anything.
func (c *Classifier) Classify(raw string) Selector {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}
	}
	for _, r := range c.rules {
		m := r.Pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		sel := Selector{Kind: r.Kind}
		if r.Extract != nil {
			r.Extract(m, &sel)
		} else {
			sel.Text = raw
		}
		return sel
	}
	return Selector{Text: raw, Kind: KindCSS}
}

var defaultClassifier = NewClassifier(nil)

// Classify infers the kind of raw using DefaultRules.
func Classify(raw string) Selector {
	return defaultClassifier.Classify(raw)
}

func groupValue(i int) func(m []string, sel *Selector) {
	return func(m []string, sel *Selector) {
		sel.Text = stripOuterQuotes(strings.TrimSpace(m[i]))
	}
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}
