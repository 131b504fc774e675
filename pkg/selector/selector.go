// Package selector models selector expressions extracted from test source
// and canonicalizes them for identity keys and display.
package selector

import (
	"strconv"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// Kind is the selector dialect inferred by the extractor.
type Kind string

// Kind values
const (
	KindCSS         Kind = "css"
	KindXPath       Kind = "xpath"
	KindText        Kind = "text"
	KindRole        Kind = "role"
	KindTestID      Kind = "testid"
	KindAltText     Kind = "alttext"
	KindPlaceholder Kind = "placeholder"
	KindLabel       Kind = "label"
)

// Kinds lists every recognized kind in a fixed order.
var Kinds = []Kind{
	KindCSS,
	KindXPath,
	KindText,
	KindRole,
	KindTestID,
	KindAltText,
	KindPlaceholder,
	KindLabel,
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Selector is one selector occurrence extracted from test source.
// Text holds the locator value: a CSS or XPath expression, or the text,
// role, test id, label, placeholder or alt text being looked up.
type Selector struct {
	Text       string `json:"text"`
	Kind       Kind   `json:"kind"`
	Name       string `json:"name,omitempty"`  // Accessible name filter (role selectors)
	Exact      bool   `json:"exact,omitempty"` // Whole-string text match
	SourceFile string `json:"sourceFile,omitempty"`
	SourceLine int    `json:"sourceLine,omitempty"`
	Context    string `json:"context,omitempty"` // Source line the selector came from
}

// Normalized returns the matching form of the selector text.
func (s Selector) Normalized() string {
	return NormalizeForMatching(s.Text)
}

// Describe returns a short human-readable description like role=button.
func (s Selector) Describe() string {
	switch s.Kind {
	case KindCSS:
		return NormalizeForDisplay(s.Text)
	case KindXPath:
		return "xpath=" + NormalizeForDisplay(s.Text)
	case KindRole:
		if s.Name != "" {
			return "role=" + s.Text + "[name=" + strconv.Quote(s.Name) + "]"
		}
		return "role=" + s.Text
	default:
		return string(s.Kind) + "=" + strconv.Quote(truncate(s.Text, displayLimit))
	}
}

// Location returns file:line when the source position is known.
func (s Selector) Location() string {
	if s.SourceFile == "" {
		return ""
	}
	if s.SourceLine <= 0 {
		return s.SourceFile
	}
	return s.SourceFile + ":" + strconv.Itoa(s.SourceLine)
}

// malformed wraps a parse failure. Callers inside this module treat it as
// "no match", never as a fatal error.
func malformed(s string) error {
	return core.ErrMalformedSelector.WithDetails(map[string]interface{}{"selector": s})
}
