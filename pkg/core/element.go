// Package core holds the data model shared by the matcher, the coverage
// calculator and the aggregator.
package core

import "strings"

// Semantic element types produced by discoverers.
const (
	TypeButton      = "button"
	TypeInput       = "input"
	TypeLink        = "link"
	TypeSelect      = "select"
	TypeTextarea    = "textarea"
	TypeCheckbox    = "checkbox"
	TypeRadio       = "radio"
	TypeNav         = "nav"
	TypeClickable   = "clickable"
	TypeInteractive = "interactive"
)

// StandardTypes are always reported in per-type coverage, even when a page
// has none of them.
var StandardTypes = []string{
	TypeButton,
	TypeInput,
	TypeLink,
	TypeSelect,
	TypeTextarea,
	TypeCheckbox,
	TypeRadio,
}

// DiscoverySource tags where an element descriptor came from.
type DiscoverySource string

// DiscoverySource values
const (
	SourceLivePage   DiscoverySource = "live"   // Playwright-driven page
	SourceStaticHTML DiscoverySource = "static" // Parsed HTML document
	SourceTestRun    DiscoverySource = "test"   // Reported by a test run
)

// ElementDescriptor describes one interactive element discovered on a page.
// Descriptors are treated as immutable values.
type ElementDescriptor struct {
	Selector         string            `json:"selector"`               // Generated, preferably stable locator
	SemanticType     string            `json:"type"`                   // button, input, link, ...
	TagName          string            `json:"tagName,omitempty"`      // Lowercase HTML tag
	TextContent      string            `json:"text,omitempty"`         // Trimmed text content
	ID               string            `json:"id,omitempty"`           // id or surfaced test-id
	ClassNames       []string          `json:"classNames,omitempty"`   // class list
	Role             string            `json:"role,omitempty"`         // explicit or implicit ARIA role
	AccessibleName   string            `json:"accessibleName,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`   // Raw attributes, optional
	IsVisible        bool              `json:"isVisible"`
	IsEnabled        bool              `json:"isEnabled"`
	BoundingBox      *Bounds           `json:"boundingBox,omitempty"`
	DiscoverySource  DiscoverySource   `json:"discoverySource,omitempty"`
	DiscoveryContext string            `json:"discoveryContext,omitempty"` // URL or file the element was found in
}

// HasClasses reports whether every class in want is present on the element.
func (e *ElementDescriptor) HasClasses(want []string) bool {
	if len(want) == 0 {
		return false
	}
	for _, w := range want {
		found := false
		for _, c := range e.ClassNames {
			if c == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Attribute returns a raw attribute value. Well-known attributes fall back to
// the dedicated descriptor fields when the attribute map is empty.
func (e *ElementDescriptor) Attribute(name string) (string, bool) {
	if v, ok := e.Attributes[name]; ok {
		return v, true
	}
	switch name {
	case "id":
		return e.ID, e.ID != ""
	case "class":
		return strings.Join(e.ClassNames, " "), len(e.ClassNames) > 0
	case "role":
		return e.Role, e.Role != ""
	case "aria-label":
		return e.AccessibleName, e.AccessibleName != ""
	}
	return "", false
}

// Bounds represents element position and size
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the element has no rendered area.
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}
