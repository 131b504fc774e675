// Package discover finds the interactive elements of a page and describes
// them as core.ElementDescriptor values.
//
// Two discoverers share the same description rules: Static parses HTML with
// goquery, Live drives a real browser through Playwright. Both reduce each
// element to a RawElement first, so selector generation, semantic typing and
// accessible names are computed in one place.
package discover

import (
	"context"
	"strings"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// Discoverer returns the interactive elements of one page.
type Discoverer interface {
	Discover(ctx context.Context, target string) ([]core.ElementDescriptor, error)
}

// RawElement is what a discoverer knows about an element before description.
type RawElement struct {
	Tag            string
	Attributes     map[string]string
	Text           string
	LabelText      string // text of an associated <label>, if any
	Visible        bool
	Enabled        bool
	Bounds         *core.Bounds
	InNav          bool   // inside a <nav> or role=navigation landmark
	NthOfType      int    // 1-based index among same-tag siblings, 0 when unique
	ParentSelector string // stable selector of the parent, if it has one
}

func (r RawElement) attr(name string) string {
	return strings.TrimSpace(r.Attributes[name])
}

// Describe converts a raw element to a descriptor.
func Describe(raw RawElement, source core.DiscoverySource, context string) core.ElementDescriptor {
	raw.Tag = strings.ToLower(raw.Tag)

	el := core.ElementDescriptor{
		Selector:         BuildSelector(raw),
		SemanticType:     SemanticType(raw),
		TagName:          raw.Tag,
		TextContent:      collapse(raw.Text, textLimit),
		ID:               raw.attr("id"),
		ClassNames:       strings.Fields(raw.Attributes["class"]),
		Role:             Role(raw),
		AccessibleName:   AccessibleName(raw),
		IsVisible:        raw.Visible && (raw.Bounds == nil || !raw.Bounds.IsEmpty()),
		IsEnabled:        raw.Enabled,
		BoundingBox:      raw.Bounds,
		DiscoverySource:  source,
		DiscoveryContext: context,
	}
	if el.ID == "" {
		for _, name := range testIDAttributes {
			if v := raw.attr(name); v != "" {
				el.ID = v
				break
			}
		}
	}
	if len(raw.Attributes) > 0 {
		el.Attributes = make(map[string]string, len(raw.Attributes))
		for k, v := range raw.Attributes {
			el.Attributes[k] = v
		}
	}
	return el
}

// textLimit caps stored text content.
const textLimit = 200

func collapse(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}
