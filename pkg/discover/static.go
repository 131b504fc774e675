package discover

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// InteractiveQuery selects the elements both discoverers consider
// interactive.
const InteractiveQuery = `button, a[href], input, select, textarea, [role=button], [role=link], [role=tab], ` +
	`[role=checkbox], [role=radio], [role=switch], [role=menuitem], [role=option], [role=combobox], ` +
	`[role=textbox], [onclick], [contenteditable=true]`

// Static discovers elements in saved HTML without a browser. Visibility is
// approximated from attributes and inline styles.
type Static struct {
	IncludeHidden bool
}

// NewStatic creates a static HTML discoverer.
func NewStatic(includeHidden bool) *Static {
	return &Static{IncludeHidden: includeHidden}
}

// Discover reads the HTML file at path.
func (s *Static) Discover(ctx context.Context, path string) ([]core.ElementDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path) //#nosec G304 -- user-provided HTML file
	if err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(err).WithDetails(map[string]interface{}{"target": path})
	}
	defer f.Close()

	return s.DiscoverHTML(f, path)
}

// DiscoverHTML parses HTML from r; pageURL is recorded as discovery context.
func (s *Static) DiscoverHTML(r io.Reader, pageURL string) ([]core.ElementDescriptor, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(err).WithDetails(map[string]interface{}{"target": pageURL})
	}

	labels := labelTexts(doc)
	var elements []core.ElementDescriptor

	doc.Find(InteractiveQuery).Each(func(_ int, sel *goquery.Selection) {
		raw := rawFromSelection(sel, labels)
		if strings.EqualFold(raw.Attributes["type"], "hidden") {
			return
		}
		if !raw.Visible && !s.IncludeHidden {
			return
		}
		elements = append(elements, Describe(raw, core.SourceStaticHTML, pageURL))
	})

	return elements, nil
}

// labelTexts maps element ids to the text of their <label for=...>.
func labelTexts(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	doc.Find("label[for]").Each(func(_ int, l *goquery.Selection) {
		if id, _ := l.Attr("for"); id != "" {
			out[id] = strings.TrimSpace(l.Text())
		}
	})
	return out
}

func rawFromSelection(sel *goquery.Selection, labels map[string]string) RawElement {
	node := sel.Get(0)
	raw := RawElement{
		Tag:        goquery.NodeName(sel),
		Attributes: make(map[string]string, len(node.Attr)),
		Text:       sel.Text(),
		Visible:    true,
		Enabled:    true,
	}
	for _, a := range node.Attr {
		raw.Attributes[a.Key] = a.Val
	}

	if id := raw.attr("id"); id != "" {
		raw.LabelText = labels[id]
	}
	if raw.LabelText == "" {
		if wrap := sel.Closest("label"); wrap.Length() > 0 {
			raw.LabelText = strings.TrimSpace(wrap.Text())
		}
	}

	if _, disabled := raw.Attributes["disabled"]; disabled {
		raw.Enabled = false
	}
	if strings.EqualFold(raw.attr("aria-disabled"), "true") {
		raw.Enabled = false
	}

	raw.Visible = !hiddenAncestry(sel)
	raw.InNav = sel.Closest("nav, [role=navigation]").Length() > 0
	raw.NthOfType, raw.ParentSelector = position(node)

	return raw
}

// hiddenAncestry reports whether the element or an ancestor is hidden by
// attribute or inline style.
func hiddenAncestry(sel *goquery.Selection) bool {
	for n := sel.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return true
			case "aria-hidden":
				if strings.EqualFold(a.Val, "true") {
					return true
				}
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return true
				}
			}
		}
	}
	return false
}

// position returns the element's index among same-tag siblings (0 when it
// is the only one) and a selector for its parent when the parent has an id.
func position(n *html.Node) (int, string) {
	parent := n.Parent
	if parent == nil {
		return 0, ""
	}

	nth, count := 0, 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == n.Data {
			count++
			if c == n {
				nth = count
			}
		}
	}
	if count < 2 {
		nth = 0
	}

	parentSel := ""
	for _, a := range parent.Attr {
		if a.Key == "id" && a.Val != "" && isUniqueID(a.Val) {
			parentSel = "#" + cssIdent(a.Val)
		}
	}
	return nth, parentSel
}

// DiscoverString is a convenience for tests and fixtures.
func (s *Static) DiscoverString(content, pageURL string) ([]core.ElementDescriptor, error) {
	els, err := s.DiscoverHTML(strings.NewReader(content), pageURL)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", pageURL, err)
	}
	return els, nil
}
