package matcher

import (
	"strings"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// testIDAttrs are attribute names discoverers surface into the element id.
var testIDAttrs = map[string]bool{
	"data-testid":  true,
	"data-test-id": true,
	"data-test":    true,
	"data-cy":      true,
	"data-qa":      true,
}

// tagTypes maps HTML tags to the semantic types a discoverer may report
// for them when the tag itself is not recorded.
var tagTypes = map[string][]string{
	"a":        {core.TypeLink, core.TypeNav},
	"input":    {core.TypeInput, core.TypeCheckbox, core.TypeRadio},
	"button":   {core.TypeButton},
	"select":   {core.TypeSelect},
	"textarea": {core.TypeTextarea},
	"nav":      {core.TypeNav},
}

// compiled is a selector prepared once per matching run.
type compiled struct {
	sel        selector.Selector
	normalized string
	chains     [][]selector.Compound // CSS alternatives, nil on parse failure
	xpathID    string
	inner      *compiled // last segment of a >> chain
}

func compile(sel selector.Selector) *compiled {
	p := &compiled{sel: sel, normalized: sel.Normalized()}

	switch sel.Kind {
	case selector.KindCSS:
		if parts := strings.Split(sel.Text, ">>"); len(parts) > 1 {
			last := selector.Classify(parts[len(parts)-1])
			last.SourceFile, last.SourceLine = sel.SourceFile, sel.SourceLine
			p.inner = compile(last)
			return p
		}
		// parse failures leave chains nil, which never matches
		p.chains, _ = selector.ParseList(p.normalized)
	case selector.KindXPath:
		p.xpathID, _ = selector.XPathID(sel.Text)
	}
	return p
}

// exact applies the exact-match rule. It only applies to kinds whose text is
// itself a locator.
func (p *compiled) exact(el *core.ElementDescriptor, elNormalized string) bool {
	if p.sel.Kind != selector.KindCSS && p.sel.Kind != selector.KindXPath {
		return false
	}
	if p.normalized == "" {
		return false
	}
	if p.normalized == elNormalized {
		return true
	}
	if len(p.chains) != 1 || len(p.chains[0]) != 1 {
		return false
	}
	c := p.chains[0][0]
	switch {
	case c.IsIDOnly():
		return el.ID != "" && el.ID == c.ID
	case c.IsClassOnly():
		return el.HasClasses(c.Classes)
	}
	return false
}

// predicate applies the kind-specific rule.
func (p *compiled) predicate(el *core.ElementDescriptor) (string, bool) {
	if p.inner != nil {
		return p.inner.predicate(el)
	}

	value := strings.TrimSpace(p.sel.Text)
	if value == "" {
		return "", false
	}

	switch p.sel.Kind {
	case selector.KindCSS:
		return p.matchCSS(el)
	case selector.KindText:
		return StrategyText, matchText(el.TextContent, value, p.sel.Exact)
	case selector.KindRole:
		if el.Role != value {
			return "", false
		}
		if p.sel.Name != "" && !containsFold(el.AccessibleName, p.sel.Name) && !containsFold(el.TextContent, p.sel.Name) {
			return "", false
		}
		return StrategyRole, true
	case selector.KindTestID:
		return StrategyTestID, matchTestID(el, value)
	case selector.KindAltText, selector.KindLabel, selector.KindPlaceholder:
		return StrategyAccessibleName, containsFold(el.AccessibleName, value)
	case selector.KindXPath:
		if p.xpathID == "" {
			return "", false
		}
		elID, ok := selector.XPathID(el.Selector)
		return StrategyXPath, ok && elID == p.xpathID
	}

	// unknown kinds fail closed
	return "", false
}

func (p *compiled) matchCSS(el *core.ElementDescriptor) (string, bool) {
	for _, chain := range p.chains {
		c := chain[len(chain)-1]
		if !matchCompound(c, el) {
			continue
		}
		switch {
		case len(chain) > 1:
			return StrategyDescendant, true
		case c.IsIDOnly():
			return StrategyID, true
		case c.IsClassOnly():
			return StrategyClass, true
		case c.IsAttrOnly():
			return StrategyAttribute, true
		default:
			return StrategyCompound, true
		}
	}
	return "", false
}

// matchCompound checks every condition of a compound selector against the
// element. A compound with no usable condition never matches.
func matchCompound(c selector.Compound, el *core.ElementDescriptor) bool {
	if c.IsEmpty() {
		return false
	}
	if c.Tag != "" && c.Tag != "*" && !matchTag(c.Tag, el) {
		return false
	}
	if c.ID != "" && el.ID != c.ID {
		return false
	}
	if len(c.Classes) > 0 && !el.HasClasses(c.Classes) {
		return false
	}
	for _, a := range c.Attrs {
		if !matchAttr(a, el) {
			return false
		}
	}
	if c.Text != "" && !containsFold(el.TextContent, c.Text) {
		return false
	}
	return true
}

func matchTag(tag string, el *core.ElementDescriptor) bool {
	if el.TagName == tag || el.SemanticType == tag {
		return true
	}
	if el.TagName != "" {
		return false
	}
	for _, t := range tagTypes[tag] {
		if el.SemanticType == t {
			return true
		}
	}
	return false
}

// matchAttr compares one attribute condition using the attribute-specific
// field of the descriptor, falling back to the attributes written into the
// element's own generated selector.
func matchAttr(a selector.AttrCond, el *core.ElementDescriptor) bool {
	var (
		actual string
		found  bool
	)
	switch {
	case a.Name == "class":
		if !a.HasValue {
			return len(el.ClassNames) > 0
		}
		if a.Op == "=" {
			return el.HasClasses(strings.Fields(a.Value))
		}
		if a.Op == "~=" {
			return el.HasClasses([]string{a.Value})
		}
		actual, found = strings.Join(el.ClassNames, " "), len(el.ClassNames) > 0
	case testIDAttrs[a.Name]:
		actual, found = el.Attributes[a.Name]
		if !found && el.ID != "" {
			actual, found = el.ID, true
		}
	default:
		actual, found = el.Attribute(a.Name)
	}

	if !found {
		actual, found = selectorAttr(el.Selector, a.Name)
	}
	if !found {
		return false
	}
	if !a.HasValue {
		return true
	}
	return compareAttr(a.Op, actual, a.Value)
}

// selectorAttr reads an attribute condition out of the element's generated
// selector, e.g. the name in input[name="email"].
func selectorAttr(elSelector, name string) (string, bool) {
	if !strings.Contains(elSelector, "[") {
		return "", false
	}
	compounds, err := selector.LastCompounds(selector.NormalizeForMatching(elSelector))
	if err != nil {
		return "", false
	}
	for _, c := range compounds {
		for _, a := range c.Attrs {
			if a.Name == name && (a.Op == "=" || a.Op == "") {
				return a.Value, true
			}
		}
	}
	return "", false
}

func compareAttr(op, actual, want string) bool {
	switch op {
	case "=":
		return actual == want
	case "~=":
		for _, f := range strings.Fields(actual) {
			if f == want {
				return true
			}
		}
		return false
	case "^=":
		return want != "" && strings.HasPrefix(actual, want)
	case "$=":
		return want != "" && strings.HasSuffix(actual, want)
	case "*=":
		return want != "" && strings.Contains(actual, want)
	case "|=":
		return actual == want || strings.HasPrefix(actual, want+"-")
	}
	return false
}

func matchTestID(el *core.ElementDescriptor, value string) bool {
	if el.ID == value {
		return true
	}
	for name := range testIDAttrs {
		if v, ok := el.Attributes[name]; ok && v == value {
			return true
		}
		if v, ok := selectorAttr(el.Selector, name); ok && v == value {
			return true
		}
	}
	return false
}

func matchText(content, want string, exact bool) bool {
	content = strings.Join(strings.Fields(content), " ")
	want = strings.Join(strings.Fields(want), " ")
	if content == "" || want == "" {
		return false
	}
	if exact {
		return content == want
	}
	return strings.EqualFold(content, want) || containsFold(content, want)
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
