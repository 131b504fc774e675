package selector

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// AttrCond is one [name op value] condition of a compound selector.
type AttrCond struct {
	Name     string
	Op       string // "=", "~=", "^=", "$=", "*=", "|=" or empty for presence
	Value    string
	HasValue bool
}

// Compound is a single compound selector such as button.primary#save.
type Compound struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   []AttrCond
	Text    string   // :has-text(), :text() or :contains() argument
	Pseudo  []string // other pseudo-classes, ignored by matching
}

// IsEmpty reports whether the compound carries no matchable condition.
func (c Compound) IsEmpty() bool {
	return (c.Tag == "" || c.Tag == "*") && c.ID == "" && len(c.Classes) == 0 &&
		len(c.Attrs) == 0 && c.Text == ""
}

// IsIDOnly reports whether the compound is exactly #id.
func (c Compound) IsIDOnly() bool {
	return c.ID != "" && c.Tag == "" && len(c.Classes) == 0 && len(c.Attrs) == 0 && c.Text == ""
}

// IsClassOnly reports whether the compound is exactly .a.b.
func (c Compound) IsClassOnly() bool {
	return len(c.Classes) > 0 && c.Tag == "" && c.ID == "" && len(c.Attrs) == 0 && c.Text == ""
}

// IsAttrOnly reports whether the compound is one or more [attr] conditions.
func (c Compound) IsAttrOnly() bool {
	return len(c.Attrs) > 0 && c.Tag == "" && c.ID == "" && len(c.Classes) == 0 && c.Text == ""
}

// ParseList parses a CSS selector list into alternatives, each a sequence
// of compounds separated by combinators. Combinators themselves are dropped;
// matching only looks at the last compound of each alternative.
func ParseList(s string) ([][]Compound, error) {
	parts, err := splitTopLevel(s, func(r rune) bool { return r == ',' }, false)
	if err != nil {
		return nil, err
	}
	var out [][]Compound
	for _, p := range parts {
		segs, err := splitTopLevel(p, isCombinator, true)
		if err != nil {
			return nil, err
		}
		var seq []Compound
		for _, seg := range segs {
			c, err := ParseCompound(seg)
			if err != nil {
				return nil, err
			}
			seq = append(seq, c)
		}
		if len(seq) > 0 {
			out = append(out, seq)
		}
	}
	if len(out) == 0 {
		return nil, malformed(s)
	}
	return out, nil
}

// LastCompounds returns the last compound of every alternative in s.
func LastCompounds(s string) ([]Compound, error) {
	list, err := ParseList(s)
	if err != nil {
		return nil, err
	}
	out := make([]Compound, 0, len(list))
	for _, seq := range list {
		out = append(out, seq[len(seq)-1])
	}
	return out, nil
}

// ParseCompound parses one compound selector.
func ParseCompound(s string) (Compound, error) {
	var c Compound
	r := []rune(strings.TrimSpace(s))
	i := 0
	if i < len(r) && (r[i] == '*' || isIdentRune(r[i])) {
		start := i
		i++
		for i < len(r) && isIdentRune(r[i]) {
			i++
		}
		c.Tag = strings.ToLower(string(r[start:i]))
	}
	for i < len(r) {
		switch r[i] {
		case '#', '.':
			marker := r[i]
			i++
			start := i
			for i < len(r) && isIdentRune(r[i]) {
				if r[i] == '\\' && i+1 < len(r) {
					i++
				}
				i++
			}
			if i == start {
				return Compound{}, malformed(s)
			}
			name := unescapeIdent(string(r[start:i]))
			if marker == '#' {
				c.ID = name
			} else {
				c.Classes = append(c.Classes, name)
			}
		case '[':
			end, err := closing(r, i, '[', ']')
			if err != nil {
				return Compound{}, malformed(s)
			}
			c.Attrs = append(c.Attrs, parseAttr(string(r[i+1:end])))
			i = end + 1
		case ':':
			i++
			if i < len(r) && r[i] == ':' {
				i++
			}
			start := i
			for i < len(r) && isIdentRune(r[i]) {
				i++
			}
			name := strings.ToLower(string(r[start:i]))
			arg := ""
			if i < len(r) && r[i] == '(' {
				end, err := closing(r, i, '(', ')')
				if err != nil {
					return Compound{}, malformed(s)
				}
				arg = strings.TrimSpace(string(r[i+1 : end]))
				i = end + 1
			}
			switch name {
			case "has-text", "text", "text-is", "contains":
				c.Text = stripOuterQuotes(arg)
			default:
				c.Pseudo = append(c.Pseudo, name)
			}
		default:
			return Compound{}, malformed(s)
		}
	}
	return c, nil
}

// AttributeSet returns the normalized attribute conditions of a selector
// as a sorted list of name=value strings, or nil when the selector is not
// purely a chain of attribute conditions (optionally led by a tag).
func AttributeSet(s string) []string {
	c, err := ParseCompound(NormalizeForMatching(s))
	if err != nil || len(c.Attrs) == 0 || c.ID != "" || len(c.Classes) > 0 || c.Text != "" {
		return nil
	}
	out := make([]string, 0, len(c.Attrs)+1)
	if c.Tag != "" {
		out = append(out, "<"+c.Tag+">")
	}
	for _, a := range c.Attrs {
		out = append(out, a.Name+a.Op+a.Value)
	}
	sort.Strings(out)
	return out
}

var xpathIDRe = regexp.MustCompile(`\[\s*@id\s*=\s*["']?([^"'\]]+?)["']?\s*\]\s*$`)

// XPathID returns the id of a trailing [@id=...] predicate.
func XPathID(xpath string) (string, bool) {
	m := xpathIDRe.FindStringSubmatch(strings.TrimSpace(xpath))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func parseAttr(body string) AttrCond {
	body = strings.TrimSpace(body)
	for _, op := range []string{"~=", "|=", "^=", "$=", "*=", "="} {
		idx := strings.Index(body, op)
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(body[:idx])
		value := strings.TrimSpace(body[idx+len(op):])
		// drop case-sensitivity flag: [a="b" i]
		if n := len(value); n > 2 && (value[n-2] == ' ') && strings.ContainsRune("iIsS", rune(value[n-1])) {
			value = strings.TrimSpace(value[:n-2])
		}
		return AttrCond{Name: strings.ToLower(name), Op: op, Value: stripOuterQuotes(value), HasValue: true}
	}
	return AttrCond{Name: strings.ToLower(body)}
}

// splitTopLevel splits s on runes accepted by sep, ignoring separators
// inside brackets, parentheses and quotes.
func splitTopLevel(s string, sep func(rune) bool, dropEmpty bool) ([]string, error) {
	var (
		parts []string
		buf   strings.Builder
		depth int
		quote rune
	)
	for _, ch := range s {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[' || ch == '(':
			depth++
		case ch == ']' || ch == ')':
			depth--
			if depth < 0 {
				return nil, malformed(s)
			}
		case depth == 0 && sep(ch):
			parts = appendPart(parts, buf.String(), dropEmpty)
			buf.Reset()
			continue
		}
		buf.WriteRune(ch)
	}
	if quote != 0 || depth != 0 {
		return nil, malformed(s)
	}
	return appendPart(parts, buf.String(), dropEmpty), nil
}

func appendPart(parts []string, p string, dropEmpty bool) []string {
	p = strings.TrimSpace(p)
	if p == "" && dropEmpty {
		return parts
	}
	return append(parts, p)
}

func closing(r []rune, open int, o, c rune) (int, error) {
	depth := 0
	var quote rune
	for i := open; i < len(r); i++ {
		ch := r[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == o:
			depth++
		case ch == c:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, malformed(string(r))
}

func isCombinator(r rune) bool {
	return unicode.IsSpace(r) || r == '>' || r == '+' || r == '~'
}

func isIdentRune(r rune) bool {
	return r == '-' || r == '_' || r == '\\' || unicode.IsLetter(r) || unicode.IsDigit(r) || r > unicode.MaxASCII
}

func unescapeIdent(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, ch := range s {
		if ch == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(ch)
	}
	return b.String()
}
