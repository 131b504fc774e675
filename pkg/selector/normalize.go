package selector

import (
	"regexp"
	"strings"
)

const displayLimit = 100

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// [name op value] with the value double quoted, single quoted or bare.
	attrRe = regexp.MustCompile(`\[\s*([^\s~|^$*=\]]+)\s*([~|^$*]?=)\s*(?:"([^"]*)"|'([^']*)'|([^\]]*?))\s*(?:\s[iIsS])?\s*\]`)
)

// NormalizeForMatching canonicalizes a selector for identity keys and
// equivalence checks. Quote style around attribute values is dropped, so
// input[name="email"], input[name='email'] and input[name=email] all reduce
// to input[name=email]. One layer of outer quoting is stripped and
// whitespace is collapsed.
//
// Never use NormalizeForDisplay output as a key.
func NormalizeForMatching(s string) string {
	s = stripOuterQuotes(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = attrRe.ReplaceAllStringFunc(s, func(m string) string {
		name, op, value := splitAttr(m)
		return "[" + name + op + strings.TrimSpace(value) + "]"
	})
	return strings.TrimSpace(collapseCombinators(s))
}

// NormalizeForDisplay produces a readable, bounded form of a selector.
// Attribute values are replaced with a placeholder and the result is
// truncated to 100 characters.
func NormalizeForDisplay(s string) string {
	s = stripOuterQuotes(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = attrRe.ReplaceAllStringFunc(s, func(m string) string {
		name, op, _ := splitAttr(m)
		return "[" + name + op + `"…"]`
	})
	return truncate(strings.TrimSpace(s), displayLimit)
}

// IdentityKey builds the canonical record key for an element.
func IdentityKey(sel, semanticType string) string {
	return NormalizeForMatching(sel) + "|" + semanticType
}

// Equivalent reports whether two selectors are the same after matching
// normalization.
func Equivalent(a, b string) bool {
	return NormalizeForMatching(a) == NormalizeForMatching(b)
}

// collapseCombinators drops the spaces around >, + and ~ between compounds.
// Text inside brackets, parentheses and quotes is copied unchanged.
func collapseCombinators(s string) string {
	var (
		b     strings.Builder
		depth int
		quote rune
		skip  bool
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
		case (ch == ']' || ch == ')') && depth > 0:
			depth--
		case depth == 0 && (ch == '>' || ch == '+' || ch == '~'):
			out := strings.TrimRight(b.String(), " ")
			b.Reset()
			b.WriteString(out)
			b.WriteRune(ch)
			skip = true
			continue
		case depth == 0 && ch == ' ' && skip:
			continue
		}
		skip = false
		b.WriteRune(ch)
	}
	return b.String()
}

// splitAttr extracts name, operator and unquoted value from an attribute
// condition matched by attrRe.
func splitAttr(m string) (name, op, value string) {
	sub := attrRe.FindStringSubmatch(m)
	if sub == nil {
		return "", "", ""
	}
	// At most one of the three value groups participates.
	return sub[1], sub[2], sub[3] + sub[4] + sub[5]
}

func stripOuterQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if q != '"' && q != '\'' && q != '`' {
		return s
	}
	if s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	if strings.IndexByte(inner, q) >= 0 {
		return s
	}
	return inner
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
