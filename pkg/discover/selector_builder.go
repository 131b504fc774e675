package discover

import (
	"strconv"
	"strings"
)

// SelectorStrategy names how a generated selector identifies its element.
type SelectorStrategy int

const (
	StrategyID SelectorStrategy = iota
	StrategyTestID
	StrategyName
	StrategyAriaLabel
	StrategyClass
	StrategyNthChild
	StrategyTag
)

// Candidate is one scored selector for an element.
type Candidate struct {
	Selector string
	Strategy SelectorStrategy
	Score    int
}

// Candidates returns every selector the element supports, best first.
func Candidates(r RawElement) []Candidate {
	var out []Candidate
	tag := strings.ToLower(r.Tag)

	if id := r.attr("id"); id != "" && isUniqueID(id) {
		out = append(out, Candidate{Selector: "#" + cssIdent(id), Strategy: StrategyID, Score: 100})
	}

	for _, name := range testIDAttributes {
		if v := r.attr(name); v != "" {
			out = append(out, Candidate{Selector: attrSelector("", name, v), Strategy: StrategyTestID, Score: 95})
			break
		}
	}

	if name := r.attr("name"); name != "" {
		out = append(out, Candidate{Selector: attrSelector(tag, "name", name), Strategy: StrategyName, Score: 90})
	}

	if label, role := r.attr("aria-label"), r.attr("role"); label != "" && role != "" {
		out = append(out, Candidate{
			Selector: attrSelector("", "role", role) + attrSelector("", "aria-label", label),
			Strategy: StrategyAriaLabel,
			Score:    85,
		})
	}

	if tag != "" {
		for _, class := range strings.Fields(r.Attributes["class"]) {
			if !isCommonClass(class) {
				out = append(out, Candidate{Selector: tag + "." + cssIdent(class), Strategy: StrategyClass, Score: 70})
				break
			}
		}

		switch {
		case r.NthOfType > 0 && r.ParentSelector != "":
			out = append(out, Candidate{
				Selector: r.ParentSelector + " > " + tag + ":nth-of-type(" + strconv.Itoa(r.NthOfType) + ")",
				Strategy: StrategyNthChild,
				Score:    50,
			})
		case r.NthOfType > 0:
			out = append(out, Candidate{
				Selector: tag + ":nth-of-type(" + strconv.Itoa(r.NthOfType) + ")",
				Strategy: StrategyNthChild,
				Score:    40,
			})
		default:
			out = append(out, Candidate{Selector: tag, Strategy: StrategyTag, Score: 30})
		}
	}

	return out
}

// BuildSelector returns the highest scoring selector for the element.
func BuildSelector(r RawElement) string {
	candidates := Candidates(r)
	if len(candidates) == 0 {
		return "body"
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best.Selector
}

func attrSelector(tag, name, value string) string {
	return tag + "[" + name + `="` + strings.ReplaceAll(value, `"`, `\"`) + `"]`
}

func isUniqueID(id string) bool {
	commonIDs := []string{"content", "main", "header", "footer", "nav", "menu", "root", "app"}
	idLower := strings.ToLower(id)
	for _, common := range commonIDs {
		if idLower == common {
			return false
		}
	}
	// generated ids (React useId, Angular) are not stable across renders
	return !strings.HasPrefix(id, ":r") && !strings.HasPrefix(idLower, "ng-")
}

func isCommonClass(class string) bool {
	commonClasses := []string{
		"container", "wrapper", "row", "col", "active", "disabled",
		"hidden", "visible", "flex", "grid",
	}
	classLower := strings.ToLower(class)
	for _, common := range commonClasses {
		if classLower == common || strings.HasPrefix(classLower, common+"-") {
			return true
		}
	}
	// utility and hashed CSS-module classes
	return strings.ContainsAny(class, ":/[]") || strings.Contains(class, "__")
}

// cssIdent escapes characters that would end a CSS identifier.
func cssIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r >= 0x80,
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
