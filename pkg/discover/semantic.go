package discover

import (
	"strings"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// testIDAttributes are checked in order when surfacing a test id.
var testIDAttributes = []string{"data-testid", "data-test-id", "data-test", "data-cy", "data-qa"}

var buttonInputTypes = map[string]bool{"submit": true, "button": true, "reset": true, "image": true}

// roleTypes maps explicit ARIA roles to semantic types.
var roleTypes = map[string]string{
	"button":     core.TypeButton,
	"link":       core.TypeLink,
	"checkbox":   core.TypeCheckbox,
	"switch":     core.TypeCheckbox,
	"radio":      core.TypeRadio,
	"textbox":    core.TypeInput,
	"searchbox":  core.TypeInput,
	"combobox":   core.TypeSelect,
	"listbox":    core.TypeSelect,
	"navigation": core.TypeNav,
	"tab":        core.TypeClickable,
	"menuitem":   core.TypeClickable,
	"option":     core.TypeClickable,
}

// SemanticType classifies an element as button, input, link, etc.
func SemanticType(r RawElement) string {
	tag := strings.ToLower(r.Tag)
	typ := strings.ToLower(r.attr("type"))

	switch tag {
	case "button":
		return core.TypeButton
	case "a":
		if r.attr("href") != "" && r.InNav {
			return core.TypeNav
		}
		if r.attr("href") != "" {
			return core.TypeLink
		}
	case "input":
		switch {
		case buttonInputTypes[typ]:
			return core.TypeButton
		case typ == "checkbox":
			return core.TypeCheckbox
		case typ == "radio":
			return core.TypeRadio
		default:
			return core.TypeInput
		}
	case "select":
		return core.TypeSelect
	case "textarea":
		return core.TypeTextarea
	case "nav":
		return core.TypeNav
	}

	if t, ok := roleTypes[strings.ToLower(r.attr("role"))]; ok {
		return t
	}
	if _, ok := r.Attributes["onclick"]; ok {
		return core.TypeClickable
	}
	if tag == "a" {
		return core.TypeClickable
	}
	return core.TypeInteractive
}

// Role returns the explicit role or the implicit ARIA role of the tag.
func Role(r RawElement) string {
	if role := strings.ToLower(r.attr("role")); role != "" {
		return role
	}

	switch strings.ToLower(r.Tag) {
	case "button":
		return "button"
	case "a":
		if r.attr("href") != "" {
			return "link"
		}
	case "select":
		if hasAttr(r, "multiple") {
			return "listbox"
		}
		return "combobox"
	case "textarea":
		return "textbox"
	case "nav":
		return "navigation"
	case "input":
		switch typ := strings.ToLower(r.attr("type")); {
		case buttonInputTypes[typ]:
			return "button"
		case typ == "checkbox":
			return "checkbox"
		case typ == "radio":
			return "radio"
		case typ == "search":
			return "searchbox"
		case typ == "range":
			return "slider"
		case typ == "number":
			return "spinbutton"
		default:
			return "textbox"
		}
	}
	return ""
}

// AccessibleName approximates the accessible name computation: aria-label,
// associated label, then placeholder, alt and title, then text content for
// elements named by their contents.
func AccessibleName(r RawElement) string {
	if v := r.attr("aria-label"); v != "" {
		return v
	}
	if v := collapse(r.LabelText, textLimit); v != "" {
		return v
	}
	for _, name := range []string{"placeholder", "alt", "title"} {
		if v := r.attr(name); v != "" {
			return v
		}
	}
	if strings.ToLower(r.Tag) == "input" && buttonInputTypes[strings.ToLower(r.attr("type"))] {
		return r.attr("value")
	}
	switch Role(r) {
	case "button", "link", "tab", "menuitem", "option", "checkbox", "radio":
		return collapse(r.Text, textLimit)
	}
	return ""
}

func hasAttr(r RawElement, name string) bool {
	_, ok := r.Attributes[name]
	return ok
}
