package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/ui-coverage/pkg/jsengine"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

// ParseError represents a flow parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Flow extracts selectors from Maestro YAML flows. The optional config
// document (before ---) contributes its env block and its onFlowStart and
// onFlowComplete hooks.
type Flow struct {
	// Env holds variables for ${...} expressions. They take precedence
	// over a flow's own env block.
	Env map[string]string
}

// Commands whose value is an element selector.
var selectorCommands = map[string]bool{
	"tapOn":            true,
	"doubleTapOn":      true,
	"longPressOn":      true,
	"assertVisible":    true,
	"assertNotVisible": true,
	"copyTextFrom":     true,
}

// Relative selector keys, each holding another selector.
var relativeKeys = map[string]bool{
	"childOf":       true,
	"below":         true,
	"above":         true,
	"leftOf":        true,
	"rightOf":       true,
	"containsChild": true,
}

// Extract walks every YAML document in src.
func (f *Flow) Extract(path string, src []byte) ([]selector.Selector, error) {
	w := &flowWalker{path: path, lines: strings.Split(string(src), "\n"), env: f.Env}

	dec := yaml.NewDecoder(bytes.NewReader(src))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return w.out, &ParseError{Path: path, Message: err.Error()}
		}
		w.document(&doc)
	}
	return w.out, nil
}

type flowWalker struct {
	path  string
	lines []string
	env   map[string]string
	js    *jsengine.Engine // created on first use
	out   []selector.Selector
}

func (w *flowWalker) engine() *jsengine.Engine {
	if w.js == nil {
		w.js = jsengine.New()
		w.js.SetVariables(w.env)
	}
	return w.js
}

// defineEnv adds a flow's env entries, skipping names the caller set.
func (w *flowWalker) defineEnv(n *yaml.Node) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	js := w.engine()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i].Value, n.Content[i+1]
		if _, ok := w.env[k]; ok || v.Kind != yaml.ScalarNode {
			continue
		}
		val, _ := js.ExpandVariables(v.Value)
		js.SetVariable(k, val)
	}
}

// expand resolves ${...} expressions; unresolved ones stay as written.
func (w *flowWalker) expand(v string) string {
	if !strings.Contains(v, "${") {
		return v
	}
	out, _ := w.engine().ExpandVariables(v)
	return out
}

func (w *flowWalker) document(doc *yaml.Node) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		w.steps(root)
	case yaml.MappingNode:
		w.defineEnv(mapValue(root, "env"))
		for _, hook := range []string{"onFlowStart", "onFlowComplete"} {
			if n := mapValue(root, hook); n != nil && n.Kind == yaml.SequenceNode {
				w.steps(n)
			}
		}
	}
}

func (w *flowWalker) steps(seq *yaml.Node) {
	for _, step := range seq.Content {
		// bare commands such as "- back" carry no selector
		if step.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i+1 < len(step.Content); i += 2 {
			w.command(step.Content[i], step.Content[i+1])
		}
	}
}

func (w *flowWalker) command(key, val *yaml.Node) {
	name := key.Value
	switch {
	case selectorCommands[name]:
		w.selector(val, key.Line)
	case name == "scrollUntilVisible":
		if el := mapValue(val, "element"); el != nil {
			w.selector(el, key.Line)
		}
	case name == "repeat" || name == "retry" || name == "runFlow":
		// runFlow env is not scoped to the subflow here
		w.defineEnv(mapValue(val, "env"))
		if cmds := mapValue(val, "commands"); cmds != nil && cmds.Kind == yaml.SequenceNode {
			w.steps(cmds)
		}
		if cond := mapValue(val, "when"); cond != nil {
			for _, k := range []string{"visible", "notVisible"} {
				if sel := mapValue(cond, k); sel != nil {
					w.selector(sel, sel.Line)
				}
			}
		}
	}
}

// selector emits the selectors held by n: a scalar is text, a mapping may
// carry id, text and css plus relative selectors.
func (w *flowWalker) selector(n *yaml.Node, line int) {
	switch n.Kind {
	case yaml.ScalarNode:
		w.emit(textSelector(w.expand(n.Value)), line)
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i].Value, n.Content[i+1]
			switch {
			case k == "id" && v.Kind == yaml.ScalarNode:
				w.emit(selector.Selector{Kind: selector.KindTestID, Text: w.expand(v.Value)}, line)
			case k == "text" && v.Kind == yaml.ScalarNode:
				w.emit(textSelector(w.expand(v.Value)), line)
			case k == "css" && v.Kind == yaml.ScalarNode:
				w.emit(selector.Classify(w.expand(v.Value)), line)
			case relativeKeys[k]:
				w.selector(v, v.Line)
			case k == "containsDescendants" && v.Kind == yaml.SequenceNode:
				for _, d := range v.Content {
					w.selector(d, d.Line)
				}
			}
		}
	}
}

func (w *flowWalker) emit(sel selector.Selector, line int) {
	if strings.TrimSpace(sel.Text) == "" {
		return
	}
	sel.SourceFile = w.path
	sel.SourceLine = line
	if line > 0 && line <= len(w.lines) {
		sel.Context = strings.TrimSpace(w.lines[line-1])
	}
	w.out = append(w.out, sel)
}

var regexMeta = regexp.MustCompile(`[\\^$|?*+()\[\]{}]`)

// textSelector converts a Maestro text matcher. Maestro matches text as a
// full regex, so a literal value is an exact match; a pattern wrapped in .*
// becomes a substring match and anything else is kept as written.
func textSelector(v string) selector.Selector {
	v = strings.TrimSpace(v)
	if !regexMeta.MatchString(strings.ReplaceAll(v, ".", "")) {
		return selector.Selector{Kind: selector.KindText, Text: v, Exact: true}
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(v, ".*"), ".*")
	if inner != v && !regexMeta.MatchString(inner) {
		return selector.Selector{Kind: selector.KindText, Text: inner}
	}
	return selector.Selector{Kind: selector.KindText, Text: v}
}

func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
