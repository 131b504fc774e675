package jsengine

import (
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
		{"platform", "maestro.platform", "web"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEval_Error(t *testing.T) {
	engine := New()

	if _, err := engine.Eval("undefinedVar.foo"); err == nil {
		t.Error("expected error for undefined variable")
	}
	if _, err := engine.Eval("1 +"); err == nil {
		t.Error("expected error for syntax error")
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected 'john', got %q", result)
	}

	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestSetVariables(t *testing.T) {
	engine := New()
	engine.SetVariables(map[string]string{"A": "1", "B": "two"})

	result, err := engine.EvalString("A + B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "1two" {
		t.Errorf("expected '1two', got %q", result)
	}
}

func TestEvalString_Null(t *testing.T) {
	engine := New()

	result, err := engine.EvalString("null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	engine.SetVariable("LABEL", "Sign in")
	engine.SetVariable("n", 2)

	tests := []struct {
		name           string
		input          string
		expected       string
		wantUnresolved int
	}{
		{"no variables", "Login", "Login", 0},
		{"single variable", "${LABEL}", "Sign in", 0},
		{"embedded", "Button ${LABEL} now", "Button Sign in now", 0},
		{"expression", "Item ${n + 1}", "Item 3", 0},
		{"multiple", "${LABEL} / ${LABEL}", "Sign in / Sign in", 0},
		{"nested braces", "${({a: 'x'}).a}", "x", 0},
		{"unknown variable", "${MISSING}", "${MISSING}", 1},
		{"unclosed", "Hello ${LABEL", "Hello ${LABEL", 1},
		{"mixed", "${LABEL} ${MISSING}", "Sign in ${MISSING}", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unresolved := engine.ExpandVariables(tt.input)
			if got != tt.expected {
				t.Errorf("ExpandVariables(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if unresolved != tt.wantUnresolved {
				t.Errorf("ExpandVariables(%q) unresolved = %d, want %d", tt.input, unresolved, tt.wantUnresolved)
			}
		})
	}
}
