package core

import "testing"

func TestBounds_IsEmpty(t *testing.T) {
	if !(Bounds{Width: 0, Height: 10}).IsEmpty() {
		t.Error("zero width should be empty")
	}
	if (Bounds{Width: 1, Height: 1}).IsEmpty() {
		t.Error("1x1 should not be empty")
	}
}

func TestElementDescriptor_HasClasses(t *testing.T) {
	el := &ElementDescriptor{ClassNames: []string{"btn", "btn-primary", "large"}}

	tests := []struct {
		want []string
		ok   bool
	}{
		{[]string{"btn"}, true},
		{[]string{"btn", "large"}, true},
		{[]string{"btn", "small"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := el.HasClasses(tt.want); got != tt.ok {
			t.Errorf("HasClasses(%v) = %v, want %v", tt.want, got, tt.ok)
		}
	}
}

func TestElementDescriptor_Attribute(t *testing.T) {
	el := &ElementDescriptor{
		ID:             "submit",
		Role:           "button",
		AccessibleName: "Save",
		ClassNames:     []string{"a", "b"},
		Attributes:     map[string]string{"type": "submit"},
	}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"type", "submit", true},
		{"id", "submit", true},
		{"role", "button", true},
		{"aria-label", "Save", true},
		{"class", "a b", true},
		{"href", "", false},
	}

	for _, tt := range tests {
		got, ok := el.Attribute(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Attribute(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
