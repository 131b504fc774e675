package selector

import (
	"reflect"
	"testing"
)

func TestParseCompound(t *testing.T) {
	c, err := ParseCompound(`input.form-control.large#email[name="email"][required]:nth-child(2)`)
	if err != nil {
		t.Fatalf("ParseCompound() error = %v", err)
	}

	if c.Tag != "input" {
		t.Errorf("Tag = %q, want input", c.Tag)
	}
	if c.ID != "email" {
		t.Errorf("ID = %q, want email", c.ID)
	}
	if !reflect.DeepEqual(c.Classes, []string{"form-control", "large"}) {
		t.Errorf("Classes = %v", c.Classes)
	}
	want := []AttrCond{
		{Name: "name", Op: "=", Value: "email", HasValue: true},
		{Name: "required"},
	}
	if !reflect.DeepEqual(c.Attrs, want) {
		t.Errorf("Attrs = %+v, want %+v", c.Attrs, want)
	}
	if !reflect.DeepEqual(c.Pseudo, []string{"nth-child"}) {
		t.Errorf("Pseudo = %v", c.Pseudo)
	}
}

func TestParseCompound_TextPseudo(t *testing.T) {
	c, err := ParseCompound(`button:has-text("Don't save")`)
	if err != nil {
		t.Fatalf("ParseCompound() error = %v", err)
	}
	if c.Tag != "button" || c.Text != "Don't save" {
		t.Errorf("got tag=%q text=%q", c.Tag, c.Text)
	}
}

func TestParseCompound_Shorthands(t *testing.T) {
	id, _ := ParseCompound("#save")
	if !id.IsIDOnly() {
		t.Error("#save should be id-only")
	}
	cls, _ := ParseCompound(".a.b")
	if !cls.IsClassOnly() {
		t.Error(".a.b should be class-only")
	}
	attr, _ := ParseCompound("[role=tab]")
	if !attr.IsAttrOnly() {
		t.Error("[role=tab] should be attr-only")
	}
	star, _ := ParseCompound("*")
	if !star.IsEmpty() {
		t.Error("* should be empty")
	}
}

func TestParseCompound_Malformed(t *testing.T) {
	inputs := []string{
		`input[name="x"`,
		"#",
		"div:has-text(",
		"a$b",
	}
	for _, in := range inputs {
		if _, err := ParseCompound(in); err == nil {
			t.Errorf("ParseCompound(%q) expected error", in)
		}
	}
}

func TestLastCompounds(t *testing.T) {
	got, err := LastCompounds(`form#login > div.row button[type="submit"], a.cancel`)
	if err != nil {
		t.Fatalf("LastCompounds() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Tag != "button" || len(got[0].Attrs) != 1 || got[0].Attrs[0].Value != "submit" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Tag != "a" || got[1].Classes[0] != "cancel" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestParseList_Unbalanced(t *testing.T) {
	if _, err := ParseList("div[a=b"); err == nil {
		t.Error("expected error for unbalanced bracket")
	}
	if _, err := ParseList("div)"); err == nil {
		t.Error("expected error for stray paren")
	}
}

func TestAttributeSet(t *testing.T) {
	a := AttributeSet(`[role="button"][aria-label='Save']`)
	b := AttributeSet(`[aria-label=Save][role=button]`)
	if a == nil || !reflect.DeepEqual(a, b) {
		t.Errorf("AttributeSet order/quote mismatch: %v vs %v", a, b)
	}
	if AttributeSet("#id") != nil {
		t.Error("AttributeSet(#id) should be nil")
	}
	if AttributeSet("button.primary") != nil {
		t.Error("AttributeSet(class selector) should be nil")
	}
}

func TestXPathID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`//button[@id="save"]`, "save", true},
		{`//div/input[@id='q']`, "q", true},
		{`//input[@id=q]`, "q", true},
		{`//input[@name='q']`, "", false},
		{`//div[@id='a']/span`, "", false},
	}
	for _, tt := range tests {
		got, ok := XPathID(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("XPathID(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
