package selector

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeForMatching_QuoteStyles(t *testing.T) {
	double := NormalizeForMatching(`input[name="email"]`)
	single := NormalizeForMatching(`input[name='email']`)
	bare := NormalizeForMatching(`input[name=email]`)

	if double != single || single != bare {
		t.Errorf("quote styles differ: %q, %q, %q", double, single, bare)
	}
	if bare != "input[name=email]" {
		t.Errorf("NormalizeForMatching() = %q, want %q", bare, "input[name=email]")
	}
}

func TestNormalizeForMatching(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"outer double quotes", `"#submit"`, "#submit"},
		{"outer single quotes", `'.btn.primary'`, ".btn.primary"},
		{"backtick quotes", "`button`", "button"},
		{"whitespace collapsed", "form   .row\t button", "form .row button"},
		{"child combinator spacing", "form > button", "form>button"},
		{"sibling combinator spacing", "h1 + p ~ span", "h1+p~span"},
		{"child combinator inside text argument", `button:has-text("Next > Finish")`, `button:has-text("Next > Finish")`},
		{"plus inside attribute value", `[aria-label="Step 1 + 2"]`, "[aria-label=Step 1 + 2]"},
		{"tilde inside attribute value", `[title='a ~ b']`, "[title=a ~ b]"},
		{"plus inside pseudo argument", "li:nth-child(2n + 1) > a", "li:nth-child(2n + 1)>a"},
		{"spaces inside brackets", `[ data-testid = "save" ]`, "[data-testid=save]"},
		{"multiple attributes", `[role="button"][aria-label='Close']`, "[role=button][aria-label=Close]"},
		{"operator preserved", `a[href^="https"]`, "a[href^=https]"},
		{"presence only untouched", "input[disabled]", "input[disabled]"},
		{"value with spaces", `[aria-label="Save draft"]`, "[aria-label=Save draft]"},
		{"xpath predicate", `//button[@id="go"]`, "//button[@id=go]"},
		{"inner quotes kept when outer mismatched", `"a" b`, `"a" b`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeForMatching(tt.input); got != tt.want {
				t.Errorf("NormalizeForMatching(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIdentityKey_KeepsValueSpacing(t *testing.T) {
	spaced := IdentityKey(`[title="a + b"]`, "button")
	tight := IdentityKey(`[title="a+b"]`, "button")
	if spaced == tight {
		t.Errorf("IdentityKey() merged distinct values: %q", spaced)
	}
}

func TestNormalizeForMatching_Idempotent(t *testing.T) {
	inputs := []string{
		`button[type="submit"]`,
		`  "div > a.link" `,
		`[role='tab'][aria-selected="true"]`,
		`//input[@id='q']`,
	}
	for _, in := range inputs {
		once := NormalizeForMatching(in)
		if twice := NormalizeForMatching(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeForDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"value placeholder", `input[name="email"]`, `input[name="…"]`},
		{"bare value placeholder", `input[name=email]`, `input[name="…"]`},
		{"strips outer quotes", `'#login'`, "#login"},
		{"collapses whitespace", "nav   a", "nav a"},
		{"keeps structure", "form > button.primary", "form > button.primary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeForDisplay(tt.input); got != tt.want {
				t.Errorf("NormalizeForDisplay(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeForDisplay_Truncates(t *testing.T) {
	long := "div." + strings.Repeat("a", 200)
	got := NormalizeForDisplay(long)

	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("length = %d, want 100", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("NormalizeForDisplay() = %q, want ... suffix", got)
	}
}

func TestDisplayAndMatchingDiffer(t *testing.T) {
	a := `input[name="email"]`
	b := `input[name="password"]`

	if NormalizeForDisplay(a) != NormalizeForDisplay(b) {
		t.Fatal("display form should hide attribute values")
	}
	if NormalizeForMatching(a) == NormalizeForMatching(b) {
		t.Error("matching form must keep attribute values distinct")
	}
}

func TestIdentityKey(t *testing.T) {
	a := IdentityKey(`button[type="submit"]`, "button")
	b := IdentityKey(`button[type=submit]`, "button")
	c := IdentityKey(`button[type=submit]`, "clickable")

	if a != b {
		t.Errorf("IdentityKey differs across quote styles: %q vs %q", a, b)
	}
	if a == c {
		t.Error("IdentityKey should include the semantic type")
	}
	if a != "button[type=submit]|button" {
		t.Errorf("IdentityKey() = %q", a)
	}
}

func TestEquivalent(t *testing.T) {
	if !Equivalent(`[data-testid="x"]`, `[data-testid=x]`) {
		t.Error("Equivalent() = false for quote variants")
	}
	if Equivalent("#a", "#b") {
		t.Error("Equivalent() = true for different ids")
	}
}
