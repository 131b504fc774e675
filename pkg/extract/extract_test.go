package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

const playwrightSpec = `import { test, expect } from '@playwright/test';

test('login', async ({ page }) => {
  await page.goto('/login');
  await page.getByLabel('Email').fill('a@b.c');
  await page.getByRole('button', { name: 'Sign in' }).click();
  await page.click('#submit');
  await page.locator('text="Forgot password?"').click();
  await expect(page.getByTestId('welcome')).toBeVisible();
  // await page.click('#commented');
  await page.locator("xpath=//a[@id='home']").hover();
  await page.getByText('Welcome', { exact: true });
  const res = await request.get('/api/users');
});
`

const cypressSpec = `describe('cart', () => {
  it('adds', () => {
    cy.get('[data-cy="add"]').click();
    cy.contains('Checkout').click();
    cy.contains('button', 'Pay').click();
    cy.get('@cartItems').should('have.length', 1);
    cy.findByRole('link', { name: "Home" }).click();
    /*
    cy.get('#old').click();
    */
  });
});
`

const maestroFlow = `appId: com.example
onFlowStart:
  - tapOn: Accept cookies
---
- launchApp
- tapOn: "Login"
- tapOn:
    id: "email_input"
- inputText: "a@b.c"
- assertVisible:
    text: ".*Welcome.*"
    below:
      id: header
- scrollUntilVisible:
    element:
      text: "Footer"
- repeat:
    times: 2
    commands:
      - tapOn:
          css: "#next"
- runFlow:
    when:
      visible: "Promo"
    commands:
      - tapOn: Close
`

type want struct {
	kind  selector.Kind
	text  string
	name  string
	exact bool
	line  int
}

func check(t *testing.T, got []selector.Selector, wants []want) {
	t.Helper()
	if len(got) != len(wants) {
		for _, s := range got {
			t.Logf("  %s %q line %d", s.Kind, s.Text, s.SourceLine)
		}
		t.Fatalf("got %d selectors, want %d", len(got), len(wants))
	}
	for i, w := range wants {
		g := got[i]
		if g.Kind != w.kind || g.Text != w.text || g.Name != w.name || g.Exact != w.exact || g.SourceLine != w.line {
			t.Errorf("selector[%d] = {%s %q name=%q exact=%v line=%d}, want {%s %q name=%q exact=%v line=%d}",
				i, g.Kind, g.Text, g.Name, g.Exact, g.SourceLine, w.kind, w.text, w.name, w.exact, w.line)
		}
	}
}

func TestSource_Playwright(t *testing.T) {
	got, err := NewSource(nil).Extract("login.spec.ts", []byte(playwrightSpec))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	check(t, got, []want{
		{selector.KindLabel, "Email", "", false, 5},
		{selector.KindRole, "button", "Sign in", false, 6},
		{selector.KindCSS, "#submit", "", false, 7},
		{selector.KindText, "Forgot password?", "", true, 8},
		{selector.KindTestID, "welcome", "", false, 9},
		{selector.KindXPath, "//a[@id='home']", "", false, 11},
		{selector.KindText, "Welcome", "", true, 12},
	})

	if got[0].SourceFile != "login.spec.ts" {
		t.Errorf("SourceFile = %q", got[0].SourceFile)
	}
	if got[2].Context != "await page.click('#submit');" {
		t.Errorf("Context = %q", got[2].Context)
	}
}

func TestSource_Cypress(t *testing.T) {
	got, err := NewSource(nil).Extract("cart.cy.ts", []byte(cypressSpec))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	check(t, got, []want{
		{selector.KindCSS, `[data-cy="add"]`, "", false, 3},
		{selector.KindText, "Checkout", "", false, 4},
		{selector.KindText, "Pay", "", false, 5},
		{selector.KindRole, "link", "Home", false, 7},
	})
}

func TestSource_CustomRules(t *testing.T) {
	rules := DefaultSourceRules[2:3] // by-test-id only
	got, err := NewSource(rules).Extract("x.ts", []byte(playwrightSpec))
	if err != nil {
		t.Fatal(err)
	}
	check(t, got, []want{{selector.KindTestID, "welcome", "", false, 9}})
}

func TestSource_Escapes(t *testing.T) {
	got, err := NewSource(nil).Extract("x.ts", []byte(`await page.getByText('Don\'t save');`))
	if err != nil {
		t.Fatal(err)
	}
	check(t, got, []want{{selector.KindText, "Don't save", "", false, 1}})
}

func TestFlow_Extract(t *testing.T) {
	got, err := (&Flow{}).Extract("login.yaml", []byte(maestroFlow))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	check(t, got, []want{
		{selector.KindText, "Accept cookies", "", true, 3},
		{selector.KindText, "Login", "", true, 6},
		{selector.KindTestID, "email_input", "", false, 7},
		{selector.KindText, "Welcome", "", false, 10},
		{selector.KindTestID, "header", "", false, 13},
		{selector.KindText, "Footer", "", true, 14},
		{selector.KindCSS, "#next", "", false, 20},
		{selector.KindText, "Close", "", true, 26},
		{selector.KindText, "Promo", "", true, 24},
	})

	if got[2].Context != "- tapOn:" {
		t.Errorf("Context = %q, want the command line", got[2].Context)
	}
}

func TestFlow_InvalidYAML(t *testing.T) {
	_, err := (&Flow{}).Extract("bad.yaml", []byte("- tapOn: [unclosed\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Path != "bad.yaml" {
		t.Errorf("Path = %q", pe.Path)
	}
}

func TestTextSelector(t *testing.T) {
	tests := []struct {
		in    string
		text  string
		exact bool
	}{
		{"Login", "Login", true},
		{"Sign in.", "Sign in.", true},
		{".*Welcome.*", "Welcome", false},
		{"Item \\d+", "Item \\d+", false},
	}
	for _, tt := range tests {
		got := textSelector(tt.in)
		if got.Text != tt.text || got.Exact != tt.exact {
			t.Errorf("textSelector(%q) = %q/%v, want %q/%v", tt.in, got.Text, got.Exact, tt.text, tt.exact)
		}
	}
}

func TestInteractionFor(t *testing.T) {
	tests := []struct {
		context string
		want    string
	}{
		{"cy.get('#a').click();", "click"},
		{"await page.getByLabel('Email').fill('x');", "fill"},
		{"await expect(page.getByTestId('w')).toBeVisible();", "assert"},
		{"await page.locator('#b').dblclick();", "dblclick"},
		{"- tapOn: Login", "click"},
		{"const el = page.locator('#c');", "locate"},
	}
	for _, tt := range tests {
		if got := InteractionFor(selector.Selector{Context: tt.context}); got != tt.want {
			t.Errorf("InteractionFor(%q) = %q, want %q", tt.context, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"**/*.spec.ts", "tests/login.spec.ts", true},
		{"**/*.spec.ts", "login.spec.ts", true},
		{"**/*.spec.ts", "a/b/c/x.spec.ts", true},
		{"**/*.spec.ts", "tests/login.test.ts", false},
		{"e2e/*.ts", "e2e/sub/x.ts", false},
		{"e2e/**/x.ts", "e2e/x.ts", true},
		{"*.yaml", "flows/a.yaml", false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.name); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFilesAndFromFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"tests/login.spec.ts":             playwrightSpec,
		"node_modules/pkg/vendor.spec.ts": playwrightSpec,
		"flows/login.yaml":                maestroFlow,
		"flows/broken.yaml":               "- tapOn: [unclosed\n",
		"README.md":                       "# docs",
	})

	files, err := Files(root, []string{"**/*.spec.ts", "**/*.yaml"})
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	wantFiles := []string{
		filepath.Join(root, "flows", "broken.yaml"),
		filepath.Join(root, "flows", "login.yaml"),
		filepath.Join(root, "tests", "login.spec.ts"),
	}
	if len(files) != len(wantFiles) {
		t.Fatalf("Files() = %v, want %v", files, wantFiles)
	}
	for i := range wantFiles {
		if files[i] != wantFiles[i] {
			t.Errorf("Files()[%d] = %q, want %q", i, files[i], wantFiles[i])
		}
	}

	groups, err := FromFiles(append(files, filepath.Join(root, "README.md")), nil)
	if err != nil {
		t.Fatalf("FromFiles() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("FromFiles() returned %d groups, want 2 (broken flow and README skipped)", len(groups))
	}
	if n := len(All(groups)); n != 16 {
		t.Errorf("All() = %d selectors, want 16", n)
	}

	if _, err := FromFiles([]string{filepath.Join(root, "missing.spec.ts")}, nil); err == nil {
		t.Error("FromFiles() with only unreadable files should fail")
	}
}

func TestForFile(t *testing.T) {
	if _, ok := ForFile("a.spec.tsx").(*Source); !ok {
		t.Error("tsx should use the source extractor")
	}
	if _, ok := ForFile("flow.YML").(*Flow); !ok {
		t.Error("yml should use the flow extractor")
	}
	if ForFile("notes.txt") != nil {
		t.Error("txt should be unsupported")
	}
}

const envFlow = `appId: com.example
env:
  SUBMIT: Sign in
  GREETING: Hello ${USER}
---
- tapOn: ${SUBMIT}
- assertVisible: ${GREETING}
- tapOn:
    id: ${PREFIX + "_button"}
- tapOn: ${UNKNOWN}
`

func TestFlow_EnvExpansion(t *testing.T) {
	f := &Flow{Env: map[string]string{"USER": "ada", "PREFIX": "checkout", "SUBMIT": "Log in"}}
	got, err := f.Extract("env.yaml", []byte(envFlow))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []selector.Selector{
		{Kind: selector.KindText, Text: "Log in", Exact: true},
		{Kind: selector.KindText, Text: "Hello ada", Exact: true},
		{Kind: selector.KindTestID, Text: "checkout_button"},
		{Kind: selector.KindText, Text: "${UNKNOWN}"},
	}
	if len(got) != len(want) {
		t.Fatalf("Extract() returned %d selectors, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Kind != w.Kind || got[i].Text != w.Text || got[i].Exact != w.Exact {
			t.Errorf("selector %d = %s %q exact=%v, want %s %q exact=%v",
				i, got[i].Kind, got[i].Text, got[i].Exact, w.Kind, w.Text, w.Exact)
		}
	}
}

func TestFromFiles_WithEnv(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "flow.yaml")
	if err := os.WriteFile(path, []byte("- tapOn: ${LABEL}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := FromFiles([]string{path}, nil, WithEnv(map[string]string{"LABEL": "Continue"}))
	if err != nil {
		t.Fatalf("FromFiles() error = %v", err)
	}
	if len(groups) != 1 || len(groups[0].Selectors) != 1 || groups[0].Selectors[0].Text != "Continue" {
		t.Errorf("FromFiles() = %+v", groups)
	}
}
