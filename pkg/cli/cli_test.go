package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/ui-coverage/pkg/aggregator"
	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/coverage"
	"github.com/devicelab-dev/ui-coverage/pkg/report"
	"github.com/devicelab-dev/ui-coverage/pkg/selector"
)

const loginPage = `<!doctype html>
<html><body>
<form>
  <input id="email" name="email">
  <button id="submit">Sign in</button>
</form>
<a href="/help" class="help">Help</a>
</body></html>`

const loginSpec = `test('login', async ({ page }) => {
  await page.fill('#email', 'a@b.c');
  await page.click('#submit');
});
`

// workspace lays out a page, a test directory and state paths in a temp dir.
type workspace struct {
	html     string
	tests    string
	coverage string
	history  string
	output   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		html:     filepath.Join(dir, "login.html"),
		tests:    filepath.Join(dir, "e2e"),
		coverage: filepath.Join(dir, "state", "coverage.json"),
		history:  filepath.Join(dir, "state", "history.db"),
		output:   filepath.Join(dir, "report"),
	}
	if err := os.WriteFile(ws.html, []byte(loginPage), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ws.tests, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.tests, "login.spec.ts"), []byte(loginSpec), 0644); err != nil {
		t.Fatal(err)
	}
	return ws
}

func (ws workspace) global() []string {
	return []string{"--coverage-file", ws.coverage, "--history-db", ws.history, "--log-level", "error", "--no-ansi"}
}

func (ws workspace) analyze(extra ...string) []string {
	args := append(ws.global(), "analyze", "--html", ws.html, "--tests", ws.tests, "--output", ws.output)
	return append(args, extra...)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := NewApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"ui-coverage"}, args...))
	return out.String(), err
}

func TestGlobalFlags(t *testing.T) {
	if len(GlobalFlags) == 0 {
		t.Error("expected GlobalFlags to be defined")
	}

	flagNames := make(map[string]bool)
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	requiredFlags := []string{"config", "coverage-file", "history-db", "log-level", "verbose", "no-ansi"}
	for _, name := range requiredFlags {
		if !flagNames[name] {
			t.Errorf("expected flag %q to be defined", name)
		}
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := NewApp()
	for _, name := range []string{"analyze", "report", "dedupe", "clear", "history"} {
		if app.Command(name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestAnalyze_NoPages(t *testing.T) {
	ws := newWorkspace(t)
	args := append(ws.global(), "analyze", "--tests", ws.tests)

	_, err := runApp(t, args...)
	if err == nil {
		t.Fatal("expected error when no pages provided")
	}
	if !strings.Contains(err.Error(), "at least one --url or --html") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnalyze_InvalidBrowser(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := runApp(t, ws.analyze("--browser", "netscape")...); err == nil {
		t.Error("expected error for unknown browser")
	}
}

func TestAnalyze_StaticHTML(t *testing.T) {
	ws := newWorkspace(t)

	out, err := runApp(t, ws.analyze("--format", "console,json")...)
	if err != nil {
		t.Fatalf("analyze error = %v\n%s", err, out)
	}
	for _, want := range []string{"Coverage: 67%", "(2 of 3 elements)", "Selectors: 2 matched, 0 unmatched", "a.help", report.JSONFile} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	rep, err := report.ReadJSON(filepath.Join(ws.output, report.JSONFile))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if rep.Summary.CoveragePercentage != 67 || rep.Source != report.SourceRun {
		t.Errorf("report summary = %+v, source %q", rep.Summary, rep.Source)
	}

	agg := aggregator.Open(ws.coverage, nil)
	cov := agg.GenerateAggregatedCoverage()
	if cov.TotalElements != 3 || cov.CoveredElements != 2 {
		t.Errorf("store coverage = %d/%d, want 2/3", cov.CoveredElements, cov.TotalElements)
	}
	if len(cov.TestFiles) != 1 || filepath.Base(cov.TestFiles[0]) != "login.spec.ts" {
		t.Errorf("TestFiles = %v", cov.TestFiles)
	}

	// A second identical run adds no coverage and reports the trend.
	out, err = runApp(t, ws.analyze("--format", "console")...)
	if err != nil {
		t.Fatalf("second analyze error = %v", err)
	}
	if !strings.Contains(out, "Trend:") || !strings.Contains(out, "±0%") {
		t.Errorf("second run should print the trend:\n%s", out)
	}
}

func TestAnalyze_MinCoverage(t *testing.T) {
	ws := newWorkspace(t)

	_, err := runApp(t, ws.analyze("--format", "json", "--min-coverage", "90", "--no-history")...)
	if err == nil {
		t.Fatal("expected error below --min-coverage")
	}
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Errorf("error = %v, want exit code 2", err)
	}

	if _, err := os.Stat(ws.history); !os.IsNotExist(err) {
		t.Errorf("--no-history should not create %s", ws.history)
	}
}

func TestReportCommand(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := runApp(t, ws.analyze("--format", "json")...); err != nil {
		t.Fatal(err)
	}

	args := append(ws.global(), "report", "--format", "console,lcov", "--output", ws.output, "--title", "Store")
	out, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	if !strings.Contains(out, "Store") || !strings.Contains(out, "Coverage: 67%") {
		t.Errorf("unexpected report output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(ws.output, report.LCOVFile)); err != nil {
		t.Errorf("lcov file: %v", err)
	}

	args = append(ws.global(), "report", "--format", "json", "--output", ws.output, "--min-coverage", "80")
	if _, err := runApp(t, args...); err == nil {
		t.Error("report should fail below --min-coverage")
	}
}

func TestHistoryCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := runApp(t, append(ws.global(), "history")...)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No runs recorded yet.") {
		t.Errorf("empty history output:\n%s", out)
	}

	for i := 0; i < 3; i++ {
		if _, err := runApp(t, ws.analyze("--format", "json", "--label", "build-"+string(rune('1'+i)))...); err != nil {
			t.Fatal(err)
		}
	}

	out, err = runApp(t, append(ws.global(), "history", "--limit", "2")...)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if strings.Count(out, "67%") != 2 {
		t.Errorf("want 2 rows:\n%s", out)
	}
	if !strings.Contains(out, "build-3") || strings.Contains(out, "build-1") {
		t.Errorf("want the newest two runs:\n%s", out)
	}

	out, err = runApp(t, append(ws.global(), "history", "--keep", "1", "--limit", "0")...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "67%") != 1 {
		t.Errorf("--keep 1 should leave one run:\n%s", out)
	}
}

func TestDedupeAndClear(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := runApp(t, ws.analyze("--format", "json")...); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, append(ws.global(), "dedupe")...)
	if err != nil {
		t.Fatalf("dedupe error = %v", err)
	}
	if !strings.Contains(out, "No duplicates") || !strings.Contains(out, "3 records") {
		t.Errorf("unexpected dedupe output:\n%s", out)
	}

	if _, err := runApp(t, append(ws.global(), "clear")...); err == nil {
		t.Error("clear without --yes should fail")
	}

	out, err = runApp(t, append(ws.global(), "clear", "--yes", "--history")...)
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out, "Cleared 3 records") || !strings.Contains(out, "Removed 1 history runs") {
		t.Errorf("unexpected clear output:\n%s", out)
	}

	if n := len(aggregator.Open(ws.coverage, nil).Keys()); n != 0 {
		t.Errorf("records after clear = %d, want 0", n)
	}
}

func TestMarkCovered(t *testing.T) {
	elements := []core.ElementDescriptor{
		{Selector: "#email", SemanticType: core.TypeInput, ID: "email"},
		{Selector: "#submit", SemanticType: core.TypeButton, ID: "submit"},
	}
	selectors := []selector.Selector{
		{Kind: selector.KindCSS, Text: "#email", SourceFile: "e2e/a.spec.ts", SourceLine: 2, Context: "await page.fill('#email', 'x');"},
		{Kind: selector.KindCSS, Text: "#submit", SourceFile: "e2e/b.spec.ts", SourceLine: 3, Context: "await page.click('#submit');"},
		{Kind: selector.KindCSS, Text: "#missing", SourceFile: "e2e/b.spec.ts", SourceLine: 4},
	}
	res := coverage.CalculateCoverage(elements, selectors, "https://app.test")

	agg := aggregator.Open("", nil)
	if got := markCovered(agg, res, ""); got != 2 {
		t.Errorf("markCovered() = %d, want 2", got)
	}
	if got := markCovered(agg, res, ""); got != 0 {
		t.Errorf("second markCovered() = %d, want 0", got)
	}

	rec, ok := agg.Record(selector.IdentityKey("#submit", core.TypeButton))
	if !ok {
		t.Fatal("no record for #submit")
	}
	if len(rec.CoveredBy) != 1 {
		t.Fatalf("CoveredBy = %+v", rec.CoveredBy)
	}
	got := rec.CoveredBy[0]
	if got.TestFile != "e2e/b.spec.ts" || got.TestName != "b.spec.ts" || got.InteractionType != "click" {
		t.Errorf("CoveredBy[0] = %+v", got)
	}

	if markCovered(agg, res, "checkout flow") != 2 {
		t.Error("a different test name should add new coverage entries")
	}
}

func TestCheckThreshold(t *testing.T) {
	tests := []struct {
		pct, min int
		wantErr  bool
	}{
		{50, 0, false},
		{80, 80, false},
		{79, 80, true},
		{0, 1, true},
	}
	for _, tt := range tests {
		err := checkThreshold(tt.pct, tt.min)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkThreshold(%d, %d) error = %v, wantErr %v", tt.pct, tt.min, err, tt.wantErr)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	plain := &settings{}
	tests := []struct {
		delta int
		want  string
	}{
		{5, "+5%"},
		{-3, "-3%"},
		{0, "±0%"},
	}
	for _, tt := range tests {
		if got := formatDelta(plain, tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}

	colored := &settings{color: true}
	if got := formatDelta(colored, 5); got != colorGreen+"+5%"+colorReset {
		t.Errorf("colored formatDelta(5) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"feature/long-branch-name", 12, "feature/l..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestParseEnvVars(t *testing.T) {
	result := parseEnvVars([]string{"USER=test", "URL=http://x?a=b", "EMPTY=", "INVALID"})

	if result["USER"] != "test" {
		t.Errorf("expected USER=test, got %s", result["USER"])
	}
	if result["URL"] != "http://x?a=b" {
		t.Errorf("expected value with equals, got %s", result["URL"])
	}
	if v, ok := result["EMPTY"]; !ok || v != "" {
		t.Errorf("expected EMPTY='', got %q (present %v)", v, ok)
	}
	if _, ok := result["INVALID"]; ok {
		t.Error("entries without = should be skipped")
	}
}
