package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/ui-coverage/pkg/aggregator"
	"github.com/devicelab-dev/ui-coverage/pkg/config"
	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/coverage"
	"github.com/devicelab-dev/ui-coverage/pkg/discover"
	"github.com/devicelab-dev/ui-coverage/pkg/extract"
	"github.com/devicelab-dev/ui-coverage/pkg/history"
	"github.com/devicelab-dev/ui-coverage/pkg/report"
)

var analyzeCommand = &cli.Command{
	Name:  "analyze",
	Usage: "Match test selectors against page elements and record coverage",
	Description: `Extract selectors from test sources, discover the interactive elements of
each page, and compute coverage. Results are added to the coverage store
and a row is appended to the run history.

Pages come from --url (opened in a browser through Playwright) or --html
(parsed without a browser). Both may be repeated.

Examples:
  ui-coverage analyze --url http://localhost:3000/login --tests e2e/
  ui-coverage analyze --html dist/index.html --pattern "**/*.cy.ts"
  ui-coverage analyze --url http://localhost:3000 --format console,html --min-coverage 80`,
	Flags: []cli.Flag{
		// Pages
		&cli.StringSliceFlag{
			Name:  "url",
			Usage: "Page URL to discover in a browser",
		},
		&cli.StringSliceFlag{
			Name:  "html",
			Usage: "Static HTML file to discover",
		},

		// Tests
		&cli.StringFlag{
			Name:  "tests",
			Usage: "Root directory of the test sources",
			Value: ".",
		},
		&cli.StringSliceFlag{
			Name:  "pattern",
			Usage: "Glob pattern for test files, relative to --tests (default from config)",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables for ${...} expressions in flows (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "test-name",
			Usage: "Test name recorded for coverage (default: the test file name)",
		},

		// Output
		&cli.StringSliceFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report formats (console, json, html, lcov)",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for report files",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Report title",
		},
		&cli.IntFlag{
			Name:  "min-coverage",
			Usage: "Exit with status 2 when coverage is below this percentage",
		},

		// History
		&cli.StringFlag{
			Name:  "label",
			Usage: "Label stored with the history row (for example a branch or build)",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "Don't append this run to the history database",
		},

		// Browser
		&cli.StringFlag{
			Name:  "browser",
			Usage: "Browser for --url pages (chromium, firefox, webkit)",
		},
		&cli.BoolFlag{
			Name:  "headed",
			Usage: "Show the browser window",
		},
		&cli.BoolFlag{
			Name:  "include-hidden",
			Usage: "Also count elements that are not visible",
		},
	},
	Action: runAnalyze,
}

// page is one discovered page.
type page struct {
	url      string
	elements []core.ElementDescriptor
}

func runAnalyze(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	cfg := s.cfg
	if v := c.String("browser"); v != "" {
		cfg.Browser.Name = v
	}
	if c.Bool("headed") {
		cfg.Browser.Headless = false
	}
	if c.Bool("include-hidden") {
		cfg.Browser.IncludeHidden = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	urls := c.StringSlice("url")
	htmlFiles := c.StringSlice("html")
	if len(urls) == 0 && len(htmlFiles) == 0 {
		urls, htmlFiles = cfg.Pages, cfg.HTMLFiles
	}
	if len(urls) == 0 && len(htmlFiles) == 0 {
		return fmt.Errorf("at least one --url or --html page is required")
	}

	patterns := c.StringSlice("pattern")
	if len(patterns) == 0 {
		patterns = cfg.Tests
	}
	files, err := extract.Files(c.String("tests"), patterns)
	if err != nil {
		return fmt.Errorf("failed to find test files: %w", err)
	}
	groups, err := extract.FromFiles(files, s.log, extract.WithEnv(parseEnvVars(c.StringSlice("env"))))
	if err != nil {
		return err
	}
	selectors := extract.All(groups)
	s.log.Info("selectors extracted", zap.Int("files", len(groups)), zap.Int("selectors", len(selectors)))

	ctx := contextOf(c)
	pages, err := discoverPages(ctx, cfg, s.log, urls, htmlFiles)
	if err != nil {
		return err
	}

	agg := aggregator.Open(cfg.CoverageFile, s.log)
	results := make([]*coverage.Result, 0, len(pages))
	for _, p := range pages {
		res := coverage.CalculateCoverage(p.elements, selectors, p.url)
		results = append(results, res)

		agg.AddDiscoveredElements(p.elements, "", p.url)
		added := markCovered(agg, res, c.String("test-name"))
		s.log.Debug("page analyzed",
			zap.String("page", p.url), zap.Int("elements", res.TotalElements),
			zap.Int("covered", res.CoveredElements), zap.Int("coverageEntries", added))
	}

	result := results[0]
	if len(results) > 1 {
		result = coverage.AggregatePageCoverage(results)
	}
	rep := report.FromResult(result, c.String("title"))

	paths, err := report.Write(rep, report.Options{
		OutputDir: s.outputDir(c),
		Formats:   s.formats(c),
		Console:   s.out,
		Color:     s.color,
	})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(s.out, "  %sReport:%s %s\n", s.c(colorGray), s.c(colorReset), p)
	}

	if !c.Bool("no-history") {
		recordHistory(ctx, s, rep, c.String("label"))
	}

	return checkThreshold(rep.Summary.CoveragePercentage, s.minCoverage(c))
}

// discoverPages runs the static discoverer over HTML files and the live
// discoverer over URLs. The browser is only started when a URL is given.
func discoverPages(ctx context.Context, cfg *config.Config, log *zap.Logger, urls, htmlFiles []string) ([]page, error) {
	var pages []page

	static := discover.NewStatic(cfg.Browser.IncludeHidden)
	for _, f := range htmlFiles {
		els, err := static.Discover(ctx, f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page{url: f, elements: els})
	}

	if len(urls) == 0 {
		return pages, nil
	}

	live := discover.NewLive(discover.LiveConfig{
		Browser:       cfg.Browser.Name,
		Headless:      cfg.Browser.Headless,
		Timeout:       time.Duration(cfg.Browser.TimeoutMs) * time.Millisecond,
		IncludeHidden: cfg.Browser.IncludeHidden,
		DriverDir:     config.GetDriverDir("playwright"),
	}, log)
	defer func() {
		if err := live.Close(); err != nil {
			log.Warn("failed to close browser", zap.Error(err))
		}
	}()

	for _, u := range urls {
		els, err := live.Discover(ctx, u)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page{url: u, elements: els})
	}
	return pages, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// coverageGroup is one MarkElementsCovered call: the elements one test
// file reached through one kind of interaction.
type coverageGroup struct {
	file        string
	interaction string
}

// markCovered records every element a selector reached, grouped by source
// file and interaction. testName overrides the per-file default name.
func markCovered(agg *aggregator.Aggregator, res *coverage.Result, testName string) int {
	var order []coverageGroup
	elements := map[coverageGroup][]core.ElementDescriptor{}

	for _, m := range res.Matches {
		if m.Element == nil {
			continue
		}
		g := coverageGroup{file: m.Selector.SourceFile, interaction: extract.InteractionFor(m.Selector)}
		if _, ok := elements[g]; !ok {
			order = append(order, g)
		}
		elements[g] = append(elements[g], *m.Element)
	}

	added := 0
	for _, g := range order {
		name := testName
		if name == "" {
			name = filepath.Base(g.file)
		}
		added += agg.MarkElementsCovered(elements[g], g.file, name, g.interaction)
	}
	return added
}

// recordHistory appends the run to the history database. History is
// best-effort: failures are logged and the run still succeeds.
func recordHistory(ctx context.Context, s *settings, rep *report.Report, label string) {
	store, err := history.Open(s.cfg.HistoryDB)
	if err != nil {
		s.log.Warn("history unavailable", zap.String("path", s.cfg.HistoryDB), zap.Error(err))
		return
	}
	defer store.Close()

	prev, hasPrev, err := store.Latest(ctx)
	if err != nil {
		s.log.Warn("failed to read history", zap.Error(err))
	}
	run, err := store.Record(ctx, history.FromReport(rep, label))
	if err != nil {
		s.log.Warn("failed to record history", zap.Error(err))
		return
	}
	if hasPrev {
		fmt.Fprintf(s.out, "  %sTrend:%s %s since %s\n",
			s.c(colorGray), s.c(colorReset), formatDelta(s, run.Delta(prev)), prev.CreatedAt.Format("2006-01-02 15:04"))
	}
}
