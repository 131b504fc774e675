package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/ui-coverage/pkg/aggregator"
	"github.com/devicelab-dev/ui-coverage/pkg/history"
	"github.com/devicelab-dev/ui-coverage/pkg/report"
)

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "Render the aggregated coverage of every recorded run",
	Description: `Build a report from the coverage store instead of a single run.

Examples:
  ui-coverage report
  ui-coverage report --format json,html --output coverage/
  ui-coverage --coverage-file shared/coverage.json report --min-coverage 70`,
	Flags: []cli.Flag{
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
	},
	Action: runReport,
}

func runReport(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	agg := aggregator.Open(s.cfg.CoverageFile, s.log)
	rep := report.FromAggregate(agg.GenerateAggregatedCoverage(), agg.Records(), c.String("title"))

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

	return checkThreshold(rep.Summary.CoveragePercentage, s.minCoverage(c))
}

var dedupeCommand = &cli.Command{
	Name:  "dedupe",
	Usage: "Merge coverage records that describe the same element",
	Description: `Records written by older versions, or by concurrent runs, can hold the same
element under differently spelled selectors. dedupe folds them into one
record per element, keeping every discovery and every covering test.`,
	Action: runDedupe,
}

func runDedupe(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	agg := aggregator.Open(s.cfg.CoverageFile, s.log)
	r := agg.CleanupDuplicates()

	if !r.Changed() {
		fmt.Fprintf(s.out, "%s✓%s No duplicates in %s (%d records)\n",
			s.c(colorGreen), s.c(colorReset), s.cfg.CoverageFile, r.After)
		return nil
	}
	fmt.Fprintf(s.out, "%s✓%s %d → %d records (%d merged in %d groups, %d rekeyed)\n",
		s.c(colorGreen), s.c(colorReset), r.Before, r.After, r.Merged, r.Groups, r.Rekeyed)
	return nil
}

var clearCommand = &cli.Command{
	Name:  "clear",
	Usage: "Delete all recorded coverage",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Confirm clearing the coverage store",
		},
		&cli.BoolFlag{
			Name:  "history",
			Usage: "Also delete the run history",
		},
	},
	Action: runClear,
}

func runClear(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	if !c.Bool("yes") {
		return fmt.Errorf("refusing to clear %s without --yes", s.cfg.CoverageFile)
	}

	agg := aggregator.Open(s.cfg.CoverageFile, s.log)
	n := len(agg.Keys())
	agg.Clear()
	fmt.Fprintf(s.out, "%s✓%s Cleared %d records from %s\n", s.c(colorGreen), s.c(colorReset), n, s.cfg.CoverageFile)

	if c.Bool("history") {
		store, err := history.Open(s.cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		removed, err := store.Prune(contextOf(c), 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s✓%s Removed %d history runs\n", s.c(colorGreen), s.c(colorReset), removed)
	}
	return nil
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Show coverage of recent runs",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Number of runs to show (0 = all)",
			Value:   10,
		},
		&cli.IntFlag{
			Name:  "keep",
			Usage: "Delete all but the newest N runs before listing",
		},
	},
	Action: runHistory,
}

func runHistory(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	store, err := history.Open(s.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := contextOf(c)
	if c.IsSet("keep") {
		if _, err := store.Prune(ctx, c.Int("keep")); err != nil {
			return err
		}
	}

	// One extra row so the oldest shown run still gets a delta.
	limit := c.Int("limit")
	fetch := limit
	if fetch > 0 {
		fetch++
	}
	runs, err := store.List(ctx, fetch)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.out, "No runs recorded yet.")
		return nil
	}
	shown := runs
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	printHistory(s, shown, runs)
	return nil
}

// printHistory prints shown as a table; all holds shown plus at most one
// older run used for the last delta.
func printHistory(s *settings, shown, all []history.Run) {
	width := 78
	fmt.Fprintf(s.out, "  %s%-17s %-6s %-20s %8s %7s %11s%s\n",
		s.c(colorBold), "Date", "Source", "Label", "Coverage", "Change", "Elements", s.c(colorReset))
	fmt.Fprintln(s.out, rule(width))

	for i, run := range shown {
		change := ""
		if i+1 < len(all) {
			change = formatDelta(s, run.Delta(all[i+1]))
		}
		fmt.Fprintf(s.out, "  %-17s %-6s %-20s %7d%% %7s %11s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.Source,
			truncate(run.Label, 20),
			run.CoveragePercentage,
			change,
			fmt.Sprintf("%d/%d", run.CoveredElements, run.TotalElements))
	}
	fmt.Fprintln(s.out, rule(width))
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
