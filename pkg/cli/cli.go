// Package cli provides the command-line interface for ui-coverage.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/ui-coverage/pkg/config"
	"github.com/devicelab-dev/ui-coverage/pkg/logger"
	"github.com/devicelab-dev/ui-coverage/pkg/report"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ui-coverage.yaml (default: ./ui-coverage.yaml when present)",
	},
	&cli.StringFlag{
		Name:  "coverage-file",
		Usage: "Aggregated coverage state file",
	},
	&cli.StringFlag{
		Name:  "history-db",
		Usage: "SQLite database for run history",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"UICOV_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "ui-coverage",
		Usage:   "Measure how much of a UI your tests touch",
		Version: Version,
		Description: `ui-coverage matches the selectors in your test sources against the
interactive elements of your pages and keeps a running total across runs.

Examples:
  ui-coverage analyze --url http://localhost:3000 --tests e2e/
  ui-coverage analyze --html build/index.html --format console,html
  ui-coverage report --format json,lcov
  ui-coverage history --limit 5`,
		Flags: GlobalFlags,
		// Exit codes are applied by Execute so commands stay testable.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			analyzeCommand,
			reportCommand,
			dedupeCommand,
			clearCommand,
			historyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		if exit, ok := err.(cli.ExitCoder); ok {
			if msg := exit.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// settings is the resolved configuration shared by every command.
type settings struct {
	cfg   *config.Config
	log   *zap.Logger
	out   io.Writer
	color bool
}

// loadSettings resolves configuration in order: defaults, config file,
// .env and UICOV_* variables, then command-line flags.
func loadSettings(c *cli.Context) (*settings, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	if v := c.String("coverage-file"); v != "" {
		cfg.CoverageFile = v
	}
	if v := c.String("history-db"); v != "" {
		cfg.HistoryDB = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Logger.Level = v
	}
	if c.Bool("verbose") {
		cfg.Logger.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logger.Env, cfg.Logger.Level)
	if err != nil {
		return nil, err
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	color := false
	if f, ok := out.(*os.File); ok && !c.Bool("no-ansi") {
		color = report.ColorEnabled(f)
	}

	return &settings{cfg: cfg, log: log, out: out, color: color}, nil
}

// formats returns the report formats from the flag, or the configured ones.
func (s *settings) formats(c *cli.Context) []report.Format {
	names := c.StringSlice("format")
	if len(names) == 0 {
		names = s.cfg.Formats
	}
	formats := make([]report.Format, 0, len(names))
	for _, n := range names {
		formats = append(formats, report.Format(n))
	}
	return formats
}

// outputDir returns --output, or the configured directory.
func (s *settings) outputDir(c *cli.Context) string {
	if v := c.String("output"); v != "" {
		return v
	}
	return s.cfg.OutputDir
}

// minCoverage returns --min-coverage when set, or the configured threshold.
func (s *settings) minCoverage(c *cli.Context) int {
	if c.IsSet("min-coverage") {
		return c.Int("min-coverage")
	}
	return s.cfg.MinCoverage
}

// checkThreshold fails with exit code 2 when coverage is below min.
func checkThreshold(pct, min int) error {
	if min > 0 && pct < min {
		return cli.Exit(fmt.Sprintf("coverage %d%% is below the minimum of %d%%", pct, min), 2)
	}
	return nil
}
