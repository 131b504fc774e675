// Package config handles configuration for ui-coverage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// Environment variables that override the config file.
const (
	EnvCoverageFile = "UICOV_COVERAGE_FILE"
	EnvHistoryDB    = "UICOV_HISTORY_DB"
	EnvLogLevel     = "UICOV_LOG_LEVEL"
	EnvLogEnv       = "UICOV_ENV"
	EnvHeadless     = "UICOV_HEADLESS"
	EnvMinCoverage  = "UICOV_MIN_COVERAGE"
)

// Report formats understood by the report package.
var Formats = []string{"console", "json", "html", "lcov"}

// Config represents the workspace configuration (ui-coverage.yaml).
type Config struct {
	// State
	CoverageFile string `yaml:"coverageFile"` // Aggregator state file
	HistoryDB    string `yaml:"historyDb"`    // SQLite run history
	OutputDir    string `yaml:"outputDir"`    // Report output directory

	// Inputs
	Tests     []string `yaml:"tests"`     // Glob patterns for test sources
	Pages     []string `yaml:"pages"`     // URLs to discover
	HTMLFiles []string `yaml:"htmlFiles"` // Static HTML files to discover

	// Reporting
	Formats     []string `yaml:"formats"`
	MinCoverage int      `yaml:"minCoverage"` // Fail below this percentage, 0 disables

	Browser Browser `yaml:"browser"`
	Logger  Logger  `yaml:"logger"`
}

// Browser configures live page discovery.
type Browser struct {
	Name          string `yaml:"name"` // chromium, firefox or webkit
	Headless      bool   `yaml:"headless"`
	TimeoutMs     int    `yaml:"timeoutMs"`
	IncludeHidden bool   `yaml:"includeHidden"`
}

// Logger configures the zap logger.
type Logger struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home := GetHome()
	return &Config{
		CoverageFile: filepath.Join(home, "coverage.json"),
		HistoryDB:    filepath.Join(home, "history.db"),
		OutputDir:    filepath.Join(home, "report"),
		Tests:        []string{"**/*.spec.ts", "**/*.test.ts", "**/*.spec.js", "**/*.cy.ts", "**/*.yaml"},
		Formats:      []string{"console"},
		Browser: Browser{
			Name:      "chromium",
			Headless:  true,
			TimeoutMs: 30000,
		},
		Logger: Logger{
			Env:   "development",
			Level: "info",
		},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithDetails(map[string]interface{}{"path": path})
	}

	return cfg, nil
}

// LoadFromDir looks for ui-coverage.yaml or ui-coverage.yml in the directory
// and loads a .env file from it when present.
func LoadFromDir(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	for _, name := range []string{"ui-coverage.yaml", "ui-coverage.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}

// ApplyEnv overrides fields from UICOV_* environment variables.
func (c *Config) ApplyEnv() {
	c.CoverageFile = env(EnvCoverageFile, c.CoverageFile)
	c.HistoryDB = env(EnvHistoryDB, c.HistoryDB)
	c.Logger.Level = env(EnvLogLevel, c.Logger.Level)
	c.Logger.Env = env(EnvLogEnv, c.Logger.Env)
	c.MinCoverage = envInt(EnvMinCoverage, c.MinCoverage)
	if v, ok := os.LookupEnv(EnvHeadless); ok {
		c.Browser.Headless = parseBool(v)
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.MinCoverage < 0 || c.MinCoverage > 100 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("minCoverage must be between 0 and 100, got %d", c.MinCoverage))
	}
	for _, f := range c.Formats {
		if !knownFormat(f) {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown report format %q (want one of %s)", f, strings.Join(Formats, ", ")))
		}
	}
	switch c.Browser.Name {
	case "", "chromium", "firefox", "webkit":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown browser %q", c.Browser.Name))
	}
	return nil
}

func knownFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}
