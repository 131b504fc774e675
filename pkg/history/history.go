// Package history keeps one row per coverage run in SQLite so coverage can
// be tracked over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/devicelab-dev/ui-coverage/pkg/report"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

// TypeCount is one semantic type's counts in a run.
type TypeCount struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
}

// Run is one recorded coverage measurement.
type Run struct {
	ID                 string               `json:"id"`
	CreatedAt          time.Time            `json:"createdAt"`
	Source             string               `json:"source"`
	Label              string               `json:"label,omitempty"`
	TotalElements      int                  `json:"totalElements"`
	CoveredElements    int                  `json:"coveredElements"`
	CoveragePercentage int                  `json:"coveragePercentage"`
	TotalSelectors     int                  `json:"totalSelectors,omitempty"`
	MatchedSelectors   int                  `json:"matchedSelectors,omitempty"`
	Types              map[string]TypeCount `json:"types,omitempty"`
}

// Delta returns the change in coverage percentage since prev.
func (r Run) Delta(prev Run) int {
	return r.CoveragePercentage - prev.CoveragePercentage
}

// FromReport converts a rendered report into a run row.
func FromReport(rep *report.Report, label string) Run {
	run := Run{
		CreatedAt:          rep.GeneratedAt,
		Source:             string(rep.Source),
		Label:              label,
		TotalElements:      rep.Summary.TotalElements,
		CoveredElements:    rep.Summary.CoveredElements,
		CoveragePercentage: rep.Summary.CoveragePercentage,
		TotalSelectors:     rep.Summary.TotalSelectors,
		MatchedSelectors:   rep.Summary.MatchedSelectors,
		Types:              make(map[string]TypeCount, len(rep.Types)),
	}
	for _, t := range rep.Types {
		if t.Applicable {
			run.Types[t.Type] = TypeCount{Total: t.Total, Covered: t.Covered}
		}
	}
	return run
}

// Store is the run history database.
type Store struct {
	db   *sql.DB
	path string
}

// openDB opens a SQLite database at the given path
func openDB(dbPath string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return sqlDB, nil
}

// Open opens or creates the history database at path, creating parent
// directories as needed. Pass Memory for a throwaway database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	sqlDB, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: sqlDB, path: path}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a run. A missing ID or CreatedAt is filled in; the stored
// run is returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, source, label, total_elements, covered_elements,
			coverage_percentage, total_selectors, matched_selectors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Source, run.Label, run.TotalElements, run.CoveredElements,
		run.CoveragePercentage, run.TotalSelectors, run.MatchedSelectors)
	if err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}

	types := make([]string, 0, len(run.Types))
	for t := range run.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		c := run.Types[t]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_types (run_id, type, total, covered) VALUES (?, ?, ?, ?)`,
			run.ID, t, c.Total, c.Covered); err != nil {
			return run, fmt.Errorf("insert run type %s: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("commit: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit of 0 or less returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, created_at, source, label, total_elements, covered_elements,
			coverage_percentage, total_selectors, matched_selectors
		FROM runs
		ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	index := map[string]int{}
	for rows.Next() {
		var (
			run     Run
			created int64
		)
		if err := rows.Scan(&run.ID, &created, &run.Source, &run.Label, &run.TotalElements, &run.CoveredElements,
			&run.CoveragePercentage, &run.TotalSelectors, &run.MatchedSelectors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(created)
		run.Types = map[string]TypeCount{}
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT run_id, type, total, covered FROM run_types`)
	if err != nil {
		return nil, fmt.Errorf("query run types: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var (
			id, typ string
			c       TypeCount
		)
		if err := typeRows.Scan(&id, &typ, &c.Total, &c.Covered); err != nil {
			return nil, fmt.Errorf("scan run type: %w", err)
		}
		if i, ok := index[id]; ok {
			runs[i].Types[typ] = c
		}
	}
	return runs, typeRows.Err()
}

// Latest returns the newest run, if any.
func (s *Store) Latest(ctx context.Context) (Run, bool, error) {
	runs, err := s.List(ctx, 1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
