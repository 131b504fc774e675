package history

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    source TEXT NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    total_elements INTEGER NOT NULL,
    covered_elements INTEGER NOT NULL,
    coverage_percentage INTEGER NOT NULL,
    total_selectors INTEGER NOT NULL DEFAULT 0,
    matched_selectors INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS run_types (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    total INTEGER NOT NULL,
    covered INTEGER NOT NULL,
    PRIMARY KEY (run_id, type)
);
`
