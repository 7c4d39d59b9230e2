package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tracelens/internal/payload"
	"tracelens/internal/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	trace_id   TEXT NOT NULL,
	project    TEXT NOT NULL,
	run_date   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_trace ON runs(trace_id);
CREATE INDEX IF NOT EXISTS idx_runs_project_date ON runs(project, run_date);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date);
`

// availPath is the fixed payload path of the availability verdict on a
// root run's outputs.
const availPath = "$.outputs.is_available"

// SqlStore implements Store with SQLite. Aggregation is pushed into SQL:
// the root-run filter, GROUP BY calendar date, the EXISTS sub-lookup for
// the scraper signal and json_type inspection for availability.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path, creating the parent
// directory when missing.
func Open(path string) (*SqlStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir %q: %w", dir, err)
		}
	}
	return open(path)
}

// OpenMemory opens an in-memory SQLite DB for testing.
func OpenMemory() (*SqlStore, error) {
	return open(":memory:")
}

func open(dsn string) (*SqlStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// Single writer connection; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SqlStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error { return s.db.Close() }

// UpsertRuns implements Store.
func (s *SqlStore) UpsertRuns(ctx context.Context, runs []trace.Run) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("store: prepare: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (run_id, trace_id, project, run_date, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			trace_id = excluded.trace_id,
			project = excluded.project,
			run_date = excluded.run_date,
			created_at = excluded.created_at,
			payload = excluded.payload`)
	if err != nil {
		return 0, 0, fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer upsert.Close()

	for _, r := range runs {
		if r.RunID == "" {
			return inserted, updated, fmt.Errorf("store: run with empty run_id (trace %q)", r.TraceID)
		}
		if _, err := ParseDate(r.Date); err != nil {
			return inserted, updated, fmt.Errorf("store: run %q: %w", r.RunID, err)
		}
		body, err := json.Marshal(r.Payload.Raw())
		if err != nil {
			return inserted, updated, fmt.Errorf("store: encode payload of %q: %w", r.RunID, err)
		}

		var one int
		switch err := exists.QueryRowContext(ctx, r.RunID).Scan(&one); err {
		case nil:
			updated++
		case sql.ErrNoRows:
			inserted++
		default:
			return inserted, updated, fmt.Errorf("store: probe %q: %w", r.RunID, err)
		}

		if _, err := upsert.ExecContext(ctx, r.RunID, r.TraceID, r.Project, r.Date,
			r.CreatedAt.UTC().Format(time.RFC3339Nano), string(body)); err != nil {
			return inserted, updated, fmt.Errorf("store: upsert %q: %w", r.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, updated, fmt.Errorf("store: commit upsert: %w", err)
	}
	return inserted, updated, nil
}

// FindRuns implements Store.
func (s *SqlStore) FindRuns(ctx context.Context, q Query) ([]trace.Run, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	query := `SELECT run_id, trace_id, project, run_date, created_at, payload
		FROM runs WHERE run_date BETWEEN ? AND ?`
	args := []any{q.From, q.To}
	if q.Project != "" {
		query += ` AND project = ?`
		args = append(args, q.Project)
	}
	query += ` ORDER BY run_date, trace_id, created_at, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find runs: %w", err)
	}
	defer rows.Close()

	var out []trace.Run
	for rows.Next() {
		var r trace.Run
		var created, body string
		if err := rows.Scan(&r.RunID, &r.TraceID, &r.Project, &r.Date, &created, &body); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("store: run %q created_at: %w", r.RunID, err)
		}
		if r.Payload, err = payload.Parse([]byte(body)); err != nil {
			return nil, fmt.Errorf("store: run %q payload: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AggregateMetric implements Store.
func (s *SqlStore) AggregateMetric(ctx context.Context, signal Signal, q Query) ([]DayCount, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	switch signal {
	case SignalScraperError:
		return s.aggregateScraper(ctx, q)
	case SignalAvailability:
		return s.aggregateAvailability(ctx, q)
	default:
		return nil, fmt.Errorf("store: unknown signal %q", signal)
	}
}

func (s *SqlStore) aggregateScraper(ctx context.Context, q Query) ([]DayCount, error) {
	query := `
		SELECT r.run_date,
			COUNT(*) AS total,
			COALESCE(SUM(EXISTS (
				SELECT 1 FROM runs c
				WHERE c.trace_id = r.trace_id
					AND json_extract(c.payload, '$.name') = ?
					AND COALESCE(json_extract(c.payload, '$.status'), '') <> ?
			)), 0) AS failing
		FROM runs r
		WHERE r.run_id = r.trace_id AND r.run_date BETWEEN ? AND ?`
	args := []any{q.step(), trace.StatusSuccess, q.From, q.To}
	if q.Project != "" {
		query += ` AND r.project = ?`
		args = append(args, q.Project)
	}
	query += ` GROUP BY r.run_date ORDER BY r.run_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate scraper_error: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Total, &d.Failing); err != nil {
			return nil, fmt.Errorf("store: scan scraper_error row: %w", err)
		}
		d.Measured = d.Total
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SqlStore) aggregateAvailability(ctx context.Context, q Query) ([]DayCount, error) {
	// json_type yields 'true'/'false' for JSON booleans and NULL for a
	// missing path, which encodes the explicit null-handling rule:
	// absent fields stay out of the denominator.
	query := `
		SELECT r.run_date,
			COUNT(*) AS total,
			COALESCE(SUM(json_type(r.payload, '` + availPath + `') = 'false'), 0) AS failing,
			COALESCE(SUM(json_type(r.payload, '` + availPath + `') IN ('true','false')), 0) AS measured
		FROM runs r
		WHERE r.run_id = r.trace_id AND r.run_date BETWEEN ? AND ?`
	args := []any{q.From, q.To}
	if q.Project != "" {
		query += ` AND r.project = ?`
		args = append(args, q.Project)
	}
	query += ` GROUP BY r.run_date ORDER BY r.run_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate availability: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Total, &d.Failing, &d.Measured); err != nil {
			return nil, fmt.Errorf("store: scan availability row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AggregateCombined implements Store.
func (s *SqlStore) AggregateCombined(ctx context.Context, q Query) ([]CombinedDayCount, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	query := `
		SELECT r.run_date,
			COUNT(*) AS total,
			COALESCE(SUM(EXISTS (
				SELECT 1 FROM runs c
				WHERE c.trace_id = r.trace_id
					AND json_extract(c.payload, '$.name') = ?
					AND COALESCE(json_extract(c.payload, '$.status'), '') <> ?
			)), 0) AS scraper_failing,
			COALESCE(SUM(json_type(r.payload, '` + availPath + `') = 'false'), 0) AS avail_false,
			COALESCE(SUM(json_type(r.payload, '` + availPath + `') IN ('true','false')), 0) AS avail_measured
		FROM runs r
		WHERE r.run_id = r.trace_id AND r.run_date BETWEEN ? AND ?`
	args := []any{q.step(), trace.StatusSuccess, q.From, q.To}
	if q.Project != "" {
		query += ` AND r.project = ?`
		args = append(args, q.Project)
	}
	query += ` GROUP BY r.run_date ORDER BY r.run_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate combined: %w", err)
	}
	defer rows.Close()

	var out []CombinedDayCount
	for rows.Next() {
		var d CombinedDayCount
		if err := rows.Scan(&d.Date, &d.Total, &d.ScraperFailing,
			&d.AvailabilityFalse, &d.AvailabilityMeasured); err != nil {
			return nil, fmt.Errorf("store: scan combined row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats implements Store.
func (s *SqlStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByProject: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT trace_id),
			COALESCE(MIN(run_date), ''), COALESCE(MAX(run_date), '')
		FROM runs`)
	if err := row.Scan(&st.Runs, &st.Traces, &st.First, &st.Last); err != nil {
		return st, fmt.Errorf("store: stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT project, COUNT(*) FROM runs GROUP BY project`)
	if err != nil {
		return st, fmt.Errorf("store: stats by project: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return st, fmt.Errorf("store: scan project stat: %w", err)
		}
		st.ByProject[p] = n
	}
	return st, rows.Err()
}
