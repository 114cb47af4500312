package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazz-dev/watchdog/internal/probe"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    target     TEXT    NOT NULL,
    probed_at  TEXT    NOT NULL,
    outcome    TEXT    NOT NULL CHECK(outcome IN ('success', 'failure', 'timeout', 'error')),
    latency_ms INTEGER,
    detail     TEXT    NOT NULL DEFAULT '',
    UNIQUE(target, probed_at)
);

CREATE INDEX IF NOT EXISTS idx_results_target_probed ON results(target, probed_at DESC);
`

// timeLayout is RFC 3339 with fixed-width nanoseconds, always UTC, so that
// lexicographic order of stored timestamps matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDuplicate is returned by Append when a result with the same
// (target, probed_at) natural key already exists.
var ErrDuplicate = errors.New("duplicate result")

// DB wraps a SQLite database holding the append-only result history.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Append durably persists one probe result. It returns ErrDuplicate when the
// (target, probed_at) pair is already present. Latency is stored NULL for
// timeout and error outcomes, where it carries no meaning.
func (d *DB) Append(ctx context.Context, r probe.Result) error {
	latency := sql.NullInt64{}
	if r.Outcome == probe.OutcomeSuccess || r.Outcome == probe.OutcomeFailure {
		latency = sql.NullInt64{Int64: r.Latency.Milliseconds(), Valid: true}
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO results (target, probed_at, outcome, latency_ms, detail) VALUES (?, ?, ?, ?, ?)`,
		r.Target,
		r.ProbedAt.UTC().Format(timeLayout),
		string(r.Outcome),
		latency,
		r.Detail,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("result for %q at %s: %w", r.Target, r.ProbedAt.UTC().Format(timeLayout), ErrDuplicate)
		}
		return fmt.Errorf("inserting result for %q: %w", r.Target, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Latest returns the most recent result for the given target, or nil if the
// target has never been probed.
func (d *DB) Latest(ctx context.Context, target string) (*probe.Result, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT target, probed_at, outcome, latency_ms, detail FROM results WHERE target = ? ORDER BY probed_at DESC LIMIT 1`,
		target,
	)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest result for %q: %w", target, err)
	}
	return r, nil
}

// History returns up to limit results for a target, newest first. A zero
// since means no lower bound; otherwise only results probed at or after since
// are returned.
func (d *DB) History(ctx context.Context, target string, since time.Time, limit int) ([]probe.Result, error) {
	bound := ""
	if !since.IsZero() {
		bound = since.UTC().Format(timeLayout)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT target, probed_at, outcome, latency_ms, detail FROM results WHERE target = ? AND probed_at >= ? ORDER BY probed_at DESC LIMIT ?`,
		target, bound, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history for %q: %w", target, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// AllLatest returns the most recent result for each target that has been
// probed at least once, ordered by target name.
func (d *DB) AllLatest(ctx context.Context) ([]probe.Result, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT target, probed_at, outcome, latency_ms, detail
		FROM results
		WHERE id IN (
			SELECT MAX(id) FROM results GROUP BY target
		)
		ORDER BY target
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// Targets returns the set of targets with at least one stored result.
func (d *DB) Targets(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT target FROM results ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning target row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating target rows: %w", err)
	}
	return targets, nil
}

// UptimeSince returns the percentage of successful probes for a target at or
// after since, along with the number of samples in the window.
func (d *DB) UptimeSince(ctx context.Context, target string, since time.Time) (float64, int, error) {
	var total int
	var up sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END)
		FROM results
		WHERE target = ? AND probed_at >= ?
	`, target, since.UTC().Format(timeLayout)).Scan(&total, &up)
	if err != nil {
		return 0, 0, fmt.Errorf("calculating uptime for %q: %w", target, err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(up.Int64) / float64(total) * 100, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*probe.Result, error) {
	var r probe.Result
	var probedAt string
	var outcome string
	var latency sql.NullInt64
	if err := row.Scan(&r.Target, &probedAt, &outcome, &latency, &r.Detail); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, probedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing probed_at %q: %w", probedAt, err)
	}
	r.ProbedAt = t
	r.Outcome = probe.Outcome(outcome)
	if latency.Valid {
		r.Latency = time.Duration(latency.Int64) * time.Millisecond
	}
	return &r, nil
}

func scanResults(rows *sql.Rows) ([]probe.Result, error) {
	var results []probe.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return results, nil
}
