// Package ledger keeps the run history in a SQLite database inside the
// output directory. One row per pipeline run, one row per frame failure, so
// operators can inspect past runs without trawling logs.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"framelabel/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes. The ledger is derived
// state; a mismatched database can simply be deleted.
const schemaVersion = 1

// Run states recorded in the ledger.
const (
	RunStateRunning     = "running"
	RunStateCompleted   = "completed"
	RunStateInterrupted = "interrupted"
	RunStateFailed      = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID           string
	State        string
	DatasetPath  string
	ModelName    string
	Resumed      bool
	StartedAt    time.Time
	FinishedAt   *time.Time
	TotalSampled int
	Processed    int
	Skipped      int
	Failed       int
}

// Failure is one per-frame failure recorded during a run.
type Failure struct {
	RunID      string
	FrameID    string
	ErrorKind  string
	Reason     string
	RecordedAt time.Time
}

// Ledger wraps the SQLite connection.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "open", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrPersistence, "ledger", "apply pragma", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: path}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "check schema", l.path, err)
	}

	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "read schema version", l.path, err)
	}
	if version != schemaVersion {
		return services.Wrap(services.ErrPersistence, "ledger", "verify schema",
			fmt.Sprintf("database has version %d, expected %d (delete %s to rebuild)", version, schemaVersion, l.path), nil)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "begin schema tx", l.path, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "create schema", l.path, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "record schema version", l.path, err)
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "commit schema", l.path, err)
	}
	return nil
}

// StartRun records a new run in the running state.
func (l *Ledger) StartRun(ctx context.Context, runID, datasetPath, modelName string, resumed bool, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, state, dataset_path, model_name, resumed, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, RunStateRunning, datasetPath, modelName, boolToInt(resumed),
		startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "start run", runID, err)
	}
	return nil
}

// FinishRun records the terminal state and final counters for a run.
func (l *Ledger) FinishRun(ctx context.Context, runID, state string, totalSampled, processed, skipped, failed int, finishedAt time.Time) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, finished_at = ?, total_sampled = ?, processed = ?, skipped = ?, failed = ?
         WHERE run_id = ?`,
		state, finishedAt.UTC().Format(time.RFC3339Nano),
		totalSampled, processed, skipped, failed, runID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "finish run", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "finish run", runID, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "finish run", runID, nil)
	}
	return nil
}

// RecordFailure adds one per-frame failure row for a run.
func (l *Ledger) RecordFailure(ctx context.Context, runID, frameID, errorKind, reason string, recordedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO frame_failures (run_id, frame_id, error_kind, reason, recorded_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID, frameID, errorKind, reason, recordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "record failure", frameID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, state, dataset_path, model_name, resumed, started_at, finished_at,
                     total_sampled, processed, skipped, failed
              FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "list runs", l.path, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "ledger", "scan run", l.path, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "list runs", l.path, err)
	}
	return runs, nil
}

// GetRun returns a single run by id.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT run_id, state, dataset_path, model_name, resumed, started_at, finished_at,
                total_sampled, processed, skipped, failed
         FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "ledger", "get run", runID, nil)
		}
		return nil, services.Wrap(services.ErrPersistence, "ledger", "get run", runID, err)
	}
	return &run, nil
}

// Failures lists the per-frame failures recorded for one run, oldest first.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, frame_id, error_kind, reason, recorded_at
         FROM frame_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "list failures", runID, err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			failure  Failure
			recorded string
		)
		if err := rows.Scan(&failure.RunID, &failure.FrameID, &failure.ErrorKind, &failure.Reason, &recorded); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "ledger", "scan failure", runID, err)
		}
		failure.RecordedAt = parseTimestamp(recorded)
		failures = append(failures, failure)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "ledger", "list failures", runID, err)
	}
	return failures, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		resumed  int
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.State, &run.DatasetPath, &run.ModelName, &resumed,
		&started, &finished, &run.TotalSampled, &run.Processed, &run.Skipped, &run.Failed); err != nil {
		return Run{}, err
	}
	run.Resumed = resumed != 0
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		at := parseTimestamp(finished.String)
		run.FinishedAt = &at
	}
	return run, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
