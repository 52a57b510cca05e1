// Package sqlitestore persists closed trace runs in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentkit/tracing"
)

// Store implements tracing.Store on a SQLite database. Runs are written
// once; a second Persist of the same id is ignored.
type Store struct {
	db *sql.DB
}

var _ tracing.Store = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	// WAL mode for concurrent readers while runs are appended.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate trace db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trace_runs (
			id         TEXT PRIMARY KEY,
			trace_id   TEXT NOT NULL,
			parent_id  TEXT NOT NULL DEFAULT '',
			kind       TEXT NOT NULL,
			name       TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time   TEXT NOT NULL,
			inputs     TEXT NOT NULL DEFAULT '{}',
			outputs    TEXT NOT NULL DEFAULT '{}',
			error      TEXT NOT NULL DEFAULT '',
			extra      TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_trace_runs_trace ON trace_runs(trace_id, start_time);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Persist implements tracing.Store.
func (s *Store) Persist(ctx context.Context, run tracing.Run) error {
	if run.EndTime == nil {
		return fmt.Errorf("persist run %s: run is not closed", run.ID)
	}
	inputs, err := marshalMap(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	outputs, err := marshalMap(run.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	extra, err := marshalMap(run.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO trace_runs
			(id, trace_id, parent_id, kind, name, start_time, end_time, inputs, outputs, error, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TraceID, run.ParentID, string(run.Kind), run.Name,
		run.StartTime.UTC().Format(time.RFC3339Nano), run.EndTime.UTC().Format(time.RFC3339Nano),
		inputs, outputs, run.Error, extra,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads one run.
func (s *Store) Get(ctx context.Context, id string) (tracing.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tracing.Run{}, fmt.Errorf("%w: %s", tracing.ErrRunNotFound, id)
	}
	return run, err
}

// ListByTrace returns every run of a trace ordered by start time.
func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]tracing.Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+" WHERE trace_id = ? ORDER BY start_time, id", traceID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []tracing.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, trace_id, parent_id, kind, name, start_time, end_time, inputs, outputs, error, extra FROM trace_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (tracing.Run, error) {
	var (
		run                          tracing.Run
		kind, start, end             string
		inputs, outputs, extra, errS string
	)
	if err := sc.Scan(&run.ID, &run.TraceID, &run.ParentID, &kind, &run.Name, &start, &end, &inputs, &outputs, &errS, &extra); err != nil {
		return tracing.Run{}, err
	}
	run.Kind = tracing.Kind(kind)
	run.Error = errS

	var err error
	if run.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return tracing.Run{}, fmt.Errorf("parse start_time: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339Nano, end)
	if err != nil {
		return tracing.Run{}, fmt.Errorf("parse end_time: %w", err)
	}
	run.EndTime = &endTime
	if run.Inputs, err = unmarshalMap(inputs); err != nil {
		return tracing.Run{}, err
	}
	if run.Outputs, err = unmarshalMap(outputs); err != nil {
		return tracing.Run{}, err
	}
	if run.Extra, err = unmarshalMap(extra); err != nil {
		return tracing.Run{}, err
	}
	return run, nil
}

func marshalMap(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal run field: %w", err)
	}
	return m, nil
}
