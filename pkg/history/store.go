// Package history keeps a log of update runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/robotalks/reflash/pkg/update"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	port TEXT NOT NULL,
	board TEXT NOT NULL DEFAULT '',
	hex_file TEXT NOT NULL DEFAULT '',
	finished_at INTEGER NOT NULL,
	state TEXT NOT NULL,
	before_fw TEXT NOT NULL DEFAULT '',
	after_fw TEXT NOT NULL DEFAULT '',
	tag TEXT NOT NULL DEFAULT '',
	settings_restored INTEGER NOT NULL DEFAULT 0,
	devices_restored INTEGER NOT NULL DEFAULT 0,
	snapshot_file TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	at INTEGER NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_id, id);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
`

// Run is a recorded update run.
type Run struct {
	RunID            string
	Port             string
	Board            string
	HexFile          string
	FinishedAt       time.Time
	State            update.State
	Before           string
	After            string
	Tag              string
	SettingsRestored int
	DevicesRestored  int
	SnapshotFile     string
	Error            string
}

// Store persists runs and their transitions.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it when needed.
// An empty path uses an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// a single connection also keeps an in-memory database alive
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnEvent implements update.Observer by recording the transition.
func (s *Store) OnEvent(e update.Event) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO transitions (run_id, from_state, to_state, at, message, error) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.From.String(), e.To.String(), e.Time.UnixNano(), e.Message, errMsg)
	if err != nil {
		glog.Warningf("record transition: %v", err)
	}
}

// Record stores the outcome of a run.
func (s *Store) Record(ctx context.Context, opts update.Options, res *update.Result) error {
	run := Run{
		RunID:            res.RunID,
		Port:             opts.Port,
		Board:            opts.Board,
		HexFile:          opts.HexFile,
		FinishedAt:       time.Now(),
		State:            res.State,
		Before:           res.Before.String(),
		After:            res.After.String(),
		Tag:              string(res.Plan.Tag),
		SettingsRestored: len(res.Settings),
		SnapshotFile:     res.SnapshotFile,
	}
	if res.Devices != nil {
		run.DevicesRestored = res.Devices.Acked
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	} else if res.RestoreErr != nil {
		run.Error = res.RestoreErr.Error()
	}
	return s.Put(ctx, run)
}

// Put inserts or replaces a run.
func (s *Store) Put(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, port, board, hex_file, finished_at, state, before_fw, after_fw,
			tag, settings_restored, devices_restored, snapshot_file, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Port, run.Board, run.HexFile, run.FinishedAt.UnixNano(),
		run.State.String(), run.Before, run.After, run.Tag,
		run.SettingsRestored, run.DevicesRestored, run.SnapshotFile, run.Error)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, port, board, hex_file, finished_at, state, before_fw, after_fw,
			tag, settings_restored, devices_restored, snapshot_file, error
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finishedAt int64
		var state string
		if err := rows.Scan(&run.RunID, &run.Port, &run.Board, &run.HexFile, &finishedAt,
			&state, &run.Before, &run.After, &run.Tag, &run.SettingsRestored,
			&run.DevicesRestored, &run.SnapshotFile, &run.Error); err != nil {
			return nil, err
		}
		run.FinishedAt = time.Unix(0, finishedAt)
		run.State, _ = update.ParseState(state)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Transitions returns the recorded transitions of a run in order.
func (s *Store) Transitions(ctx context.Context, runID string) ([]update.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_state, to_state, at, message, error
		FROM transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []update.Event
	for rows.Next() {
		var from, to, errMsg string
		var at int64
		e := update.Event{RunID: runID}
		if err := rows.Scan(&from, &to, &at, &e.Message, &errMsg); err != nil {
			return nil, err
		}
		e.From, _ = update.ParseState(from)
		e.To, _ = update.ParseState(to)
		e.Time = time.Unix(0, at)
		if errMsg != "" {
			e.Err = errors.New(errMsg)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
