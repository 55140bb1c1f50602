// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog keeps the SQLite ledger of normalized inputs and command
// runs, and drives incremental normalization into the corpus.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Ledger is the SQLite database recording what has been normalized.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger at path and creates the schema
// if it does not exist.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			args TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			outcome TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS partitions (
			input_path TEXT PRIMARY KEY,
			specification TEXT NOT NULL,
			dataset TEXT NOT NULL,
			kind TEXT NOT NULL,
			file_mod_time TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			identity_failures INTEGER NOT NULL DEFAULT 0,
			schema_failures INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0,
			run_id TEXT REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_partitions_keys ON partitions(specification, dataset)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Entry is the ledger row of one normalized input file.
type Entry struct {
	InputPath        string `json:"input_path" yaml:"input_path"`
	Specification    string `json:"specification" yaml:"specification"`
	Dataset          string `json:"dataset" yaml:"dataset"`
	Kind             string `json:"kind" yaml:"kind"`
	FileModTime      string `json:"file_mod_time" yaml:"file_mod_time"`
	Rows             int    `json:"rows" yaml:"rows"`
	IdentityFailures int    `json:"identity_failures" yaml:"identity_failures"`
	SchemaFailures   int    `json:"schema_failures" yaml:"schema_failures"`
	Duplicates       int    `json:"duplicates" yaml:"duplicates"`
	RunID            string `json:"run_id" yaml:"run_id"`
}

// ModTime returns the recorded modification time of path. found is false
// when path has never been normalized.
func (l *Ledger) ModTime(ctx context.Context, path string) (modTime string, found bool, err error) {
	err = l.db.QueryRowContext(ctx,
		`SELECT file_mod_time FROM partitions WHERE input_path = ?`, path,
	).Scan(&modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying ledger: %w", err)
	}
	return modTime, true, nil
}

// Record upserts e.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	var runID any
	if e.RunID != "" {
		runID = e.RunID
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO partitions (input_path, specification, dataset, kind, file_mod_time, row_count,
			identity_failures, schema_failures, duplicates, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(input_path) DO UPDATE SET
			specification=excluded.specification, dataset=excluded.dataset, kind=excluded.kind,
			file_mod_time=excluded.file_mod_time, row_count=excluded.row_count,
			identity_failures=excluded.identity_failures, schema_failures=excluded.schema_failures,
			duplicates=excluded.duplicates, run_id=excluded.run_id`,
		e.InputPath, e.Specification, e.Dataset, e.Kind, e.FileModTime, e.Rows,
		e.IdentityFailures, e.SchemaFailures, e.Duplicates, runID,
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.InputPath, err)
	}
	return nil
}

// Entries lists the ledger ordered by specification and dataset.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT input_path, specification, dataset, kind, file_mod_time, row_count,
			identity_failures, schema_failures, duplicates, COALESCE(run_id, '')
		 FROM partitions ORDER BY specification, dataset, input_path`)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.InputPath, &e.Specification, &e.Dataset, &e.Kind, &e.FileModTime, &e.Rows,
			&e.IdentityFailures, &e.SchemaFailures, &e.Duplicates, &e.RunID); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Run is one recorded command invocation.
type Run struct {
	ID         string   `json:"id" yaml:"id"`
	Command    string   `json:"command" yaml:"command"`
	Args       []string `json:"args" yaml:"args"`
	StartedAt  string   `json:"started_at" yaml:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Outcome    string   `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// BeginRun records the start of a command and returns its id. An empty id
// gets a random one.
func (l *Ledger) BeginRun(ctx context.Context, id, command string, args []string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	argsJSON, _ := json.Marshal(args)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, args, started_at) VALUES (?, ?, ?, ?)`,
		id, command, string(argsJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of run id.
func (l *Ledger) FinishRun(ctx context.Context, id, outcome string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run: no run %s", id)
	}
	return nil
}

// Runs returns up to limit runs, most recent first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, command, COALESCE(args, '[]'), started_at, COALESCE(finished_at, ''), COALESCE(outcome, '')
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var args string
		if err := rows.Scan(&r.ID, &r.Command, &args, &r.StartedAt, &r.FinishedAt, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		json.Unmarshal([]byte(args), &r.Args)
		out = append(out, r)
	}
	return out, rows.Err()
}
