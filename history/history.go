// Package history keeps a SQLite log of script executions.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/vm/stackitem"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded execution.
type Run struct {
	ID         string
	ScriptHash [32]byte
	State      vm.State
	Fault      string
	Results    []stackitem.Item
	Started    time.Time
	Finished   time.Time
}

// Store handles SQLite storage for runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the run log at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		script_hash BLOB NOT NULL,
		state TEXT NOT NULL,
		fault TEXT NOT NULL DEFAULT '',
		results BLOB NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRun captures the outcome of e after execution.
func NewRun(e *vm.Engine, scriptHash [32]byte, started time.Time) *Run {
	r := &Run{
		ScriptHash: scriptHash,
		State:      e.State(),
		Results:    slices.Clone(e.ResultStack().Items()),
		Started:    started,
		Finished:   time.Now(),
	}
	if err := e.FaultException(); err != nil {
		r.Fault = err.Error()
	}
	return r
}

// Record stores r, assigning an ID if it has none, and returns the ID.
func (s *Store) Record(r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	blob, err := stackitem.EncodeBinary(stackitem.NewArray(slices.Clone(r.Results)))
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT INTO runs (id, script_hash, state, fault, results, started, finished) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.ScriptHash[:], r.State.String(), r.Fault, blob,
		r.Started.UnixNano(), r.Finished.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return r.ID, nil
}

// Get retrieves a run by ID.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow("SELECT id, script_hash, state, fault, results, started, finished FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// List returns the most recent runs first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT id, script_hash, state, fault, results, started, finished FROM runs ORDER BY finished DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                 Run
		hash, blob        []byte
		state             string
		started, finished int64
	)
	if err := sc.Scan(&r.ID, &hash, &state, &r.Fault, &blob, &started, &finished); err != nil {
		return nil, err
	}
	if len(hash) != len(r.ScriptHash) {
		return nil, fmt.Errorf("run %s: script hash of %d bytes", r.ID, len(hash))
	}
	copy(r.ScriptHash[:], hash)
	st, ok := vm.ParseState(state)
	if !ok {
		return nil, fmt.Errorf("run %s: unknown state %q", r.ID, state)
	}
	r.State = st
	item, err := stackitem.DecodeBinary(blob)
	if err != nil {
		return nil, fmt.Errorf("run %s: decoding results: %w", r.ID, err)
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		return nil, fmt.Errorf("run %s: results are %s, want Array", r.ID, item.Type())
	}
	r.Results = arr.Items()
	r.Started = time.Unix(0, started)
	r.Finished = time.Unix(0, finished)
	return &r, nil
}
