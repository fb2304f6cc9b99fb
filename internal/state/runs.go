package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunKind names what started a sync run.
type RunKind string

// Run kinds, matching the CHECK constraint on sync_runs.kind.
const (
	RunSetup  RunKind = "setup"
	RunManual RunKind = "sync"
	RunAuto   RunKind = "auto"
	RunReload RunKind = "reload"
)

const (
	sqlInsertRun = `INSERT INTO sync_runs (id, kind, started_at) VALUES (?, ?, ?)`
	sqlFinishRun = `UPDATE sync_runs SET finished_at = ?, imported = ?, error = ? WHERE id = ?`
	sqlLastRun   = `SELECT id, kind, started_at, finished_at, imported, error
		FROM sync_runs ORDER BY started_at DESC LIMIT 1`
)

// SyncRun is one row of sync history.
type SyncRun struct {
	ID         string
	Kind       RunKind
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if the process died mid-run
	Imported   int
	Err        string
}

// BeginRun records the start of a run and returns it with a fresh ID.
func (s *Store) BeginRun(ctx context.Context, kind RunKind) (*SyncRun, error) {
	run := &SyncRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: s.nowFunc(),
	}

	if _, err := s.db.ExecContext(ctx, sqlInsertRun, run.ID, string(kind), run.StartedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("state: recording run start: %w", err)
	}

	return run, nil
}

// FinishRun stamps the run's outcome. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, run *SyncRun, imported int, runErr error) error {
	run.FinishedAt = s.nowFunc()
	run.Imported = imported

	var errText sql.NullString
	if runErr != nil {
		run.Err = runErr.Error()
		errText = sql.NullString{String: run.Err, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, sqlFinishRun,
		run.FinishedAt.UnixNano(), imported, errText, run.ID); err != nil {
		return fmt.Errorf("state: recording run finish: %w", err)
	}

	return nil
}

// LastRun returns the most recently started run, or nil if none exist.
func (s *Store) LastRun(ctx context.Context) (*SyncRun, error) {
	var (
		run      SyncRun
		kind     string
		started  int64
		finished sql.NullInt64
		errText  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, sqlLastRun).Scan(
		&run.ID, &kind, &started, &finished, &run.Imported, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "no runs yet"
	}

	if err != nil {
		return nil, fmt.Errorf("state: reading last run: %w", err)
	}

	run.Kind = RunKind(kind)
	run.StartedAt = time.Unix(0, started)
	run.Err = errText.String

	if finished.Valid {
		run.FinishedAt = time.Unix(0, finished.Int64)
	}

	return &run, nil
}
