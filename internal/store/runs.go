package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one pipeline invocation for an IOC.
type Run struct {
	ID        string        `json:"id"`
	IOCID     string        `json:"ioc_id"`
	IOCValue  string        `json:"ioc_value"`
	IOCKind   string        `json:"ioc_kind"`
	Hook      string        `json:"hook"`
	Analyzer  string        `json:"analyzer"`
	JobID     string        `json:"job_id,omitempty"`
	State     string        `json:"state"`
	Outcome   string        `json:"outcome"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Ticks     int           `json:"ticks"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (s *Store) setupRunTables() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			ioc_id TEXT NOT NULL,
			ioc_value TEXT NOT NULL,
			ioc_kind TEXT NOT NULL,
			hook TEXT NOT NULL,
			analyzer TEXT NOT NULL,
			job_id TEXT,
			state TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_kind TEXT,
			error TEXT,
			ticks INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ioc_id ON analysis_runs(ioc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON analysis_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_outcome ON analysis_runs(outcome)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute run migration: %w", err)
		}
	}
	return nil
}

// RecordRun stores run and returns its id.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `INSERT INTO analysis_runs (
		id, ioc_id, ioc_value, ioc_kind, hook, analyzer, job_id, state, outcome,
		error_kind, error, ticks, started_at, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.IOCID, run.IOCValue, run.IOCKind, run.Hook, run.Analyzer, run.JobID,
		run.State, run.Outcome, run.ErrorKind, run.Error, run.Ticks,
		run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns runs newest first, filtered to iocID when it is not empty. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, iocID string, limit int) ([]Run, error) {
	query := `SELECT id, ioc_id, ioc_value, ioc_kind, hook, analyzer, job_id, state, outcome,
		error_kind, error, ticks, started_at, duration_ms FROM analysis_runs`
	var args []interface{}
	if iocID != "" {
		query += ` WHERE ioc_id = ?`
		args = append(args, iocID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var jobID, errKind, errMsg *string
		var startedAt, durationMS int64
		err := rows.Scan(&run.ID, &run.IOCID, &run.IOCValue, &run.IOCKind, &run.Hook, &run.Analyzer,
			&jobID, &run.State, &run.Outcome, &errKind, &errMsg, &run.Ticks, &startedAt, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		if jobID != nil {
			run.JobID = *jobID
		}
		if errKind != nil {
			run.ErrorKind = *errKind
		}
		if errMsg != nil {
			run.Error = *errMsg
		}
		run.StartedAt = time.UnixMilli(startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}
