package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"exampipe/internal/usage"
)

// timestampLayout has fixed-width fractions so stored values sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID has no history row.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Mode       string
	FromStage  string
	FinalState string
	Error      string
}

// Finished reports whether the run recorded a terminal state.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// BeginRun inserts a new run row.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, mode, from_stage) VALUES (?, ?, ?, ?)`,
		run.ID,
		started.UTC().Format(timestampLayout),
		run.Mode,
		run.FromStage,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordStage stores the usage of one completed stage. Recording the same
// stage twice for a run replaces the earlier row.
func (s *Store) RecordStage(ctx context.Context, runID string, rec usage.Record) error {
	_, err := s.exec(ctx,
		`INSERT INTO stage_usage (
            run_id, seq, stage, attempted, accepted, input_tokens, output_tokens, elapsed_ms
        ) VALUES (?, (SELECT COUNT(1) FROM stage_usage WHERE run_id = ?), ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, stage) DO UPDATE SET
            attempted = excluded.attempted,
            accepted = excluded.accepted,
            input_tokens = excluded.input_tokens,
            output_tokens = excluded.output_tokens,
            elapsed_ms = excluded.elapsed_ms`,
		runID,
		runID,
		rec.Stage,
		rec.Attempted,
		rec.Accepted,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record stage usage: %w", err)
	}
	return nil
}

// FinishRun stamps the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, runID, finalState, errMessage string, finished time.Time) error {
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, final_state = ?, error = ? WHERE id = ?`,
		finished.UTC().Format(timestampLayout),
		finalState,
		errMessage,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, mode, from_stage, final_state, error`

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches one run by ID or by a unique ID prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY (id = ?) DESC LIMIT 2`,
		id, id+"%", id,
	)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// StageUsage returns the recorded stages of a run in execution order.
func (s *Store) StageUsage(ctx context.Context, runID string) ([]usage.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, attempted, accepted, input_tokens, output_tokens, elapsed_ms
         FROM stage_usage WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("stage usage: %w", err)
	}
	defer rows.Close()

	var records []usage.Record
	for rows.Next() {
		var (
			rec       usage.Record
			elapsedMS int64
		)
		if err := rows.Scan(&rec.Stage, &rec.Attempted, &rec.Accepted, &rec.InputTokens, &rec.OutputTokens, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan stage usage: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage usage: %w", err)
	}
	return records, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	if err := rows.Scan(&run.ID, &started, &finished, &run.Mode, &run.FromStage, &run.FinalState, &run.Error); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	ts, err := time.Parse(timestampLayout, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = ts
	if finished.Valid && finished.String != "" {
		fts, err := time.Parse(timestampLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &fts
	}
	return run, nil
}
