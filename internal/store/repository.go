package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-flow/internal/run"
)

type Repository interface {
	run.Recorder

	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRunLogs(ctx context.Context, id string) ([]run.LogLine, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

var _ Repository = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) RunStarted(ctx context.Context, info run.RunInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, work_dir, output, status, total, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, info.ID, nullString(info.Source), info.WorkDir, info.Output, string(run.StateRunning), len(info.Steps), formatTime(info.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", info.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) StepFinished(ctx context.Context, runID string, o run.StepOutcome) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, idx, step_key, step_type, status, exit_code, output, error, stderr_tail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			status = excluded.status, exit_code = excluded.exit_code, output = excluded.output,
			error = excluded.error, stderr_tail = excluded.stderr_tail, duration_ms = excluded.duration_ms
	`, runID, o.Index, o.Key, nullString(o.StepTypeID), string(o.Status), o.ExitCode,
		nullString(o.Output), nullString(o.Error), nullString(o.StderrTail), o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert step %s of run %s: %w", o.Key, runID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE runs SET executed = executed + 1, failed = failed + ?, updated_at = datetime('now') WHERE id = ?
	`, boolToInt(o.Status == run.StepFailed), runID)
	return err
}

func (r *SQLiteRepository) LogAppended(ctx context.Context, runID string, line run.LogLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, logged_at, text) VALUES (?, ?, ?)
	`, runID, formatTime(line.Time), line.Text)
	return err
}

func (r *SQLiteRepository) RunFinished(ctx context.Context, s *run.Summary) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, executed = ?, failed = ?, final_output = ?, no_output = ?, error = ?,
			finished_at = ?, updated_at = datetime('now')
		WHERE id = ?
	`, string(s.State), s.Executed, s.Failed, nullString(s.FinalOutput), boolToInt(s.NoOutput),
		nullString(errString(s.Err())), formatTime(s.FinishedAt), s.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", s.RunID, err)
	}
	return nil
}

const runColumns = `id, source, work_dir, output, status, total, executed, failed, final_output, no_output, error, started_at, finished_at`

// GetRun returns the run with its step outcomes, or nil when unknown.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	runs, err := r.scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	rec := runs[0]
	rec.Steps, err = r.getSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns the most recent runs first, without step outcomes.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return r.scanRuns(rows)
}

func (r *SQLiteRepository) scanRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var rec Run
		var status, startedAt string
		var source, finalOutput, errMsg, finishedAt sql.NullString
		var noOutput int

		if err := rows.Scan(&rec.ID, &source, &rec.WorkDir, &rec.Output, &status, &rec.Total, &rec.Executed, &rec.Failed,
			&finalOutput, &noOutput, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		rec.Source = source.String
		rec.Status = run.State(status)
		rec.FinalOutput = finalOutput.String
		rec.NoOutput = noOutput == 1
		rec.Error = errMsg.String
		rec.StartedAt = parseTime(startedAt)
		rec.FinishedAt = parseTime(finishedAt.String)
		runs = append(runs, &rec)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) getSteps(ctx context.Context, runID string) ([]run.StepOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT idx, step_key, step_type, status, exit_code, output, error, stderr_tail, duration_ms
		FROM run_steps WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []run.StepOutcome
	for rows.Next() {
		var o run.StepOutcome
		var status string
		var stepType, output, errMsg, stderr sql.NullString
		var durationMS int64

		if err := rows.Scan(&o.Index, &o.Key, &stepType, &status, &o.ExitCode, &output, &errMsg, &stderr, &durationMS); err != nil {
			return nil, err
		}
		o.StepTypeID = stepType.String
		o.Status = run.StepStatus(status)
		o.Output = output.String
		o.Error = errMsg.String
		o.StderrTail = stderr.String
		o.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, o)
	}
	return steps, rows.Err()
}

// GetRunLogs returns the log lines of a run in the order they were written.
func (r *SQLiteRepository) GetRunLogs(ctx context.Context, id string) ([]run.LogLine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT logged_at, text FROM run_logs WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []run.LogLine
	for rows.Next() {
		var loggedAt string
		var line run.LogLine
		if err := rows.Scan(&loggedAt, &line.Text); err != nil {
			return nil, err
		}
		line.Time = parseTime(loggedAt)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.DateTime, s)
	}
	return t
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
