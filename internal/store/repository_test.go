package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-flow/internal/db"
	"github.com/heimdex/heimdex-flow/internal/run"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "flow.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RunStarted(ctx, run.RunInfo{
		ID:        "run-1",
		Source:    "pipeline.json",
		WorkDir:   "/work",
		Output:    "output.mp4",
		Steps:     []string{"ff_trim", "ff_scale"},
		StartedAt: started,
	}))

	rec, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, run.StateRunning, rec.Status)
	assert.Equal(t, 2, rec.Total)
	assert.True(t, rec.StartedAt.Equal(started))
	assert.True(t, rec.FinishedAt.IsZero())

	require.NoError(t, repo.StepFinished(ctx, "run-1", run.StepOutcome{
		Index: 0, Key: "ff_trim", StepTypeID: "ff_trim", Status: run.StepCompleted,
		Output: "/work/ff_trim.mp4", Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, repo.StepFinished(ctx, "run-1", run.StepOutcome{
		Index: 1, Key: "ff_scale", StepTypeID: "ff_scale", Status: run.StepFailed,
		ExitCode: 1, Error: "step ff_scale: exit code 1", StderrTail: "boom",
	}))
	require.NoError(t, repo.LogAppended(ctx, "run-1", run.LogLine{Time: started, Text: "Starting pipeline with 2 steps"}))
	require.NoError(t, repo.LogAppended(ctx, "run-1", run.LogLine{Time: started.Add(time.Second), Text: "1 of 2 steps failed"}))

	rec, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Executed)
	assert.Equal(t, 1, rec.Failed)

	require.NoError(t, repo.RunFinished(ctx, &run.Summary{
		RunID:       "run-1",
		State:       run.StateFailed,
		Total:       2,
		Executed:    2,
		Failed:      1,
		FinalOutput: "/work/output.mp4",
		FinishedAt:  started.Add(2 * time.Second),
	}))

	rec, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.StateFailed, rec.Status)
	assert.Equal(t, "/work/output.mp4", rec.FinalOutput)
	assert.Equal(t, "1 of 2 steps failed", rec.Error)
	assert.Equal(t, "pipeline.json", rec.Source)
	require.Len(t, rec.Steps, 2)
	assert.Equal(t, "ff_trim", rec.Steps[0].Key)
	assert.Equal(t, 1500*time.Millisecond, rec.Steps[0].Duration)
	assert.Equal(t, run.StepFailed, rec.Steps[1].Status)
	assert.Equal(t, "boom", rec.Steps[1].StderrTail)

	logs, err := repo.GetRunLogs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "1 of 2 steps failed", logs[1].Text)
}

func TestGetRun_Unknown(t *testing.T) {
	rec, err := newTestRepo(t).GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.RunStarted(ctx, run.RunInfo{ID: id, WorkDir: "/w", Output: "o.mp4", StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].Steps)
}

func TestRecorderWithDriver(t *testing.T) {
	repo := newTestRepo(t)
	var rec run.Recorder = repo

	summary := &run.Summary{RunID: "r", State: run.StateStopped}
	require.NoError(t, rec.RunStarted(context.Background(), run.RunInfo{ID: "r", WorkDir: "/w", Output: "o.mp4"}))
	require.NoError(t, rec.RunFinished(context.Background(), summary))

	got, err := repo.GetRun(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, run.StateStopped, got.Status)
	assert.Equal(t, run.ErrStopped.Error(), got.Error)
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	v, err := repo.GetConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.SetConfig(ctx, "k", "1"))
	require.NoError(t, repo.SetConfig(ctx, "k", "2"))
	v, err = repo.GetConfig(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestEnsureAuthToken(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := EnsureAuthToken(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := EnsureAuthToken(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type failingConfig struct{ Repository }

func (failingConfig) GetConfig(context.Context, string) (string, error) { return "", nil }
func (failingConfig) SetConfig(context.Context, string, string) error {
	return errors.New("read-only")
}

func TestEnsureAuthToken_SaveFails(t *testing.T) {
	_, err := EnsureAuthToken(context.Background(), failingConfig{})
	assert.Error(t, err)
}
