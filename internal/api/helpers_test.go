package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-flow/internal/db"
	"github.com/heimdex/heimdex-flow/internal/executor"
	"github.com/heimdex/heimdex-flow/internal/playback"
	"github.com/heimdex/heimdex-flow/internal/registry"
	"github.com/heimdex/heimdex-flow/internal/run"
	"github.com/heimdex/heimdex-flow/internal/store"
)

const testToken = "test-token"

// fakeExecutor writes each step's output into the work dir. Steps listed in
// fail exit with code 1. When gate is set every step waits for it.
type fakeExecutor struct {
	mu    sync.Mutex
	fail  map[string]bool
	gate  chan struct{}
	calls []string
}

func (f *fakeExecutor) Execute(ctx context.Context, req executor.Request) (executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Key)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return executor.Result{ExitCode: -1}, ctx.Err()
		}
	}
	if f.fail[req.Key] {
		return executor.Result{ExitCode: 1, StderrTail: "boom"}, nil
	}
	out := filepath.Join(req.WorkDir, req.Output)
	if err := os.WriteFile(out, []byte("video:"+req.Key), 0644); err != nil {
		return executor.Result{ExitCode: -1}, err
	}
	return executor.Result{OutputPath: out}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T, exec executor.StepExecutor) ServerConfig {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "flow.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := store.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), store.AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	logger := testLogger()
	reg := registry.Default()
	return ServerConfig{
		Registry:   reg,
		Driver:     run.NewDriver(exec, reg, run.Options{Recorder: repo, Logger: logger}),
		Repository: repo,
		Playback:   playback.NewServer(logger),
		Logger:     logger,
		StartTime:  time.Now(),
		Version:    "test",
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v (body %q)", err, rr.Body.String())
	}
	return body
}

func waitIdle(t *testing.T, d *run.Driver) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for d.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("run did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

const chainGraph = `{
  "nodes": [
    {"id": "src", "stepTypeId": "file", "parameterValues": {"filepath": "in.mp4"}},
    {"id": "trim", "stepTypeId": "ff_trim", "parameterValues": {"start": "5", "output": "trimmed.mp4"}},
    {"id": "scale", "stepTypeId": "ff_scale", "parameterValues": {"width": "1280"}}
  ],
  "connections": [
    {"fromNodeId": "src", "fromOutputName": "output", "toNodeId": "trim", "toInputName": "input"},
    {"fromNodeId": "trim", "fromOutputName": "output", "toNodeId": "scale", "toInputName": "input"}
  ]
}`
