package db

import (
	"path/filepath"
	"testing"
)

func openAt(t *testing.T, path string) *DB {
	t.Helper()
	database, err := New(path, nil)
	if err != nil {
		t.Fatalf("New(%s) error = %v", filepath.Base(path), err)
	}
	return database
}

func openTemp(t *testing.T) *DB {
	t.Helper()
	database := openAt(t, filepath.Join(t.TempDir(), "nested", "flow.db"))
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNew_SchemaAndPragmas(t *testing.T) {
	database := openTemp(t)
	conn := database.Conn()

	for _, table := range []string{"_migrations", "config", "runs", "run_steps", "run_logs"} {
		var n int
		if err := conn.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n); err != nil || n != 1 {
			t.Errorf("table %s missing (n=%d, err=%v)", table, n, err)
		}
	}

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %s, want wal", mode)
	}

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d (err %v), want 1", fk, err)
	}
}

func TestMigrate_AppliesEachFileOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.db")
	openAt(t, path).Close()

	database := openAt(t, path)
	defer database.Close()

	rows, err := database.Conn().Query("SELECT name FROM _migrations ORDER BY name")
	if err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	want := []string{"001_init.sql", "002_runs.sql"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("applied migrations = %v, want %v", names, want)
	}
}

func TestNew_MarksInterruptedRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.db")

	first := openAt(t, path)
	_, err := first.Conn().Exec(`
		INSERT INTO runs (id, work_dir, output, status, total, started_at)
		VALUES ('crashed', '/videos', 'output.mp4', 'running', 3, datetime('now')),
		       ('done', '/videos', 'output.mp4', 'completed', 3, datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert runs: %v", err)
	}
	first.Close()

	second := openAt(t, path)
	defer second.Close()

	tests := []struct {
		id         string
		wantStatus string
		wantError  string
	}{
		{"crashed", "failed", InterruptedError},
		{"done", "completed", ""},
	}
	for _, tt := range tests {
		var status, msg string
		err := second.Conn().QueryRow("SELECT status, coalesce(error, '') FROM runs WHERE id = ?", tt.id).Scan(&status, &msg)
		if err != nil {
			t.Fatalf("query %s: %v", tt.id, err)
		}
		if status != tt.wantStatus || msg != tt.wantError {
			t.Errorf("run %s = (%s, %q), want (%s, %q)", tt.id, status, msg, tt.wantStatus, tt.wantError)
		}
	}
}

func TestRunStepsCascade(t *testing.T) {
	conn := openTemp(t).Conn()

	stmts := []string{
		`INSERT INTO runs (id, work_dir, output, status, started_at) VALUES ('r', '/videos', 'o.mp4', 'completed', datetime('now'))`,
		`INSERT INTO run_steps (run_id, idx, step_key, status, exit_code) VALUES ('r', 0, 'ff_scale', 'completed', 0)`,
		`INSERT INTO run_logs (run_id, logged_at, text) VALUES ('r', datetime('now'), 'Starting pipeline with 1 steps')`,
		`DELETE FROM runs WHERE id = 'r'`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}

	var n int
	if err := conn.QueryRow(`SELECT count(*) FROM run_steps`).Scan(&n); err != nil {
		t.Fatalf("count steps: %v", err)
	}
	if n != 0 {
		t.Errorf("run_steps rows = %d, want 0 after deleting the run", n)
	}
}
