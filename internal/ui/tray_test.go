package ui

import (
	"testing"

	"github.com/heimdex/heimdex-flow/internal/run"
)

func TestStatusTitle(t *testing.T) {
	tests := []struct {
		name string
		st   run.Status
		want string
	}{
		{"zero", run.Status{}, "Status: Idle"},
		{"idle", run.Status{State: run.StateIdle}, "Status: Idle"},
		{"running", run.Status{State: run.StateRunning, Running: true, Percent: 33}, "Status: Running (33%)"},
		{"stopping", run.Status{State: run.StateStopped, Running: true}, "Status: Stopping"},
		{"stopped", run.Status{State: run.StateStopped}, "Status: Last run stopped"},
		{"failed", run.Status{State: run.StateFailed}, "Status: Last run failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusTitle(tt.st); got != tt.want {
				t.Errorf("StatusTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStepTitle(t *testing.T) {
	st := run.Status{Running: true, CurrentStep: "ff_scale", StepIndex: 1, Total: 3}
	if got, want := StepTitle(st), "Step 2/3: ff_scale"; got != want {
		t.Errorf("StepTitle() = %q, want %q", got, want)
	}

	st.Running = false
	if got, want := StepTitle(st), "No step running"; got != want {
		t.Errorf("StepTitle() idle = %q, want %q", got, want)
	}
}

func TestIconEmbedded(t *testing.T) {
	if len(iconBytes) < 8 || string(iconBytes[1:4]) != "PNG" {
		t.Fatalf("icon is not a PNG (%d bytes)", len(iconBytes))
	}
}
