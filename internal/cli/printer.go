package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/heimdex/heimdex-flow/internal/run"
)

// printer renders run events for a terminal.
type printer struct {
	w     io.Writer
	quiet bool
}

func (p *printer) event(ev run.Event) {
	switch ev.Type {
	case run.EventStepStarted:
		if p.quiet {
			return
		}
		fmt.Fprintf(p.w, "%s %s\n",
			color.CyanString("[%d/%d %3d%%]", ev.Index+1, ev.Total, ev.Percent),
			color.HiWhiteString("%s", ev.StepKey),
		)
	case run.EventStepCompleted:
		if p.quiet {
			return
		}
		fmt.Fprintf(p.w, "  %s %s\n", color.GreenString("done"), ev.Output)
	case run.EventStepFailed:
		fmt.Fprintf(p.w, "  %s %s: %s\n", color.RedString("failed"), ev.StepKey, ev.Error)
	case run.EventRunCompleted:
		if ev.Summary != nil {
			p.summary(ev.Summary)
		}
	}
}

func (p *printer) summary(s *run.Summary) {
	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)

	var state string
	switch s.State {
	case run.StateCompleted:
		state = color.GreenString("%s", s.State)
	case run.StateStopped:
		state = color.YellowString("%s", s.State)
	default:
		state = color.RedString("%s", s.State)
	}
	fmt.Fprintf(p.w, "\nRun %s %s: %d/%d steps succeeded in %s\n",
		s.RunID[:min(8, len(s.RunID))], state, s.Executed-s.Failed, s.Total, elapsed)

	if s.NoOutput {
		fmt.Fprintln(p.w, color.RedString("No output produced"))
	}
	if s.FinalOutput != "" {
		fmt.Fprintf(p.w, "Output: %s", color.BlueString("%s", s.FinalOutput))
		if size, ok := outputSize(s); ok {
			fmt.Fprintf(p.w, " (%s)", humanize.Bytes(size))
		}
		fmt.Fprintln(p.w)
	}
	if m := s.Media; m != nil && m.Width > 0 {
		fmt.Fprintf(p.w, "Media: %dx%d %s, %s\n", m.Width, m.Height, m.Codec,
			(time.Duration(m.Duration * float64(time.Second))).Round(time.Millisecond))
	}
	if s.Error != "" {
		fmt.Fprintln(p.w, color.RedString("Error: %s", s.Error))
	}
}

func outputSize(s *run.Summary) (uint64, bool) {
	if s.Media != nil && s.Media.Size > 0 {
		return uint64(s.Media.Size), true
	}
	fi, err := os.Stat(s.FinalOutput)
	if err != nil {
		return 0, false
	}
	return uint64(fi.Size()), true
}
