package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-flow/internal/config"
	"github.com/heimdex/heimdex-flow/internal/executor"
)

func newDoctorCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, ffprobe and the step scripts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load(cmd.ErrOrStderr(), config.Overrides{})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.DoctorTimeout())
			defer cancel()

			caps, err := e.executor().RunDoctor(ctx)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}
			printCapabilities(cmd.OutOrStdout(), caps)
			if !caps.Summary.AllOK {
				return fmt.Errorf("%d of %d dependencies missing", caps.Summary.Total-caps.Summary.Available, caps.Summary.Total)
			}
			return nil
		},
	}
}

func printCapabilities(w io.Writer, caps *executor.Capabilities) {
	printTool(w, "ffmpeg", caps.FFmpeg)
	printTool(w, "ffprobe", caps.FFprobe)

	names := make([]string, 0, len(caps.Scripts))
	for name := range caps.Scripts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		printTool(w, name, caps.Scripts[name])
	}

	fmt.Fprintf(w, "\n%d/%d available\n", caps.Summary.Available, caps.Summary.Total)
	if missing := caps.Missing(); len(missing) > 0 {
		fmt.Fprintln(w, color.YellowString("steps that cannot run: %s", strings.Join(missing, ", ")))
	}
}

func printTool(w io.Writer, name string, info executor.ToolInfo) {
	if info.Available {
		detail := info.Path
		if info.Version != "" {
			detail = info.Version
		}
		fmt.Fprintf(w, "%s %-14s %s\n", color.GreenString("ok"), name, detail)
		return
	}
	fmt.Fprintf(w, "%s %-14s %s\n", color.RedString("--"), name, info.Error)
}
