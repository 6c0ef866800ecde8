package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

func newExportCommand() *cobra.Command {
	var (
		out       string
		showOrder bool
	)
	cmd := &cobra.Command{
		Use:   "export <graph.json>",
		Short: "Export a graph document to a pipeline configuration",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			res, err := export.Export(doc, registry.Default())
			if err != nil {
				return err
			}
			if showOrder {
				fmt.Fprintln(cmd.ErrOrStderr(), "order:", strings.Join(res.Order, " -> "))
			}
			if out == "" || out == "-" {
				return res.Config.Encode(cmd.OutOrStdout())
			}
			if err := res.Config.WriteFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d steps to %s\n", len(res.Config.Steps), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the configuration to this file instead of stdout")
	cmd.Flags().BoolVar(&showOrder, "order", false, "print the resolved execution order to stderr")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.json>",
		Short: "Check a graph document without exporting it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			report, err := export.Validate(doc, registry.Default())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if report.Valid {
				fmt.Fprintln(w, color.GreenString("valid"))
				return nil
			}
			for _, p := range report.Problems {
				fmt.Fprintf(w, "%s %s\n", color.RedString("-"), p)
			}
			return report.Err()
		},
	}
}

func newDotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dot <graph.json>",
		Short: "Render a graph document in Graphviz DOT",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			return graph.WriteDOT(doc, cmd.OutOrStdout())
		},
	}
}

func newStepsCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "steps [step-type]",
		Short: "List the known step types",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()
			if len(args) == 1 {
				def, ok := reg.Get(args[0])
				if !ok {
					return &export.ConfigError{Kind: export.KindUnknownStep, NodeID: args[0], Msg: "no such step type"}
				}
				printStep(cmd.OutOrStdout(), def)
				return nil
			}
			printCatalogue(cmd.OutOrStdout(), reg, verbose)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show parameters")
	return cmd
}

func printCatalogue(w io.Writer, reg *registry.Registry, verbose bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cat := range reg.Categories() {
		fmt.Fprintln(tw, color.HiBlueString("%s", cat))
		for _, def := range reg.ListByCategory(cat) {
			fmt.Fprintf(tw, "  %s\t%s\n", def.ID, def.Description)
			if verbose {
				for _, p := range def.Parameters {
					fmt.Fprintf(tw, "    %s\t%s\n", p.Name, paramSummary(p))
				}
			}
		}
	}
	tw.Flush()
}

func printStep(w io.Writer, def *registry.StepDefinition) {
	fmt.Fprintf(w, "%s (%s)\n", color.HiWhiteString("%s", def.ID), def.Category)
	if def.Description != "" {
		fmt.Fprintln(w, def.Description)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range def.Parameters {
		fmt.Fprintf(tw, "  %s\t%s\n", p.Name, paramSummary(p))
	}
	tw.Flush()
	for _, o := range def.Outputs {
		fmt.Fprintf(w, "  -> %s (%s)\n", o.Name, o.DataKind)
	}
}

func paramSummary(p registry.ParameterSpec) string {
	parts := []string{string(p.Kind)}
	if p.Required {
		parts = append(parts, "required")
	}
	if p.Default != nil {
		parts = append(parts, fmt.Sprintf("default %v", p.Default))
	}
	if len(p.Options) > 0 {
		parts = append(parts, "one of "+strings.Join(p.Options, "|"))
	}
	if p.Dynamic {
		parts = append(parts, fmt.Sprintf("repeats as %s up to %d", p.DynamicPattern, p.MaxDynamic))
	}
	return strings.Join(parts, ", ")
}

