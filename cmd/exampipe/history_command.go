package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"exampipe/internal/history"
	"exampipe/internal/textutil"
	"exampipe/internal/usage"
)

const shortIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List past runs, or show stage usage for one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rates := usage.Rates{InputPerMillion: cfg.Pricing.InputPerMillion, OutputPerMillion: cfg.Pricing.OutputPerMillion}
			out := cmd.OutOrStdout()
			return ctx.withHistory(cmd.Context(), func(store *history.Store) error {
				if len(args) == 1 {
					return showRun(cmd, store, args[0], rates)
				}
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded.")
					return nil
				}
				writeRunList(out, runs, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func writeRunList(out io.Writer, runs []history.Run, now time.Time) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Mode,
			run.FromStage,
			textutil.Ternary(run.Finished(), run.FinalState, "running"),
			runDuration(run),
			reasonCell(run.Error),
		})
	}
	spec := tableSpec{
		headers:  []string{"ID", "Started", "Mode", "From", "State", "Duration", "Reason"},
		aligns:   []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorize: shouldColorize(out),
	}
	fmt.Fprintln(out, spec.render(rows))
}

func showRun(cmd *cobra.Command, store *history.Store, id string, rates usage.Rates) error {
	out := cmd.OutOrStdout()
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	records, err := store.StageUsage(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Mode:     %s (from %s)\n", run.Mode, run.FromStage)
	fmt.Fprintf(out, "State:    %s\n", textutil.Ternary(run.Finished(), run.FinalState, "running"))
	if run.Error != "" {
		fmt.Fprintf(out, "Reason:   %s\n", run.Error)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No stage usage recorded.")
		return nil
	}
	fmt.Fprintln(out)
	summary := usage.Summarize(records, rates)
	if run.FinishedAt != nil {
		summary.Elapsed = run.FinishedAt.Sub(run.StartedAt)
	}
	return usage.WriteSummary(out, summary)
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func runDuration(run history.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return usage.FormatElapsed(run.FinishedAt.Sub(run.StartedAt))
}

func reasonCell(reason string) string {
	if reason == "" {
		return ""
	}
	return textutil.Snippet(reason, 60)
}
