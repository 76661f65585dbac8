package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"exampipe/internal/history"
	"exampipe/internal/logging"
	"exampipe/internal/notifications"
	"exampipe/internal/pipeline"
	"exampipe/internal/stage"
)

// errRunAborted signals a completed invocation whose pipeline aborted. The
// summary has already been printed, so main only sets the exit status.
var errRunAborted = errors.New("pipeline aborted")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var nonInteractive bool
	var force bool
	var useDefaults bool
	var from string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the transcribe, perturb, validate and extract stages",
		Long: "Run the pipeline over the configured image directory.\n\n" +
			"Each stage asks for an optional special instruction. With --non-interactive\n" +
			"(or when stdin is not a terminal) every instruction is empty and every\n" +
			"yes/no question is answered no.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := pipeline.Options{Mode: pipeline.Interactive, In: cmd.InOrStdin()}
			if from != "" {
				name, ok := stage.ParseName(from)
				if !ok {
					return fmt.Errorf("unknown stage %q (expected transcription, perturbation, validation or extraction)", from)
				}
				opts.From = name
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			if nonInteractive || force || useDefaults {
				opts.Mode = pipeline.NonInteractive
			} else if !stdinIsTerminal(cmd) {
				opts.Mode = pipeline.NonInteractive
				logger.Info("stdin is not a terminal; using non-interactive defaults",
					logging.String(logging.FieldEventType, "mode_fallback"),
				)
			}

			client, err := ctx.llmClient()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			coordOpts := []pipeline.Option{
				pipeline.WithLogger(logger),
				pipeline.WithOutput(cmd.OutOrStdout()),
				pipeline.WithNotifier(notifications.NewService(cfg)),
			}
			store, err := history.Open(runCtx, cfg.HistoryPath())
			if err != nil {
				logging.WarnWithContext(logger, "run history unavailable", "history_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "run will not appear in history"),
				)
			} else {
				defer store.Close()
				coordOpts = append(coordOpts, pipeline.WithHistory(store))
			}

			coord := pipeline.New(cfg, client, coordOpts...)
			outcome, err := coord.Run(runCtx, opts)
			if err != nil {
				return err
			}
			if outcome.State == pipeline.Aborted {
				return errRunAborted
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Use empty instructions and answer no to every question")
	cmd.Flags().BoolVar(&force, "force", false, "Alias for --non-interactive")
	cmd.Flags().BoolVar(&useDefaults, "default", false, "Alias for --non-interactive")
	cmd.Flags().StringVar(&from, "from", "", "Start at this stage, reading input from the previous stage's log")
	return cmd
}
