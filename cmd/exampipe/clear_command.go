package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"exampipe/internal/housekeeping"
	"exampipe/internal/pipeline"
	"exampipe/internal/stagelog"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Truncate stage outputs or delete source images",
	}
	clearCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	confirmer := func(cmd *cobra.Command) housekeeping.Confirmer {
		if yes {
			return housekeeping.Preconfirmed(true)
		}
		return pipeline.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	clearCmd.AddCommand(&cobra.Command{
		Use:   "outputs",
		Short: "Truncate every stage output file, keeping the files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withOutputLock(cfg.Paths.OutputDir, func() error {
				report, err := housekeeping.ClearOutputs(cmd.OutOrStdout(), stagelog.Artifacts(cfg.Paths.OutputDir), confirmer(cmd))
				if err != nil {
					return err
				}
				return report.Err()
			})
		},
	})

	clearCmd.AddCommand(&cobra.Command{
		Use:   "images",
		Short: "Delete every file in the image directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withOutputLock(cfg.Paths.OutputDir, func() error {
				report, err := housekeeping.ClearImages(cmd.OutOrStdout(), cfg.Paths.ImageDir, confirmer(cmd))
				if err != nil {
					return err
				}
				return report.Err()
			})
		},
	})

	return clearCmd
}

// withOutputLock runs fn while holding the output directory lock so a clear
// never races a running pipeline.
func withOutputLock(outputDir string, fn func() error) error {
	lock, err := stagelog.AcquireLock(outputDir)
	if err != nil {
		return fmt.Errorf("output directory busy: %w", err)
	}
	defer lock.Release()
	return fn()
}
