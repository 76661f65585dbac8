package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"exampipe/internal/pipeline"
	"exampipe/internal/stage"
	"exampipe/internal/textutil"
)

const healthTimeout = 60 * time.Second

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var skipModel bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check stage resources and model connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := pipeline.New(cfg, nil).HealthChecks()

			if !skipModel {
				checks = append(checks, modelHealth(cmd.Context(), ctx))
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(checks))
			failed := 0
			for _, h := range checks {
				if !h.Ready {
					failed++
				}
				rows = append(rows, []string{h.Name, textutil.Ternary(h.Ready, "ready", "not ready"), h.Detail})
			}
			spec := tableSpec{
				headers:  []string{"Check", "Status", "Detail"},
				colorize: shouldColorize(out),
			}
			fmt.Fprintln(out, spec.render(rows))
			if failed > 0 {
				return fmt.Errorf("%d health check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipModel, "skip-model", false, "Check local resources only")
	return cmd
}

func modelHealth(parent context.Context, ctx *commandContext) stage.Health {
	const name = "Model"
	client, err := ctx.llmClient()
	if err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	checkCtx, cancel := context.WithTimeout(parent, healthTimeout)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Health{Name: name, Ready: true, Detail: client.Model()}
}
