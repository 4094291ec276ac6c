package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opendatateam/hydra-release/internal/pipeline"
)

func newRunCommand(flags *rootFlags) *cobra.Command {
	var (
		skipTrigger bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the release pipeline for the current build",
		Long: `Run the full release pipeline: install, lint, tests, build, and,
when the promotion decision allows it, publish and trigger.

Every run writes a JSON report under the runs directory, successful or
not. A publishing run also writes release notes next to the report.

Examples:
  hydra-release run
  hydra-release run --dry-run
  hydra-release run --skip-trigger`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := loadEnvironment(ctx, flags)
			if err != nil {
				return err
			}
			bctx, err := env.buildContext(ctx)
			if err != nil {
				return err
			}
			runner, err := env.runner(pipeline.WithSkipTrigger(skipTrigger))
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := runner.Plan(bctx)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return printJSON(cmd, plan)
				}
				printPlan(cmd, plan)
				return nil
			}

			rec, runErr := runner.Run(ctx, bctx)
			if rec != nil {
				if flags.jsonOut {
					if err := printJSON(cmd, rec); err != nil {
						return err
					}
				} else {
					printRecord(cmd, rec)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&skipTrigger, "skip-trigger", false,
		"do not trigger the downstream deployment")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the execution plan without running anything")

	return cmd
}

func printPlan(cmd *cobra.Command, plan *pipeline.Plan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", plan.App, plan.Version)
	fmt.Fprintf(out, "publish: %t, trigger downstream: %t\n\n",
		plan.Decision.ShouldPublish, plan.Decision.ShouldTriggerDownstream)

	fmt.Fprintf(out, "%-10s %-5s %s\n", "JOB", "RUN", "NEEDS")
	for _, entry := range plan.Jobs {
		needs := "-"
		if len(entry.Needs) > 0 {
			needs = strings.Join(entry.Needs, ", ")
		}
		run := "yes"
		if !entry.WillRun {
			run = "no"
		}
		fmt.Fprintf(out, "%-10s %-5s %s\n", entry.Job, run, needs)
	}
}

func printRecord(cmd *cobra.Command, rec *pipeline.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: %s\n", rec.App, rec.Version, rec.Status)
	for _, job := range rec.Jobs {
		fmt.Fprintf(out, "  %-10s %s\n", job.Name, job.Status)
	}
	for _, art := range rec.Artifacts {
		fmt.Fprintf(out, "  artifact %s (%d bytes)\n", art.Name, art.Size)
	}
}
