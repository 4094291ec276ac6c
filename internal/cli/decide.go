package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDecideCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decide",
		Short: "Decide promotion for the current build",
		Long: `Decide whether the current build publishes its artifact and whether
it triggers the downstream deployment pipeline.

Release tags, the publish branch, maintenance branches, and rc branches
publish. Only the publish branch triggers the deployment.`,
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
			rules, err := env.cfg.Rules()
			if err != nil {
				return err
			}
			decision, err := rules.Decide(bctx)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				return printJSON(cmd, decision)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "publish: %t\ntrigger downstream: %t\n",
				decision.ShouldPublish, decision.ShouldTriggerDownstream)
			return nil
		},
	}
}
