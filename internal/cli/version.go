package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opendatateam/hydra-release/internal/release"
)

func newVersionCommand(flags *rootFlags) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Resolve the release version for the current build",
		Long: `Resolve the release version for the current build context.

Tag builds use the tag verbatim. Publish-branch builds append the build
number to the configured base version. Every other build additionally
appends the short commit hash as build metadata.

Examples:
  hydra-release version
  hydra-release version --write`,
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
			version, err := release.ResolveVersion(bctx, rules.PublishBranch())
			if err != nil {
				return err
			}

			if write {
				if err := release.WriteVersionFile(env.fs, env.versionFilePath(), version); err != nil {
					return err
				}
			}

			if flags.jsonOut {
				return printJSON(cmd, map[string]string{"version": version.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "also write the version file")

	return cmd
}
