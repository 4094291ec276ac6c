package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/release"
)

func newTriggerCommand(flags *rootFlags) *cobra.Command {
	var versionArg string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger the downstream deployment pipeline",
		Long: `Trigger the downstream deployment pipeline for a published version.

The version comes from --version, or from the version file a previous
build wrote. This command bypasses the promotion decision; it deploys
whatever version it is given.

Examples:
  hydra-release trigger
  hydra-release trigger --version 1.2.1.dev447`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := loadEnvironment(ctx, flags)
			if err != nil {
				return err
			}
			if !env.cfg.TriggerEnabled() {
				return errors.New(errors.CodeInvalidConfig, "no trigger endpoint is configured")
			}

			version := release.Version(versionArg)
			if version == "" {
				version, err = release.ReadVersionFile(env.fs, env.versionFilePath())
				if err != nil {
					return errors.Wrap(err, errors.CodeInvalidInput,
						"no version given and the version file is unreadable")
				}
			}

			runner, err := env.runner()
			if err != nil {
				return err
			}
			if err := runner.Trigger(ctx, version); err != nil {
				return err
			}

			if flags.jsonOut {
				return printJSON(cmd, map[string]string{
					"application": env.cfg.App,
					"version":     version.String(),
					"environment": env.cfg.Environment,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "triggered %s %s (%s)\n",
				env.cfg.App, version.String(), env.cfg.Environment)
			return nil
		},
	}

	cmd.Flags().StringVar(&versionArg, "version", "",
		"version to deploy (default: the version file)")

	return cmd
}
