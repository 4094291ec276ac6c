package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opendatateam/hydra-release/internal/config"
	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

func newConfigCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the pipeline configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(flags))
	return cmd
}

func newConfigValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline configuration file",
		Long: `Validate the pipeline configuration file.

Unlike the other commands, a missing file is an error here; elsewhere a
missing file falls back to the built-in defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			workDir, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, errors.CodeInternal, "failed to resolve working directory")
			}
			path := flags.configPath
			if !filepath.IsAbs(path) {
				path = filepath.Join(workDir, path)
			}

			cfg, err := config.Load(ctx, fsys.NewOSFS("/"), path)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				return printJSON(cmd, map[string]string{
					"status":      "ok",
					"app":         cfg.App,
					"environment": cfg.Environment,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (app %s, environment %s)\n",
				cfg.App, cfg.Environment)
			return nil
		},
	}
}
