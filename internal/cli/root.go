// Package cli implements the hydra-release command line interface.
//
// The binary mirrors what the hosted pipeline does with the hydra
// repository: resolve the release version, decide promotion, run the job
// graph, and hand the published version to the downstream deployment
// pipeline. Each subcommand exposes one slice of that flow so the pieces
// stay scriptable on their own.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opendatateam/hydra-release/internal/config"
	"github.com/opendatateam/hydra-release/internal/errors"
)

// Build metadata, injected through ldflags by the release build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Configuration problems exit 2 so CI can tell a broken setup from a
// failed build.
const (
	exitFailure = 1
	exitConfig  = 2
)

type rootFlags struct {
	configPath string
	verbose    bool
	jsonOut    bool
}

// NewRootCommand assembles the hydra-release command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "hydra-release",
		Short: "Release pipeline for the hydra data platform",
		Long: `hydra-release builds, publishes, and deploys hydra releases.

It resolves the release version from the build context (branch, tag,
build number, commit), runs the configured job graph (install, lint,
tests, build, publish), and triggers the downstream deployment pipeline
for publish-branch builds. Outside CI the build context is discovered
from the local git repository.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultConfigFile,
		"pipeline configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"enable debug logging")
	cmd.PersistentFlags().BoolVar(&flags.jsonOut, "json", false,
		"print results as JSON")

	cmd.AddCommand(
		newVersionCommand(flags),
		newDecideCommand(flags),
		newRunCommand(flags),
		newTriggerCommand(flags),
		newConfigCommand(flags),
	)

	return cmd
}

// Execute runs the command tree and maps errors to exit codes.
// SIGINT and SIGTERM cancel the command context, so an interrupted run
// still records its report before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidConfig, errors.CodeConfigLoadFailed,
		errors.CodeConfigDecodeFailed, errors.CodeSchemaIncompatible:
		return exitConfig
	default:
		return exitFailure
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
