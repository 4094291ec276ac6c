package main

import "github.com/opendatateam/hydra-release/internal/cli"

// Build metadata, injected through ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date
	cli.Execute()
}
