package executor

import (
	"context"
	"fmt"
)

// DefaultShell is the program used to run step scripts.
const DefaultShell = "/bin/sh"

// Shell runs pipeline step scripts through the system shell. Each script is
// passed as a single -c argument, so multi-command steps behave the same way
// they would in a CI step definition.
type Shell struct {
	program string
	options *Options
}

// NewShell creates a shell runner. An empty program selects DefaultShell.
func NewShell(program string) *Shell {
	if program == "" {
		program = DefaultShell
	}
	return &Shell{
		program: program,
		options: DefaultOptions(),
	}
}

// Command creates an executor for a single script.
func (s *Shell) Command(script string) *CommandExecutor {
	return &CommandExecutor{
		program: s.program,
		args:    []string{"-c", script},
		options: s.options,
	}
}

// Run executes a script and returns its result.
func (s *Shell) Run(ctx context.Context, script string, opts ...Option) (*Result, error) {
	result, err := s.Command(script).Execute(ctx, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to run script %q: %w", script, err)
	}
	return result, nil
}
