package git

import (
	"context"
	"io"
	"os/exec"
)

// Command describes a git invocation
type Command struct {
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs git commands
type Executor interface {
	Execute(context.Context, Command) error
}

// OSExecutor runs the git binary found in PATH
type OSExecutor struct {
	Binary string
}

// Execute a git command
func (e OSExecutor) Execute(ctx context.Context, c Command) error {
	binary := e.Binary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, c.Args...) // #nosec
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}

// isExitError tells if git ran and exited with a non-zero status
func isExitError(err error) bool {
	_, ok := err.(*exec.ExitError)
	return ok
}
