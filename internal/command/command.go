// Package command runs external agent processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
)

// Request describes one process invocation.
type Request struct {
	Command    string
	Args       []string
	WorkingDir string
	// Environment entries ("KEY=value") are appended to the current process
	// environment. An empty slice inherits it unchanged.
	Environment []string
	// Stdin, when set, is streamed to the process.
	Stdin io.Reader
}

// CommandResult holds the outcome of executing an external command.
type CommandResult struct {
	Stdout string
	Stderr string
	// ExitCode is -1 when the process could not be started or was killed
	// because the context ended.
	ExitCode int
	// Error is the error reported by os/exec, including *exec.ExitError for
	// non-zero exits.
	Error error
}

// Runner runs external commands.
type Runner interface {
	// Run executes req. A non-zero exit is reported through
	// CommandResult.ExitCode with a nil error; the returned error is set only
	// when the process could not run or the context ended.
	Run(ctx context.Context, req Request) (*CommandResult, error)
}

type defaultRunner struct{}

// NewRunner creates the os/exec backed Runner.
func NewRunner() Runner {
	return &defaultRunner{}
}

func (r *defaultRunner) Run(ctx context.Context, req Request) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if req.Stdin != nil {
		cmd.Stdin = req.Stdin
	}
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	if len(req.Environment) > 0 {
		// cmd.Environ() is the default environment exec would use.
		cmd.Env = append(cmd.Environ(), req.Environment...)
	}

	result := &CommandResult{ExitCode: -1}
	err := cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if err != nil {
		if ctx.Err() != nil {
			result.Error = ctx.Err()
			return result, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			}
			result.Error = err
			return result, nil
		}

		result.Error = err
		return result, err
	}

	result.ExitCode = 0
	return result, nil
}
