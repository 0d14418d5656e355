package tools

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// ExitCodeNotFound is reported when a command could not be started.
const ExitCodeNotFound int32 = 127

// Command is one external process invocation.
type Command struct {
	Dir  string
	Name string
	Args []string
	// Env entries are appended to the current process environment.
	Env []string
}

// CommandRunner abstracts external process execution for build executors.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, []byte, int32, error)
}

// ExecRunner executes commands on the local host. Output is captured and,
// when Echo is set, mirrored to it as the process runs.
type ExecRunner struct {
	Echo io.Writer
}

// tools command-runner implementation backed by os/exec. Cancelling ctx
// kills the child process.
func (r ExecRunner) Run(ctx context.Context, c Command) ([]byte, []byte, int32, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if r.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Echo)
		cmd.Stderr = io.MultiWriter(&stderr, r.Echo)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		exitCode = ExitCodeNotFound
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}
