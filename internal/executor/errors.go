package executor

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToolchain = errors.New("executor: missing toolchain")
	ErrToolchainFailure = errors.New("executor: toolchain failure")
	ErrUpstreamMissing  = errors.New("executor: upstream artifact missing")
	ErrInvalidInput     = errors.New("executor: invalid step input")
)

// ToolchainError reports a failed external tool. Kind is ErrMissingToolchain
// or ErrToolchainFailure.
type ToolchainError struct {
	Kind     error
	Tool     string
	ExitCode int32
	Stderr   string
	Err      error
}

func MissingToolchain(tool string, err error) *ToolchainError {
	return &ToolchainError{Kind: ErrMissingToolchain, Tool: tool, ExitCode: 127, Err: err}
}

func (e *ToolchainError) Error() string {
	if e.Kind == ErrMissingToolchain {
		return fmt.Sprintf("missing toolchain tool=%s", e.Tool)
	}
	msg := fmt.Sprintf("toolchain failure tool=%s exit=%d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" stderr=%q", e.Stderr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolchainError) Is(target error) bool {
	return target == e.Kind
}

func (e *ToolchainError) Unwrap() error {
	return e.Err
}
