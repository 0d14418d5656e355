package build

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/contractbuild/internal/plan"
)

var ErrBuildFailed = errors.New("build: step failed")

// StepFailure is the verbatim error of one failed step.
type StepFailure struct {
	Kind plan.StepKind
	Err  error
}

// BuildFailedError aggregates every failed step of an invocation.
type BuildFailedError struct {
	Failed []StepFailure
}

func (e *BuildFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "build failed (%d step", len(e.Failed))
	if len(e.Failed) != 1 {
		b.WriteString("s")
	}
	b.WriteString("):")
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "\n  - step=%s: %v", f.Kind, f.Err)
	}
	return b.String()
}

func (e *BuildFailedError) Is(target error) bool {
	return target == ErrBuildFailed
}

func (e *BuildFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}

// FailedKinds lists the failed steps in plan order.
func (e *BuildFailedError) FailedKinds() []plan.StepKind {
	out := make([]plan.StepKind, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Kind)
	}
	return out
}
