package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/contractbuild/internal/plan"
	"github.com/danmuck/contractbuild/internal/tools"
	"github.com/rs/zerolog/log"
)

// Artifact is one file produced by a step, staged outside the output dir.
type Artifact struct {
	Kind plan.StepKind
	// Name is the canonical file name under the output dir.
	Name string
	Path string
	// Metadata travels with webapp artifacts into state packaging. It is
	// empty, never nil, when the manifest sets no metadata file.
	Metadata []byte
}

// Locator finds executables by name.
type Locator interface {
	Find(name string) (string, error)
}

// Env is the shared execution environment handed to every executor.
type Env struct {
	// ScratchDir is private to one build invocation.
	ScratchDir string
	Runner     tools.CommandRunner
	Locator    Locator
	// Timeout bounds each external command; zero means no limit.
	Timeout time.Duration
	// Upstream holds artifacts from completed dependency steps.
	Upstream  []Artifact
	LookupEnv func(string) (string, bool)
}

// Executor is the capability set shared by all step kinds.
type Executor interface {
	Kind() plan.StepKind
	Prepare(ctx context.Context) error
	Run(ctx context.Context) error
	Collect(ctx context.Context) ([]Artifact, error)
}

// New returns the executor matching step.Kind.
func New(step plan.Step, env Env) (Executor, error) {
	if env.Runner == nil {
		env.Runner = tools.ExecRunner{}
	}
	if env.Locator == nil {
		env.Locator = tools.NewLocator()
	}
	if env.LookupEnv == nil {
		env.LookupEnv = os.LookupEnv
	}
	switch step.Kind {
	case plan.KindCompileContract:
		if step.Contract == nil {
			return nil, fmt.Errorf("%w: %s without contract input", ErrInvalidInput, step.Kind)
		}
		return &compileExecutor{step: step, env: env}, nil
	case plan.KindBuildWebApp:
		if step.WebApp == nil {
			return nil, fmt.Errorf("%w: %s without webapp input", ErrInvalidInput, step.Kind)
		}
		return &webappExecutor{step: step, env: env}, nil
	case plan.KindPackageState:
		if step.State == nil {
			return nil, fmt.Errorf("%w: %s without state input", ErrInvalidInput, step.Kind)
		}
		return &stateExecutor{step: step, env: env}, nil
	default:
		return nil, fmt.Errorf("%w: unknown step kind %q", ErrInvalidInput, step.Kind)
	}
}

// Execute drives ex through prepare, run and collect.
func Execute(ctx context.Context, ex Executor) ([]Artifact, error) {
	start := time.Now()

	if err := ex.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := ex.Run(ctx); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	artifacts, err := ex.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	log.Ctx(ctx).Debug().
		Str("kind", string(ex.Kind())).
		Dur("elapsed", time.Since(start)).
		Int("artifacts", len(artifacts)).
		Msg("executor.Execute complete")
	return artifacts, nil
}

func (e Env) stepDir(kind plan.StepKind) (string, error) {
	if strings.TrimSpace(e.ScratchDir) == "" {
		return "", fmt.Errorf("%w: scratch dir not set", ErrInvalidInput)
	}
	dir := filepath.Join(e.ScratchDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (e Env) upstream(kind plan.StepKind) (Artifact, bool) {
	for _, a := range e.Upstream {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// locate resolves an executable, mapping a miss to MissingToolchain.
func (e Env) locate(tool string) (string, error) {
	path, err := e.Locator.Find(tool)
	if err != nil {
		return "", MissingToolchain(tool, err)
	}
	return path, nil
}

// runTool runs one external command. tool names the toolchain in errors.
func (e Env) runTool(ctx context.Context, tool string, cmd tools.Command) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	logger := log.Ctx(ctx)
	logger.Info().
		Str("tool", tool).
		Str("cmd", cmd.Name).
		Str("args", strings.Join(cmd.Args, " ")).
		Str("dir", cmd.Dir).
		Msg("executor exec")

	_, stderr, exitCode, err := e.Runner.Run(ctx, cmd)
	if err == nil && exitCode == 0 {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ToolchainError{Kind: ErrToolchainFailure, Tool: tool, ExitCode: exitCode, Err: ctxErr}
	}
	if exitCode == tools.ExitCodeNotFound {
		return MissingToolchain(tool, err)
	}
	return &ToolchainError{
		Kind:     ErrToolchainFailure,
		Tool:     tool,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(string(stderr)),
		Err:      err,
	}
}
