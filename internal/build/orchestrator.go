package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danmuck/contractbuild/internal/executor"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/observability"
	"github.com/danmuck/contractbuild/internal/packager"
	"github.com/danmuck/contractbuild/internal/plan"
	"github.com/danmuck/contractbuild/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type Options struct {
	Runner  tools.CommandRunner
	Locator executor.Locator
	// Timeout bounds each external command; zero means no limit.
	Timeout time.Duration
	// ScratchRoot is the parent of per-build scratch dirs; empty uses the
	// system temp dir.
	ScratchRoot string
	LookupEnv   func(string) (string, bool)
	// Metrics, when set, receives step and build outcomes.
	Metrics *observability.Metrics
}

type StepResult struct {
	Kind plan.StepKind
	// Stage is the barrier index the step ran in; steps sharing a stage
	// ran concurrently.
	Stage   int
	Status  StepStatus
	Elapsed time.Duration
	Err     error
}

type Result struct {
	BuildID   string
	Manifest  *manifest.Manifest
	Plan      plan.Plan
	Steps     []StepResult
	OutputDir string
	// Outputs are the final artifact paths, set only on success.
	Outputs []string
}

// Step returns the result of the given step kind.
func (r *Result) Step(kind plan.StepKind) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return StepResult{}, false
}

type Orchestrator struct {
	opts Options
}

func New(opts Options) *Orchestrator {
	if opts.Runner == nil {
		opts.Runner = tools.ExecRunner{}
	}
	if opts.Locator == nil {
		opts.Locator = tools.NewLocator()
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	return &Orchestrator{opts: opts}
}

// Plan loads and validates the manifest and resolves its plan without
// running anything.
func (o *Orchestrator) Plan(manifestPath string) (*manifest.Manifest, plan.Plan, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, plan.Plan{}, err
	}
	return m, plan.Resolve(m), nil
}

// Run performs one build. The returned error is manifest.Errors for an
// invalid manifest, *BuildFailedError when steps failed, and a
// *packager.PackagingError when assembly failed. Result is non-nil once
// the manifest validated.
func (o *Orchestrator) Run(ctx context.Context, manifestPath string) (result *Result, err error) {
	start := time.Now()
	defer func() {
		o.opts.Metrics.RecordBuild(buildOutcome(err), time.Since(start))
	}()

	buildID := uuid.NewString()
	logger := log.With().Str("build_id", buildID).Logger()
	ctx = logger.WithContext(ctx)

	m, p, err := o.Plan(manifestPath)
	if err != nil {
		logger.Error().Err(err).Str("manifest", manifestPath).Msg("build.Orchestrator.Run manifest rejected")
		return nil, err
	}
	result = &Result{BuildID: buildID, Manifest: m, Plan: p, OutputDir: p.OutputDir}
	logger.Info().
		Str("manifest", m.Path).
		Str("contract_type", string(m.Contract.Type)).
		Str("output_dir", p.OutputDir).
		Int("steps", len(p.Steps)).
		Msg("build.Orchestrator.Run start")

	scratch, err := os.MkdirTemp(o.opts.ScratchRoot, "contractbuild-*")
	if err != nil {
		return result, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	env := executor.Env{
		ScratchDir: scratch,
		Runner:     o.opts.Runner,
		Locator:    o.opts.Locator,
		Timeout:    o.opts.Timeout,
		LookupEnv:  o.opts.LookupEnv,
	}

	artifacts, failed := o.runStages(ctx, p, env, result)
	if err := ctx.Err(); err != nil {
		logger.Warn().Err(err).Msg("build.Orchestrator.Run cancelled")
		return result, err
	}
	if len(failed) > 0 {
		buildErr := &BuildFailedError{Failed: failed}
		logger.Error().Strs("failed", kindStrings(buildErr.FailedKinds())).Msg("build.Orchestrator.Run failed")
		return result, buildErr
	}

	outputs, err := packager.Assemble(ctx, artifacts, p.OutputDir)
	if err != nil {
		logger.Error().Err(err).Msg("build.Orchestrator.Run packaging failed")
		return result, err
	}
	result.Outputs = outputs
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, filepath.Base(out))
	}
	o.opts.Metrics.RecordArtifacts(names...)
	logger.Info().Strs("outputs", outputs).Msg("build.Orchestrator.Run complete")
	return result, nil
}

// runStages runs the plan stage by stage. Stage 0 holds every step without
// dependencies; each later step waits for all of its dependencies and is
// skipped if any of them did not complete.
func (o *Orchestrator) runStages(ctx context.Context, p plan.Plan, env executor.Env, result *Result) ([]executor.Artifact, []StepFailure) {
	produced := make(map[plan.StepKind][]executor.Artifact)
	status := make(map[plan.StepKind]StepStatus)
	var failed []StepFailure

	record := func(r StepResult, arts []executor.Artifact) {
		result.Steps = append(result.Steps, r)
		o.opts.Metrics.RecordStep(string(r.Kind), string(r.Status), r.Elapsed)
		status[r.Kind] = r.Status
		if r.Status == StepCompleted {
			produced[r.Kind] = arts
		}
		if r.Status == StepFailed {
			failed = append(failed, StepFailure{Kind: r.Kind, Err: r.Err})
		}
	}

	independent := p.Independent()
	outcomes := make([]stepOutcome, len(independent))
	var g errgroup.Group
	for i, step := range independent {
		i, step := i, step
		g.Go(func() error {
			outcomes[i] = o.runStep(ctx, step, env, 0)
			return nil
		})
	}
	_ = g.Wait()
	for _, out := range outcomes {
		record(out.result, out.artifacts)
	}

	stage := 1
	for _, step := range p.Steps {
		if len(step.DependsOn) == 0 {
			continue
		}
		ready := true
		upstream := make([]executor.Artifact, 0)
		for _, dep := range step.DependsOn {
			if status[dep] != StepCompleted {
				ready = false
				break
			}
			upstream = append(upstream, produced[dep]...)
		}
		if !ready || ctx.Err() != nil {
			log.Ctx(ctx).Warn().Str("step", string(step.Kind)).Msg("build.Orchestrator step skipped")
			record(StepResult{Kind: step.Kind, Stage: stage, Status: StepSkipped}, nil)
			stage++
			continue
		}
		stepEnv := env
		stepEnv.Upstream = upstream
		out := o.runStep(ctx, step, stepEnv, stage)
		record(out.result, out.artifacts)
		stage++
	}

	var all []executor.Artifact
	for _, step := range p.Steps {
		all = append(all, produced[step.Kind]...)
	}
	return all, failed
}

type stepOutcome struct {
	result    StepResult
	artifacts []executor.Artifact
}

func (o *Orchestrator) runStep(ctx context.Context, step plan.Step, env executor.Env, stage int) stepOutcome {
	logger := log.Ctx(ctx).With().Str("step", string(step.Kind)).Int("stage", stage).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()
	logger.Info().Msg("build.Orchestrator step start")

	res := StepResult{Kind: step.Kind, Stage: stage}
	ex, err := executor.New(step, env)
	var artifacts []executor.Artifact
	if err == nil {
		artifacts, err = executor.Execute(ctx, ex)
	}
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Status = StepFailed
		res.Err = err
		logger.Error().Err(err).Dur("elapsed", res.Elapsed).Msg("build.Orchestrator step failed")
		return stepOutcome{result: res}
	}
	res.Status = StepCompleted
	logger.Info().Dur("elapsed", res.Elapsed).Msg("build.Orchestrator step complete")
	return stepOutcome{result: res, artifacts: artifacts}
}

func buildOutcome(err error) string {
	var manifestErrs manifest.Errors
	switch {
	case err == nil:
		return "completed"
	case errors.As(err, &manifestErrs):
		return "invalid"
	case errors.Is(err, ErrBuildFailed):
		return "failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func kindStrings(kinds []plan.StepKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
