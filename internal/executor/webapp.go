package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/plan"
	"github.com/danmuck/contractbuild/internal/tools"
)

const (
	npmTool          = "npm"
	defaultSourceDir = "dist"
)

// webappExecutor installs web dependencies, optionally bundles, and
// archives the state sources.
type webappExecutor struct {
	step     plan.Step
	env      Env
	npm      string
	metadata []byte
	sources  stateSources
}

func (e *webappExecutor) Kind() plan.StepKind { return plan.KindBuildWebApp }

func (e *webappExecutor) Prepare(ctx context.Context) error {
	in := e.step.WebApp
	if in.Options == nil || in.Options.Lang() != in.Lang {
		return fmt.Errorf("%w: webapp options do not match lang %q", ErrInvalidInput, in.Lang)
	}
	sources, err := parseStateSources(in.StateSources)
	if err != nil {
		return err
	}
	metadata := []byte{}
	if in.MetadataPath != "" {
		data, err := os.ReadFile(in.MetadataPath)
		if err != nil {
			return fmt.Errorf("read webapp metadata: %w", err)
		}
		metadata = data
	}
	npm, err := e.env.locate(npmTool)
	if err != nil {
		return err
	}
	e.npm = npm
	e.metadata = metadata
	e.sources = sources
	return nil
}

func (e *webappExecutor) Run(ctx context.Context) error {
	dir := e.step.SourceDir
	if err := e.env.runTool(ctx, npmTool, tools.Command{Dir: dir, Name: e.npm, Args: []string{"install"}}); err != nil {
		return err
	}

	in := e.step.WebApp
	switch {
	case in.Options.UsesWebpack():
		return e.env.runTool(ctx, "webpack", tools.Command{Dir: dir, Name: e.npm, Args: []string{"exec", "--", "webpack"}})
	case in.Lang == manifest.WebLangTypeScript:
		return e.env.runTool(ctx, "tsc", tools.Command{Dir: dir, Name: e.npm, Args: []string{"exec", "--", "tsc"}})
	default:
		// plain javascript ships its sources as-is
		return nil
	}
}

func (e *webappExecutor) Collect(ctx context.Context) ([]Artifact, error) {
	dir, err := e.env.stepDir(plan.KindBuildWebApp)
	if err != nil {
		return nil, err
	}
	entries, err := e.sources.collect(e.step.SourceDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, plan.WebAppFile)
	if err := writeArchiveFile(ctx, path, entries); err != nil {
		return nil, err
	}
	return []Artifact{{
		Kind:     plan.KindBuildWebApp,
		Name:     plan.WebAppFile,
		Path:     path,
		Metadata: e.metadata,
	}}, nil
}

// stateSources is the interpreted [webapp.state-sources] table. Unknown
// keys are ignored.
type stateSources struct {
	Dirs  []string
	Files []string
}

func parseStateSources(raw map[string]any) (stateSources, error) {
	dirs, err := stringList(raw, "source_dirs")
	if err != nil {
		return stateSources{}, err
	}
	files, err := stringList(raw, "files")
	if err != nil {
		return stateSources{}, err
	}
	if dirs == nil && files == nil {
		dirs = []string{defaultSourceDir}
	}
	return stateSources{Dirs: dirs, Files: files}, nil
}

func stringList(raw map[string]any, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: webapp.state-sources.%s must be a list of strings", ErrInvalidInput, key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: webapp.state-sources.%s must be a list of strings", ErrInvalidInput, key)
		}
		out = append(out, s)
	}
	return out, nil
}
