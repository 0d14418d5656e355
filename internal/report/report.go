// Package report renders plans and build results for the terminal.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/contractbuild/internal/build"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/packager"
	"github.com/danmuck/contractbuild/internal/plan"
	"gopkg.in/yaml.v3"
)

type planDoc struct {
	OutputDir string    `yaml:"output_dir"`
	Steps     []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	Kind      string         `yaml:"kind"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Output    string         `yaml:"output"`
	Lang      string         `yaml:"lang,omitempty"`
	Webpack   *bool          `yaml:"webpack,omitempty"`
	Metadata  string         `yaml:"metadata,omitempty"`
	Sources   map[string]any `yaml:"state_sources,omitempty"`
	Entries   []string       `yaml:"state_entries,omitempty"`
}

// WritePlan writes p as YAML.
func WritePlan(w io.Writer, p plan.Plan) error {
	doc := planDoc{OutputDir: p.OutputDir}
	for _, s := range p.Steps {
		sd := stepDoc{Kind: string(s.Kind), Output: s.OutputPath}
		for _, dep := range s.DependsOn {
			sd.DependsOn = append(sd.DependsOn, string(dep))
		}
		switch {
		case s.Contract != nil:
			sd.Lang = string(s.Contract.Lang)
		case s.WebApp != nil:
			sd.Lang = string(s.WebApp.Lang)
			if s.WebApp.Options != nil {
				webpack := s.WebApp.Options.UsesWebpack()
				sd.Webpack = &webpack
			}
			sd.Metadata = s.WebApp.MetadataPath
			sd.Sources = s.WebApp.StateSources
		case s.State != nil:
			for k := range s.State.Entries {
				sd.Entries = append(sd.Entries, k)
			}
			sort.Strings(sd.Entries)
		}
		doc.Steps = append(doc.Steps, sd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

// Styles are the terminal styles used by the summary. Plain() disables
// colour for non-interactive output.
type Styles struct {
	OK   lipgloss.Style
	Fail lipgloss.Style
	Skip lipgloss.Style
	Dim  lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		OK:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Skip: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Dim:  lipgloss.NewStyle().Faint(true),
	}
}

func Plain() Styles {
	s := lipgloss.NewStyle()
	return Styles{OK: s, Fail: s, Skip: s, Dim: s}
}

// WriteSummary writes one line per step followed by the outputs.
func WriteSummary(w io.Writer, res *build.Result, st Styles) error {
	if res == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", st.Dim.Render("build"), res.BuildID)
	for _, s := range res.Steps {
		var badge string
		switch s.Status {
		case build.StepCompleted:
			badge = st.OK.Render("ok  ")
		case build.StepFailed:
			badge = st.Fail.Render("FAIL")
		default:
			badge = st.Skip.Render("skip")
		}
		fmt.Fprintf(&b, "  %s %-16s stage=%d %s\n", badge, s.Kind, s.Stage, st.Dim.Render(s.Elapsed.Round(time.Millisecond).String()))
	}
	for _, out := range res.Outputs {
		fmt.Fprintf(&b, "  -> %s\n", out)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ExitCode maps a build error to the CLI exit status.
func ExitCode(err error) int {
	var manifestErrs manifest.Errors
	switch {
	case err == nil:
		return 0
	case errors.As(err, &manifestErrs):
		return 2
	case errors.Is(err, build.ErrBuildFailed):
		return 3
	case errors.Is(err, packager.ErrWriteFailure):
		return 4
	default:
		return 1
	}
}
