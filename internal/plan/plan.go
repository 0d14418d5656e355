// Package plan turns a validated manifest into an ordered set of build steps.
package plan

import (
	"path/filepath"

	"github.com/danmuck/contractbuild/internal/manifest"
)

type StepKind string

const (
	KindCompileContract StepKind = "compile-contract"
	KindBuildWebApp     StepKind = "build-webapp"
	KindPackageState    StepKind = "package-state"
)

// Canonical artifact names under the contract output directory. These are
// part of the on-disk contract and must not change.
const (
	ContractFile = "contract.wasm"
	WebAppFile   = "webapp.tar.gz"
	StateFile    = "state.bin"
	IndexFile    = "package.toml"
)

// FileName returns the canonical output name for artifacts of kind.
func FileName(kind StepKind) string {
	switch kind {
	case KindCompileContract:
		return ContractFile
	case KindBuildWebApp:
		return WebAppFile
	case KindPackageState:
		return StateFile
	default:
		return string(kind)
	}
}

// Step is one unit of work bound to a single toolchain.
type Step struct {
	Kind       StepKind
	DependsOn  []StepKind
	OutputPath string

	// SourceDir is the directory holding the contract/webapp sources.
	SourceDir string

	Contract *CompileInput
	WebApp   *WebAppInput
	State    *StateInput
}

type CompileInput struct {
	Lang manifest.SourceLanguage
}

type WebAppInput struct {
	Lang         manifest.WebLang
	Options      manifest.LangOptions
	MetadataPath string
	StateSources map[string]any
	Dependencies map[string]any
}

type StateInput struct {
	ContractType manifest.ContractType
	Entries      map[string]any
	// Dependencies are recorded in the package index verbatim.
	Dependencies map[string]any
}

// Plan is the dependency-ordered step list for one build invocation.
type Plan struct {
	OutputDir string
	Steps     []Step
}

// Step returns the step of the given kind.
func (p Plan) Step(kind StepKind) (Step, bool) {
	for _, s := range p.Steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return Step{}, false
}

// Independent returns the steps without dependencies. They may run
// concurrently.
func (p Plan) Independent() []Step {
	out := make([]Step, 0, len(p.Steps))
	for _, s := range p.Steps {
		if len(s.DependsOn) == 0 {
			out = append(out, s)
		}
	}
	return out
}

// Kinds lists step kinds in plan order.
func (p Plan) Kinds() []StepKind {
	out := make([]StepKind, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Kind)
	}
	return out
}

// Resolve builds the plan for m. It never fails: every combination a
// validated manifest can express has a plan.
func Resolve(m *manifest.Manifest) Plan {
	out := m.Contract.OutputDir
	p := Plan{OutputDir: out}
	var upstream []StepKind

	if m.Contract.Compiles() {
		p.Steps = append(p.Steps, Step{
			Kind:       KindCompileContract,
			OutputPath: filepath.Join(out, ContractFile),
			SourceDir:  m.Dir,
			Contract:   &CompileInput{Lang: *m.Contract.Lang},
		})
		upstream = append(upstream, KindCompileContract)
	}

	var deps map[string]any
	if m.Contract.Type == manifest.ContractTypeWebapp && m.WebApp != nil {
		w := m.WebApp
		deps = w.Dependencies
		p.Steps = append(p.Steps, Step{
			Kind:       KindBuildWebApp,
			OutputPath: filepath.Join(out, WebAppFile),
			SourceDir:  m.Dir,
			WebApp: &WebAppInput{
				Lang:         w.Lang,
				Options:      w.Options,
				MetadataPath: w.MetadataPath(m.Dir),
				StateSources: w.StateSources,
				Dependencies: w.Dependencies,
			},
		})
		upstream = append(upstream, KindBuildWebApp)
	}

	p.Steps = append(p.Steps, Step{
		Kind:       KindPackageState,
		DependsOn:  upstream,
		OutputPath: filepath.Join(out, StateFile),
		SourceDir:  m.Dir,
		State: &StateInput{
			ContractType: m.Contract.Type,
			Entries:      m.State.Entries,
			Dependencies: deps,
		},
	})
	return p
}
