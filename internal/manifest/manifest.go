package manifest

import "path/filepath"

const (
	// FileName is the conventional manifest name next to the contract source.
	FileName = "locutus.toml"
	// DefaultOutputDir is joined to the manifest directory when
	// contract.output_dir is unset.
	DefaultOutputDir = "build/locutus"
)

type ContractType string

const (
	ContractTypeStandard ContractType = "standard"
	ContractTypeWebapp   ContractType = "webapp"
)

type SourceLanguage string

const LangRust SourceLanguage = "rust"

type WebLang string

const (
	WebLangTypeScript WebLang = "typescript"
	WebLangJavaScript WebLang = "javascript"
)

// Manifest is the validated build description for one contract.
type Manifest struct {
	// Path and Dir locate the manifest file; relative sources resolve
	// against Dir.
	Path     string
	Dir      string
	Contract ContractSpec
	// WebApp is non-nil exactly when Contract.Type is ContractTypeWebapp.
	WebApp *WebAppSpec
	State  StateSpec
}

type ContractSpec struct {
	Type ContractType
	// Lang is nil when the contract is used as-is without compilation.
	Lang *SourceLanguage
	// OutputDir is always resolved after parsing.
	OutputDir string
}

func (c ContractSpec) Compiles() bool {
	return c.Lang != nil
}

type WebAppSpec struct {
	Lang WebLang
	// Metadata is an optional file path. Empty means empty metadata bytes.
	Metadata     string
	Options      LangOptions
	StateSources map[string]any
	Dependencies map[string]any
}

// MetadataPath returns the metadata file resolved against dir, or "" when unset.
func (w WebAppSpec) MetadataPath(dir string) string {
	if w.Metadata == "" {
		return ""
	}
	if filepath.IsAbs(w.Metadata) {
		return filepath.Clean(w.Metadata)
	}
	return filepath.Join(dir, w.Metadata)
}

// LangOptions is the per-language options variant of a webapp. The
// variant always matches WebAppSpec.Lang.
type LangOptions interface {
	Lang() WebLang
	UsesWebpack() bool
	isLangOptions()
}

type TypescriptOptions struct {
	Webpack bool
}

func (TypescriptOptions) Lang() WebLang       { return WebLangTypeScript }
func (o TypescriptOptions) UsesWebpack() bool { return o.Webpack }
func (TypescriptOptions) isLangOptions()      {}

type JavascriptOptions struct {
	Webpack bool
}

func (JavascriptOptions) Lang() WebLang       { return WebLangJavaScript }
func (o JavascriptOptions) UsesWebpack() bool { return o.Webpack }
func (JavascriptOptions) isLangOptions()      {}

// StateSpec holds the [state] section verbatim.
type StateSpec struct {
	Entries map[string]any
}

// ResolveOutputDir applies the output_dir default. It does not touch the
// filesystem.
func ResolveOutputDir(manifestDir, raw string) string {
	if raw == "" {
		return filepath.Join(manifestDir, filepath.FromSlash(DefaultOutputDir))
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Join(manifestDir, filepath.FromSlash(raw))
}
