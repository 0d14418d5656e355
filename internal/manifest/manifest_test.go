package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/contractbuild/internal/testutil/testlog"
)

const testManifestPath = "/work/app/locutus.toml"

func parseText(t *testing.T, text string) (*Manifest, error) {
	t.Helper()
	tree, err := DecodeTree([]byte(text))
	if err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	return Parse(tree, testManifestPath)
}

func mustErrors(t *testing.T, err error) Errors {
	t.Helper()
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected manifest.Errors, got %T: %v", err, err)
	}
	if len(errs) == 0 {
		t.Fatalf("expected non-empty errors")
	}
	return errs
}

func TestParseDefaultsStandardContract(t *testing.T) {
	testlog.Start(t)
	m, err := parseText(t, "[contract]\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Contract.Type != ContractTypeStandard {
		t.Fatalf("unexpected type: %q", m.Contract.Type)
	}
	if m.Contract.Lang != nil {
		t.Fatalf("expected no lang, got %q", *m.Contract.Lang)
	}
	want := filepath.Join(filepath.Dir(testManifestPath), "build", "locutus")
	if m.Contract.OutputDir != want {
		t.Fatalf("unexpected output dir: %q want %q", m.Contract.OutputDir, want)
	}
	if m.WebApp != nil {
		t.Fatalf("expected no webapp")
	}
	if m.Dir != filepath.Dir(testManifestPath) {
		t.Fatalf("unexpected dir: %q", m.Dir)
	}
}

func TestParseOutputDirOverride(t *testing.T) {
	m, err := parseText(t, "[contract]\noutput_dir = \"out/pkg\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := filepath.Join(filepath.Dir(testManifestPath), "out", "pkg")
	if m.Contract.OutputDir != want {
		t.Fatalf("unexpected output dir: %q", m.Contract.OutputDir)
	}

	m, err = parseText(t, "[contract]\noutput_dir = \"/abs/out/\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Contract.OutputDir != filepath.Clean("/abs/out/") {
		t.Fatalf("unexpected absolute output dir: %q", m.Contract.OutputDir)
	}
}

func TestParseWebappRequiresSection(t *testing.T) {
	_, err := parseText(t, "[contract]\ntype = \"webapp\"\nlang = \"rust\"\n")
	errs := mustErrors(t, err)
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("expected ErrMissingSection, got %v", err)
	}
	if errs[0].Key != "webapp" {
		t.Fatalf("expected missing section webapp, got %q", errs[0].Key)
	}
	if !strings.Contains(err.Error(), "missing section [webapp]") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestParseUnsupportedContractLanguage(t *testing.T) {
	_, err := parseText(t, "[contract]\nlang = \"python\"\n")
	errs := mustErrors(t, err)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if !errors.Is(err, ErrUnsupportedLanguage) || errs[0].Value != "python" {
		t.Fatalf("expected UnsupportedLanguage(python), got %v", err)
	}
}

func TestParseTypescriptWebapp(t *testing.T) {
	m, err := parseText(t, `
[contract]
type = "webapp"
lang = "rust"

[webapp]
lang = "typescript"
metadata = "meta.bin"

[webapp.typescript]
webpack = true

[webapp.state-sources]
source_dirs = ["dist"]

[webapp.dependencies]
posts = { path = "../posts" }

[state]
seed = "genesis"
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Contract.Lang == nil || *m.Contract.Lang != LangRust {
		t.Fatalf("expected rust contract")
	}
	if m.WebApp == nil {
		t.Fatalf("expected webapp")
	}
	opts, ok := m.WebApp.Options.(TypescriptOptions)
	if !ok {
		t.Fatalf("expected typescript options, got %T", m.WebApp.Options)
	}
	if !opts.Webpack || !m.WebApp.Options.UsesWebpack() {
		t.Fatalf("expected webpack enabled")
	}
	if got := m.WebApp.MetadataPath(m.Dir); got != filepath.Join(m.Dir, "meta.bin") {
		t.Fatalf("unexpected metadata path: %q", got)
	}
	dirs, ok := m.WebApp.StateSources["source_dirs"].([]any)
	if !ok || len(dirs) != 1 || dirs[0] != "dist" {
		t.Fatalf("unexpected state sources: %#v", m.WebApp.StateSources)
	}
	if _, ok := m.WebApp.Dependencies["posts"].(map[string]any); !ok {
		t.Fatalf("unexpected dependencies: %#v", m.WebApp.Dependencies)
	}
	if m.State.Entries["seed"] != "genesis" {
		t.Fatalf("unexpected state entries: %#v", m.State.Entries)
	}
}

func TestParseJavascriptDefaults(t *testing.T) {
	m, err := parseText(t, "[contract]\ntype = \"webapp\"\n\n[webapp]\nlang = \"javascript\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	opts, ok := m.WebApp.Options.(JavascriptOptions)
	if !ok {
		t.Fatalf("expected javascript options, got %T", m.WebApp.Options)
	}
	if opts.Webpack {
		t.Fatalf("expected webpack to default to false")
	}
	if m.WebApp.Metadata != "" || m.WebApp.MetadataPath(m.Dir) != "" {
		t.Fatalf("expected unset metadata")
	}
}

func TestParseMismatchedOptionsSection(t *testing.T) {
	_, err := parseText(t, `
[contract]
type = "webapp"

[webapp]
lang = "javascript"

[webapp.typescript]
webpack = true
`)
	errs := mustErrors(t, err)
	if !errors.Is(err, ErrMismatchedOptions) {
		t.Fatalf("expected ErrMismatchedOptions, got %v", err)
	}
	if errs[0].Key != "webapp.typescript" || errs[0].Value != "javascript" {
		t.Fatalf("unexpected error detail: %+v", errs[0])
	}
}

func TestParseMissingWebappLang(t *testing.T) {
	_, err := parseText(t, "[contract]\ntype = \"webapp\"\n\n[webapp]\nmetadata = \"m\"\n")
	errs := mustErrors(t, err)
	if !errs.Has(ErrMissingField) || errs[0].Key != "webapp.lang" {
		t.Fatalf("expected missing webapp.lang, got %v", err)
	}
}

func TestParseAccumulatesErrors(t *testing.T) {
	_, err := parseText(t, `
[contract]
type = "container"
lang = "go"

[webapp]
lang = "elm"

[webapp.javascript]
webpack = "yes"
`)
	errs := mustErrors(t, err)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), err)
	}
	if errs[0].Kind != ErrInvalidValue || errs[0].Key != "contract.type" {
		t.Fatalf("unexpected first error: %v", errs[0])
	}
	if errs[1].Kind != ErrUnsupportedLanguage || errs[1].Value != "go" {
		t.Fatalf("unexpected second error: %v", errs[1])
	}
	if errs[2].Kind != ErrUnsupportedLanguage || errs[2].Value != "elm" {
		t.Fatalf("unexpected third error: %v", errs[2])
	}
	if !strings.HasPrefix(err.Error(), "manifest invalid (3 problems):") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestParseInvalidWebpackValue(t *testing.T) {
	_, err := parseText(t, "[contract]\ntype = \"webapp\"\n[webapp]\nlang = \"javascript\"\n[webapp.javascript]\nwebpack = \"yes\"\n")
	errs := mustErrors(t, err)
	if errs[0].Kind != ErrInvalidValue || errs[0].Key != "webapp.javascript.webpack" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseMissingContractSection(t *testing.T) {
	_, err := parseText(t, "[state]\nx = 1\n")
	errs := mustErrors(t, err)
	if errs[0].Kind != ErrMissingSection || errs[0].Key != "contract" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseIgnoresWebappForStandardContract(t *testing.T) {
	testlog.Start(t)
	m, err := parseText(t, "[contract]\n\n[webapp]\nlang = \"typescript\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.WebApp != nil {
		t.Fatalf("expected webapp to be dropped for standard contract")
	}
}

func TestDecodeTreeSyntaxError(t *testing.T) {
	_, err := DecodeTree([]byte("[contract\n"))
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := WriteTemplate(path, "webapp", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "webapp", false); err == nil {
		t.Fatalf("expected existing manifest to be protected")
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Contract.Type != ContractTypeWebapp || m.WebApp == nil {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Contract.OutputDir != filepath.Join(dir, "build", "locutus") {
		t.Fatalf("unexpected output dir: %q", m.Contract.OutputDir)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestTemplatesParse(t *testing.T) {
	for _, kind := range []string{"standard", "webapp"} {
		text, err := Template(kind)
		if err != nil {
			t.Fatalf("template %s: %v", kind, err)
		}
		if _, err := parseText(t, text); err != nil {
			t.Fatalf("template %s does not parse: %v", kind, err)
		}
	}
	if _, err := Template("python"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
