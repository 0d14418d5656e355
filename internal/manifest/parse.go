package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	sectionContract     = "contract"
	sectionWebApp       = "webapp"
	sectionState        = "state"
	sectionStateSources = "state-sources"
	sectionDependencies = "dependencies"
)

// Load reads the manifest at path and parses it.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	tree, err := LoadTree(abs)
	if err != nil {
		return nil, err
	}
	return Parse(tree, abs)
}

// Parse validates tree and fills defaults. On failure the returned error is
// an Errors value listing every problem found, in section order.
func Parse(tree Tree, manifestPath string) (*Manifest, error) {
	p := &parser{}
	dir := filepath.Dir(manifestPath)
	m := &Manifest{Path: manifestPath, Dir: dir}

	contract, hasContract := p.table(tree, sectionContract, sectionContract)
	if !hasContract {
		p.add(MissingSection(sectionContract))
	}
	m.Contract = p.contract(contract, dir)

	webapp, hasWebApp := p.table(tree, sectionWebApp, sectionWebApp)
	switch {
	case m.Contract.Type == ContractTypeWebapp && !hasWebApp:
		p.add(MissingSection(sectionWebApp))
	case hasWebApp:
		spec := p.webapp(webapp)
		if m.Contract.Type == ContractTypeWebapp {
			m.WebApp = spec
		} else {
			log.Warn().Str("manifest", manifestPath).
				Msg("manifest.Parse [webapp] ignored for standard contract")
		}
	}

	state, _ := p.table(tree, sectionState, sectionState)
	m.State = StateSpec{Entries: state}

	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return m, nil
}

type parser struct {
	errs Errors
}

func (p *parser) add(err *Error) {
	p.errs = append(p.errs, err)
}

func (p *parser) invalid(key string, value any, detail string) {
	p.add(&Error{Kind: ErrInvalidValue, Key: key, Value: fmt.Sprint(value), Detail: detail})
}

// table returns the sub-table name of parent. A present value that is not
// a table is reported and treated as absent.
func (p *parser) table(parent map[string]any, name, key string) (map[string]any, bool) {
	raw, ok := parent[name]
	if !ok {
		return nil, false
	}
	tbl, ok := raw.(map[string]any)
	if !ok {
		p.invalid(key, raw, fmt.Sprintf("expected a table, got %T", raw))
		return nil, false
	}
	return tbl, true
}

// str returns the string at tbl[name]. A present non-string is reported.
func (p *parser) str(tbl map[string]any, name, key string) (string, bool) {
	raw, ok := tbl[name]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		p.invalid(key, raw, fmt.Sprintf("expected a string, got %T", raw))
		return "", false
	}
	return s, true
}

func (p *parser) contract(tbl map[string]any, dir string) ContractSpec {
	spec := ContractSpec{Type: ContractTypeStandard}

	if raw, ok := p.str(tbl, "type", "contract.type"); ok {
		switch ContractType(raw) {
		case ContractTypeStandard, ContractTypeWebapp:
			spec.Type = ContractType(raw)
		default:
			p.invalid("contract.type", raw, fmt.Sprintf("%q is not one of standard, webapp", raw))
		}
	}

	if raw, ok := p.str(tbl, "lang", "contract.lang"); ok {
		if SourceLanguage(raw) == LangRust {
			lang := LangRust
			spec.Lang = &lang
		} else {
			p.add(UnsupportedLanguage("contract.lang", raw))
		}
	}

	outputDir, _ := p.str(tbl, "output_dir", "contract.output_dir")
	spec.OutputDir = ResolveOutputDir(dir, outputDir)
	return spec
}

func (p *parser) webapp(tbl map[string]any) *WebAppSpec {
	spec := &WebAppSpec{}

	rawLang, hasLang := p.str(tbl, "lang", "webapp.lang")
	if _, present := tbl["lang"]; !present {
		p.add(MissingField("webapp.lang"))
	}
	if hasLang {
		switch WebLang(rawLang) {
		case WebLangTypeScript, WebLangJavaScript:
			spec.Lang = WebLang(rawLang)
		default:
			p.add(UnsupportedLanguage("webapp.lang", rawLang))
		}
	}

	ts, hasTS := p.table(tbl, string(WebLangTypeScript), "webapp.typescript")
	js, hasJS := p.table(tbl, string(WebLangJavaScript), "webapp.javascript")
	switch spec.Lang {
	case WebLangTypeScript:
		if hasJS {
			p.add(MismatchedOptionsSection("webapp.javascript", rawLang))
		}
		spec.Options = TypescriptOptions{Webpack: p.webpack(ts, "webapp.typescript.webpack")}
	case WebLangJavaScript:
		if hasTS {
			p.add(MismatchedOptionsSection("webapp.typescript", rawLang))
		}
		spec.Options = JavascriptOptions{Webpack: p.webpack(js, "webapp.javascript.webpack")}
	}

	spec.Metadata, _ = p.str(tbl, "metadata", "webapp.metadata")
	spec.StateSources, _ = p.table(tbl, sectionStateSources, "webapp.state-sources")
	spec.Dependencies, _ = p.table(tbl, sectionDependencies, "webapp.dependencies")
	return spec
}

func (p *parser) webpack(tbl map[string]any, key string) bool {
	raw, ok := tbl["webpack"]
	if !ok {
		return false
	}
	v, ok := raw.(bool)
	if !ok {
		p.invalid(key, raw, fmt.Sprintf("expected a boolean, got %T", raw))
		return false
	}
	return v
}
