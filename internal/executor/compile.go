package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/plan"
	"github.com/danmuck/contractbuild/internal/tools"
)

const (
	cargoTool       = "cargo"
	wasmTarget      = "wasm32-unknown-unknown"
	envCargoTarget  = "CARGO_TARGET_DIR"
	cargoManifest   = "Cargo.toml"
	defaultCargoDir = "target"
)

type cargoPackage struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// compileExecutor builds the contract crate to wasm.
type compileExecutor struct {
	step  plan.Step
	env   Env
	cargo string
	crate string
}

func (e *compileExecutor) Kind() plan.StepKind { return plan.KindCompileContract }

func (e *compileExecutor) Prepare(ctx context.Context) error {
	if e.step.Contract.Lang != manifest.LangRust {
		return fmt.Errorf("%w: contract lang %q", ErrInvalidInput, e.step.Contract.Lang)
	}
	cargo, err := e.env.locate(cargoTool)
	if err != nil {
		return err
	}
	crate, err := readCrateName(filepath.Join(e.step.SourceDir, cargoManifest))
	if err != nil {
		return err
	}
	e.cargo = cargo
	e.crate = crate
	return nil
}

func (e *compileExecutor) Run(ctx context.Context) error {
	return e.env.runTool(ctx, string(manifest.LangRust), tools.Command{
		Dir:  e.step.SourceDir,
		Name: e.cargo,
		Args: []string{"build", "--release", "--target", wasmTarget},
	})
}

func (e *compileExecutor) Collect(ctx context.Context) ([]Artifact, error) {
	path := filepath.Join(e.targetDir(), wasmTarget, "release", wasmFileName(e.crate))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("compiled contract not found: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("compiled contract is not a regular file: %s", path)
	}
	return []Artifact{{
		Kind: plan.KindCompileContract,
		Name: plan.ContractFile,
		Path: path,
	}}, nil
}

func (e *compileExecutor) targetDir() string {
	if dir, ok := e.env.LookupEnv(envCargoTarget); ok && strings.TrimSpace(dir) != "" {
		dir = strings.TrimSpace(dir)
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(e.step.SourceDir, dir)
	}
	return filepath.Join(e.step.SourceDir, defaultCargoDir)
}

func readCrateName(path string) (string, error) {
	var pkg cargoPackage
	if _, err := toml.DecodeFile(path, &pkg); err != nil {
		return "", fmt.Errorf("read crate manifest (%s): %w", path, err)
	}
	name := strings.TrimSpace(pkg.Package.Name)
	if name == "" {
		return "", fmt.Errorf("%w: %s has no [package].name", ErrInvalidInput, path)
	}
	return name, nil
}

// cargo emits library artifacts with dashes replaced by underscores.
func wasmFileName(crate string) string {
	return strings.ReplaceAll(crate, "-", "_") + ".wasm"
}
