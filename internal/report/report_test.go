package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/danmuck/contractbuild/internal/build"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/packager"
	"github.com/danmuck/contractbuild/internal/plan"
	"gopkg.in/yaml.v3"
)

func TestWritePlanYAML(t *testing.T) {
	tree, err := manifest.DecodeTree([]byte(`
[contract]
type = "webapp"
lang = "rust"
[webapp]
lang = "javascript"
[state]
b = 1
a = 2
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, err := manifest.Parse(tree, "/p/locutus.toml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var buf bytes.Buffer
	if err := WritePlan(&buf, plan.Resolve(m)); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	var doc planDoc
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("yaml: %v\n%s", err, buf.String())
	}
	if len(doc.Steps) != 3 {
		t.Fatalf("unexpected steps: %+v", doc.Steps)
	}
	web := doc.Steps[1]
	if web.Kind != "build-webapp" || web.Lang != "javascript" || web.Webpack == nil || *web.Webpack {
		t.Fatalf("unexpected webapp step: %+v", web)
	}
	state := doc.Steps[2]
	if strings.Join(state.DependsOn, ",") != "compile-contract,build-webapp" {
		t.Fatalf("unexpected deps: %v", state.DependsOn)
	}
	if strings.Join(state.Entries, ",") != "a,b" {
		t.Fatalf("unexpected entries: %v", state.Entries)
	}
}

func TestWriteSummaryPlain(t *testing.T) {
	res := &build.Result{
		BuildID: "id-1",
		Steps: []build.StepResult{
			{Kind: plan.KindCompileContract, Status: build.StepCompleted},
			{Kind: plan.KindBuildWebApp, Status: build.StepFailed},
			{Kind: plan.KindPackageState, Stage: 1, Status: build.StepSkipped},
		},
		Outputs: []string{"/out/state.bin"},
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, res, Plain()); err != nil {
		t.Fatalf("summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"build id-1", "compile-contract", "FAIL", "skip", "stage=1", "-> /out/state.bin"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{manifest.Errors{manifest.MissingSection("webapp")}, 2},
		{&build.BuildFailedError{Failed: []build.StepFailure{{Kind: plan.KindBuildWebApp, Err: errors.New("x")}}}, 3},
		{fmt.Errorf("wrapped: %w", &packager.PackagingError{Op: "rename", Path: "/x", Err: errors.New("io")}), 4},
		{errors.New("other"), 1},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
