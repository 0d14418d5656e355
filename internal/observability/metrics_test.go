package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/contractbuild/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersAndTextfile(t *testing.T) {
	testlog.Start(t)
	m := NewMetrics()
	m.RecordStep("compile-contract", "completed", 1500*time.Millisecond)
	m.RecordStep("build-webapp", "failed", 200*time.Millisecond)
	m.RecordStep("build-webapp", "failed", 300*time.Millisecond)
	m.RecordBuild("failed", 2*time.Second)
	m.RecordArtifacts("contract.wasm", "state.bin")

	if got := testutil.ToFloat64(m.steps.WithLabelValues("build-webapp", "failed")); got != 2 {
		t.Fatalf("unexpected failed webapp count: %v", got)
	}
	if got := testutil.ToFloat64(m.lastBuild.WithLabelValues("failed")); got != 2 {
		t.Fatalf("unexpected last build duration: %v", got)
	}

	path := filepath.Join(t.TempDir(), "contractbuild.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, want := range []string{
		`contractbuild_step_runs_total{status="completed",step="compile-contract"} 1`,
		`contractbuild_build_runs_total{result="failed"} 1`,
		`contractbuild_package_artifacts_total{artifact="state.bin"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordStep("compile-contract", "completed", time.Second)
	m.RecordBuild("completed", time.Second)
	m.RecordArtifacts("state.bin")
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil metrics write: %v", err)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordBuild("completed", time.Second)
	if got := testutil.ToFloat64(b.builds.WithLabelValues("completed")); got != 0 {
		t.Fatalf("metrics leaked between registries: %v", got)
	}
}
