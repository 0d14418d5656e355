package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/contractbuild/internal/build"
	"github.com/danmuck/contractbuild/internal/logging"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/observability"
	"github.com/danmuck/contractbuild/internal/report"
	"github.com/danmuck/contractbuild/internal/tools"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

const usage = `usage: buildctl [build|plan|validate|init] [flags]

commands:
  build     build and package the contract (default)
  plan      print the resolved build plan as YAML
  validate  check the manifest without building
  init      write a manifest template

flags:
`

func main() {
	_ = godotenv.Load()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, build.Options{})
	stop()
	os.Exit(code)
}

type cliFlags struct {
	manifest string
	timeout  time.Duration
	kind     string
	force    bool
	metrics  string
	verbose  bool
}

func parseArgs(args []string, stderr io.Writer) (string, cliFlags, error) {
	cmd := "build"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var f cliFlags
	fs := flag.NewFlagSet("buildctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&f.manifest, "manifest", manifest.FileName, "path to the contract manifest")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-command toolchain timeout (0 disables)")
	fs.StringVar(&f.kind, "kind", "standard", "template kind for init: standard|webapp")
	fs.BoolVar(&f.force, "force", false, "overwrite an existing manifest on init")
	fs.BoolVar(&f.verbose, "v", false, "stream toolchain output to stderr")
	fs.StringVar(&f.metrics, "metrics", os.Getenv("BUILDCTL_METRICS_FILE"), "write build metrics to this Prometheus textfile")
	if err := fs.Parse(args); err != nil {
		return "", f, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return "", f, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cmd, f, nil
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts build.Options) int {
	cmd, f, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "buildctl: %v\n", err)
		return 1
	}

	opts = buildOptions(f, opts, stderr)
	orch := build.New(opts)

	switch cmd {
	case "build":
		res, err := orch.Run(ctx, f.manifest)
		if res != nil {
			_ = report.WriteSummary(stdout, res, summaryStyles(stdout))
		}
		if f.metrics != "" {
			if mErr := opts.Metrics.WriteTextfile(f.metrics); mErr != nil {
				log.Warn().Err(mErr).Msg("buildctl.run metrics not written")
			}
		}
		return fail(stderr, err)

	case "plan":
		_, p, err := orch.Plan(f.manifest)
		if err != nil {
			return fail(stderr, err)
		}
		return fail(stderr, report.WritePlan(stdout, p))

	case "validate":
		m, _, err := orch.Plan(f.manifest)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "manifest ok: %s (type=%s)\n", m.Path, m.Contract.Type)
		return 0

	case "init":
		if err := manifest.WriteTemplate(f.manifest, f.kind, f.force); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "wrote %s manifest template to %s\n", f.kind, f.manifest)
		return 0

	default:
		fmt.Fprintf(stderr, "buildctl: unknown command %q\n", cmd)
		fmt.Fprint(stderr, usage)
		return 1
	}
}

// buildOptions applies flags to opts. Runner and Metrics set by the caller
// are kept.
func buildOptions(f cliFlags, opts build.Options, stderr io.Writer) build.Options {
	opts.Timeout = f.timeout
	if f.verbose && opts.Runner == nil {
		opts.Runner = tools.ExecRunner{Echo: stderr}
	}
	if f.metrics != "" && opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	return opts
}

func fail(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	code := report.ExitCode(err)
	log.Debug().Int("exit", code).Err(err).Msg("buildctl.run failed")
	fmt.Fprintf(stderr, "buildctl: %v\n", err)
	return code
}

func summaryStyles(w io.Writer) report.Styles {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return report.DefaultStyles()
	}
	return report.Plain()
}
