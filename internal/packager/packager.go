// Package packager moves staged build artifacts into the output directory.
//
// Every artifact is copied to a temp file beside its destination and only
// renamed into place once all of them are staged, so a failed or cancelled
// build never mixes its files with those of a previous good build.
package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/contractbuild/internal/executor"
	"github.com/danmuck/contractbuild/internal/plan"
	"github.com/rs/zerolog/log"
)

var (
	ErrWriteFailure = errors.New("packager: write failure")
	ErrInvalidName  = errors.New("packager: invalid artifact name")
)

// PackagingError names the operation and path that failed.
type PackagingError struct {
	Op   string
	Path string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging failed: %s path=%s: %v", e.Op, e.Path, e.Err)
}

func (e *PackagingError) Is(target error) bool {
	return target == ErrWriteFailure
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

func writeFailure(op, path string, err error) error {
	return &PackagingError{Op: op, Path: path, Err: err}
}

// canonicalFiles are the names a build may own under the output dir. Any
// of them not produced by the current build is removed after assembly.
var canonicalFiles = []string{plan.ContractFile, plan.WebAppFile, plan.StateFile, plan.IndexFile}

type staged struct {
	tmp string
	dst string
}

// Assemble writes artifacts under outputDir by canonical name and returns
// the final paths in input order. Every artifact is staged beside its
// destination before the first rename, so an error or cancellation while
// staging leaves the previous build untouched.
func Assemble(ctx context.Context, artifacts []executor.Artifact, outputDir string) ([]string, error) {
	names := make([]string, 0, len(artifacts))
	seen := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		name, err := canonicalName(a)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q produced twice", ErrInvalidName, name)
		}
		seen[name] = true
		names = append(names, name)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, writeFailure("mkdir", outputDir, err)
	}

	pending := make([]staged, 0, len(artifacts))
	discard := func() {
		for _, st := range pending {
			os.Remove(st.tmp)
		}
	}
	for i, a := range artifacts {
		if err := ctx.Err(); err != nil {
			discard()
			return nil, err
		}
		dst := filepath.Join(outputDir, names[i])
		tmp, err := stageCopy(a.Path, dst)
		if err != nil {
			discard()
			return nil, err
		}
		pending = append(pending, staged{tmp: tmp, dst: dst})
	}
	if err := ctx.Err(); err != nil {
		discard()
		return nil, err
	}

	paths := make([]string, 0, len(pending))
	for i, st := range pending {
		if err := os.Rename(st.tmp, st.dst); err != nil {
			for _, rest := range pending[i:] {
				os.Remove(rest.tmp)
			}
			return paths, writeFailure("rename", st.dst, err)
		}
		log.Ctx(ctx).Debug().Str("artifact", names[i]).Str("path", st.dst).Msg("packager.Assemble wrote")
		paths = append(paths, st.dst)
	}

	if err := removeStale(outputDir, seen); err != nil {
		return paths, err
	}
	return paths, nil
}

// removeStale deletes canonical outputs of an earlier build that the
// current build no longer produces.
func removeStale(outputDir string, produced map[string]bool) error {
	for _, name := range canonicalFiles {
		if produced[name] {
			continue
		}
		path := filepath.Join(outputDir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return writeFailure("remove", path, err)
		}
	}
	return nil
}

func canonicalName(a executor.Artifact) (string, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = plan.FileName(a.Kind)
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, a.Name)
	}
	return name, nil
}

// stageCopy copies src to a synced temp file in dst's directory and
// returns the temp path.
func stageCopy(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", writeFailure("open", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", writeFailure("create", dst, err)
	}
	tmpPath := tmp.Name()
	fail := func(op string, err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", writeFailure(op, tmpPath, err)
	}

	if _, err := io.Copy(tmp, in); err != nil {
		return fail("copy", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", writeFailure("close", tmpPath, err)
	}
	return tmpPath, nil
}
