package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/contractbuild/internal/manifest"
	"github.com/danmuck/contractbuild/internal/plan"
)

// stateExecutor merges upstream artifacts and [state] entries into the
// packaged state blob and the package index.
type stateExecutor struct {
	step     plan.Step
	env      Env
	contract *Artifact
	webapp   *Artifact
	blob     []byte
	index    []byte
}

func (e *stateExecutor) Kind() plan.StepKind { return plan.KindPackageState }

func (e *stateExecutor) Prepare(ctx context.Context) error {
	for _, dep := range e.step.DependsOn {
		a, ok := e.env.upstream(dep)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUpstreamMissing, dep)
		}
		switch dep {
		case plan.KindCompileContract:
			e.contract = &a
		case plan.KindBuildWebApp:
			e.webapp = &a
		}
	}
	if e.step.State.ContractType == manifest.ContractTypeWebapp && e.webapp == nil {
		return fmt.Errorf("%w: webapp contract without %s output", ErrUpstreamMissing, plan.KindBuildWebApp)
	}
	return nil
}

func (e *stateExecutor) Run(ctx context.Context) error {
	var meta, web []byte
	if e.webapp != nil {
		data, err := os.ReadFile(e.webapp.Path)
		if err != nil {
			return fmt.Errorf("read webapp archive: %w", err)
		}
		meta = e.webapp.Metadata
		web = data
	} else {
		data, err := encodeEntries(e.step.State.Entries)
		if err != nil {
			return err
		}
		meta = data
	}
	e.blob = EncodeState(meta, web)

	index, err := e.buildIndex()
	if err != nil {
		return err
	}
	e.index = index
	return nil
}

func (e *stateExecutor) Collect(ctx context.Context) ([]Artifact, error) {
	dir, err := e.env.stepDir(plan.KindPackageState)
	if err != nil {
		return nil, err
	}
	statePath := filepath.Join(dir, plan.StateFile)
	if err := os.WriteFile(statePath, e.blob, 0o644); err != nil {
		return nil, err
	}
	indexPath := filepath.Join(dir, plan.IndexFile)
	if err := os.WriteFile(indexPath, e.index, 0o644); err != nil {
		return nil, err
	}
	return []Artifact{
		{Kind: plan.KindPackageState, Name: plan.StateFile, Path: statePath},
		{Kind: plan.KindPackageState, Name: plan.IndexFile, Path: indexPath},
	}, nil
}

// EncodeState lays out a packaged state:
//
//	u64be(len(meta)) | meta | u64be(len(web)) | web
func EncodeState(meta, web []byte) []byte {
	out := make([]byte, 0, 16+len(meta)+len(web))
	out = binary.BigEndian.AppendUint64(out, uint64(len(meta)))
	out = append(out, meta...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(web)))
	out = append(out, web...)
	return out
}

// DecodeState splits a blob written by EncodeState.
func DecodeState(blob []byte) (meta, web []byte, err error) {
	r := bytes.NewReader(blob)
	meta, err = readSection(r)
	if err != nil {
		return nil, nil, fmt.Errorf("state metadata: %w", err)
	}
	web, err = readSection(r)
	if err != nil {
		return nil, nil, fmt.Errorf("state web: %w", err)
	}
	if r.Len() != 0 {
		return nil, nil, fmt.Errorf("state blob has %d trailing bytes", r.Len())
	}
	return meta, web, nil
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encodeEntries renders [state] entries as JSON with sorted keys. No
// entries encode to zero bytes.
func encodeEntries(entries map[string]any) ([]byte, error) {
	if len(entries) == 0 {
		return []byte{}, nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: encode [state] entries: %v", ErrInvalidInput, err)
	}
	return data, nil
}

type packageIndex struct {
	ContractType string         `toml:"contract_type"`
	Artifacts    []indexEntry   `toml:"artifact"`
	State        map[string]any `toml:"state,omitempty"`
	Dependencies map[string]any `toml:"dependencies,omitempty"`
}

type indexEntry struct {
	Name   string `toml:"name"`
	Kind   string `toml:"kind"`
	Size   int64  `toml:"size"`
	SHA256 string `toml:"sha256"`
}

func (e *stateExecutor) buildIndex() ([]byte, error) {
	idx := packageIndex{
		ContractType: string(e.step.State.ContractType),
		State:        e.step.State.Entries,
		Dependencies: e.step.State.Dependencies,
	}
	for _, a := range []*Artifact{e.contract, e.webapp} {
		if a == nil {
			continue
		}
		entry, err := indexFile(a.Name, a.Kind, a.Path)
		if err != nil {
			return nil, err
		}
		idx.Artifacts = append(idx.Artifacts, entry)
	}
	sum := sha256.Sum256(e.blob)
	idx.Artifacts = append(idx.Artifacts, indexEntry{
		Name:   plan.StateFile,
		Kind:   string(plan.KindPackageState),
		Size:   int64(len(e.blob)),
		SHA256: hex.EncodeToString(sum[:]),
	})
	sort.Slice(idx.Artifacts, func(i, j int) bool {
		return idx.Artifacts[i].Name < idx.Artifacts[j].Name
	})

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(idx); err != nil {
		return nil, fmt.Errorf("encode package index: %w", err)
	}
	return buf.Bytes(), nil
}

func indexFile(name string, kind plan.StepKind, path string) (indexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return indexEntry{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return indexEntry{}, err
	}
	return indexEntry{
		Name:   name,
		Kind:   string(kind),
		Size:   n,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
