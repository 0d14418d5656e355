package executor

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

type archiveEntry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	Path string
}

// collect resolves the source dirs and files against base. Directory
// contents land at the archive root; listed files keep their base name.
func (s stateSources) collect(base string) ([]archiveEntry, error) {
	seen := make(map[string]string)
	add := func(name, path string) error {
		if prev, ok := seen[name]; ok && prev != path {
			return fmt.Errorf("%w: archive entry %q provided by %s and %s", ErrInvalidInput, name, prev, path)
		}
		seen[name] = path
		return nil
	}

	for _, rel := range s.Dirs {
		root := resolveUnder(base, rel)
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("state source dir %q: %w", rel, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: state source %q is not a directory", ErrInvalidInput, rel)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			name, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			return add(filepath.ToSlash(name), path)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, rel := range s.Files {
		path := resolveUnder(base, rel)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("state source file %q: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: state source %q is not a regular file", ErrInvalidInput, rel)
		}
		if err := add(filepath.Base(path), path); err != nil {
			return nil, err
		}
	}

	entries := make([]archiveEntry, 0, len(seen))
	for name, path := range seen {
		entries = append(entries, archiveEntry{Name: name, Path: path})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func resolveUnder(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, filepath.FromSlash(rel))
}

func writeArchiveFile(ctx context.Context, path string, entries []archiveEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeArchive(ctx, f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeArchive writes a tar.gz whose bytes depend only on entry names and
// contents: sorted order, fixed mode, zero owner and epoch mtimes.
func writeArchive(ctx context.Context, w io.Writer, entries []archiveEntry) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)
	epoch := time.Unix(0, 0).UTC()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     strings.TrimPrefix(entry.Name, "/"),
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  epoch,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}
