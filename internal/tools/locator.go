package tools

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrToolMissing = errors.New("tools: executable not found")

const defaultLocatorSize = 32

// Locator resolves executables on PATH. Successful lookups are cached;
// misses are always retried so a toolchain installed mid-session is found.
type Locator struct {
	lookPath func(string) (string, error)
	cache    *lru.Cache[string, string]
}

// NewLocator returns a Locator backed by exec.LookPath.
func NewLocator() *Locator {
	return newLocator(exec.LookPath)
}

func newLocator(lookPath func(string) (string, error)) *Locator {
	cache, err := lru.New[string, string](defaultLocatorSize)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Locator{lookPath: lookPath, cache: cache}
}

// Find returns the absolute path of name or an error wrapping ErrToolMissing.
func (l *Locator) Find(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrToolMissing)
	}
	if path, ok := l.cache.Get(name); ok {
		return path, nil
	}
	path, err := l.lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolMissing, name, err)
	}
	l.cache.Add(name, path)
	return path, nil
}
