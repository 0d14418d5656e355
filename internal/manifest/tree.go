package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Tree is the untyped key/value form of a manifest: tables are
// map[string]any, arrays []any, scalars string/int64/float64/bool.
type Tree map[string]any

// LoadTree reads and decodes a TOML file.
func LoadTree(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	return DecodeTree(data)
}

// DecodeTree decodes TOML text. A syntax error is reported as a one-item Errors.
func DecodeTree(data []byte) (Tree, error) {
	raw := map[string]any{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, Errors{{Kind: ErrSyntax, Detail: err.Error()}}
	}
	return Tree(raw), nil
}
