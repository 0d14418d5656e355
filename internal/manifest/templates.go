package manifest

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch ContractType(strings.ToLower(strings.TrimSpace(kind))) {
	case ContractTypeStandard:
		return standardTemplate, nil
	case ContractTypeWebapp:
		return webappTemplate, nil
	default:
		return "", fmt.Errorf("unknown manifest kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("manifest already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

const standardTemplate = `[contract]
type = "standard"
lang = "rust"
# output_dir = "build/locutus"

[state]
`

const webappTemplate = `[contract]
type = "webapp"
lang = "rust"
# output_dir = "build/locutus"

[webapp]
lang = "typescript"
# metadata = "metadata.bin"

[webapp.typescript]
webpack = true

[webapp.state-sources]
source_dirs = ["dist"]

[webapp.dependencies]
`
