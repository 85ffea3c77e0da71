package init

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// We embed the sample toml file for use with the init flag.
//
//go:embed init.toml
var initBytes []byte

const ConfigFile = "tsfmt.toml"

// Run writes the sample config into dir, refusing to overwrite an existing one.
func Run(dir string, out io.Writer) error {
	path := filepath.Join(dir, ConfigFile)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists", path)
	} else if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err = f.Write(initBytes); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(out, "Generated %s. Now it's your turn to edit it.\n", ConfigFile)

	return nil
}
