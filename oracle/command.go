package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
	logwriter "github.com/numtide/tsfmt/internal/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

const (
	EnvOptions = "TSFMT_OPTIONS"
	EnvPath    = "TSFMT_PATH"
)

var (
	// ErrCommandNotFound is returned when the oracle command is not available.
	ErrCommandNotFound = errors.New("oracle command not found in PATH")
	// ErrCommandFailed is returned when the oracle process exits with an error.
	ErrCommandFailed = errors.New("oracle command failed")
	// ErrMalformedEdits is returned when the oracle output cannot be decoded into edits.
	ErrMalformedEdits = errors.New("oracle produced malformed edits")
)

// Command delegates edit computation to an external process.
//
// For each source the process receives the source on stdin, the resolved options as JSON in $TSFMT_OPTIONS and
// the unit name in $TSFMT_PATH. It must print a JSON array of {"start", "length", "newText"} objects, or
// nothing at all when no edits are required.
type Command struct {
	command    string
	executable string // path to the executable described by command
	args       []string
	workingDir string
	env        []string
	identity   string

	log *log.Logger
}

// NewCommand resolves the executable once; it is then reused for every source.
func NewCommand(root string, cfg config.Oracle, opts *config.Options) (*Command, error) {
	environ := os.Environ()

	executable, err := interp.LookPathDir(root, expand.ListEnviron(environ...), cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, cfg.Command)
	}

	encoded, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options for oracle %s: %w", cfg.Command, err)
	}

	info, err := os.Stat(executable)
	if err != nil {
		return nil, fmt.Errorf("failed to stat oracle executable %s: %w", executable, err)
	}

	return &Command{
		command:    cfg.Command,
		executable: executable,
		args:       cfg.Options,
		workingDir: root,
		env:        append(environ, EnvOptions+"="+string(encoded)),
		identity: fmt.Sprintf(
			"command %s %q size=%d mod=%d", executable, cfg.Options, info.Size(), info.ModTime().Unix(),
		),
		log: log.WithPrefix("oracle | " + cfg.Command),
	}, nil
}

// Executable returns the path to the executable defined by the configured command.
func (c *Command) Executable() string {
	return c.executable
}

func (c *Command) Identity() string {
	return c.identity
}

func (c *Command) ComputeEdits(ctx context.Context, name string, source []byte) ([]edit.Edit, error) {
	var stdout bytes.Buffer

	cmd := exec.CommandContext(ctx, c.executable, c.args...) //nolint:gosec
	// replace the default Cancel handler installed by CommandContext because it sends SIGKILL (-9).
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.Dir = c.workingDir
	cmd.Env = slices.Concat(c.env, []string{EnvPath + "=" + name})
	cmd.Stdin = bytes.NewReader(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &logwriter.Writer{Log: c.log}

	c.log.Debugf("executing: %s", cmd.String())

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrCommandFailed, c.command, name, err)
	}

	output := bytes.TrimSpace(stdout.Bytes())
	if len(output) == 0 {
		return nil, nil
	}

	var edits []edit.Edit
	if err := json.Unmarshal(output, &edits); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrMalformedEdits, c.command, name, err)
	}

	return edits, nil
}
