package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultBufferLimit = 10 << 20

var ErrInvalidBufferLimit = fmt.Errorf("buffer limit must not be negative")

// Config is the complete run configuration: the stage Params plus everything the runner needs around it.
type Config struct {
	Params `mapstructure:",squash" toml:",inline"`

	BufferLimit      int      `mapstructure:"buffer-limit" toml:"buffer-limit,omitempty"`
	ClearCache       bool     `mapstructure:"clear-cache" toml:"-"` // not allowed in config
	Excludes         []string `mapstructure:"excludes" toml:"excludes,omitempty"`
	FailOnChange     bool     `mapstructure:"fail-on-change" toml:"fail-on-change,omitempty"`
	Includes         []string `mapstructure:"includes" toml:"includes,omitempty"`
	NoCache          bool     `mapstructure:"no-cache" toml:"-"` // not allowed in config
	Quiet            bool     `mapstructure:"quiet" toml:"-"`
	Stdin            bool     `mapstructure:"stdin" toml:"-"` // not allowed in config
	TreeRoot         string   `mapstructure:"tree-root" toml:"tree-root,omitempty"`
	Verbose          uint8    `mapstructure:"verbose" toml:"verbose,omitempty"`
	Walk             string   `mapstructure:"walk" toml:"walk,omitempty"`
	WorkingDirectory string   `mapstructure:"working-dir" toml:"-"`

	Oracle Oracle `mapstructure:"oracle" toml:"oracle,omitempty"`
}

// Oracle describes an external process which computes edits. When Command is empty the built-in whitespace
// oracle is used.
type Oracle struct {
	// Command is the executable to invoke for every unit.
	Command string `mapstructure:"command" toml:"command,omitempty"`
	// Options are an optional list of args to be passed to Command.
	Options []string `mapstructure:"options" toml:"options,omitempty"`
}

// SetFlags appends our flags to the provided flag set.
// Flag names match the mapstructure tags in Config so viper can bind them directly.
func SetFlags(fs *pflag.FlagSet) {
	fs.Int(
		"buffer-limit", DefaultBufferLimit,
		"Files larger than this many bytes are streamed rather than buffered, and therefore rejected. "+
			"0 disables the limit. (env $TSFMT_BUFFER_LIMIT)",
	)
	fs.BoolP(
		"clear-cache", "c", false,
		"Reset the evaluation cache. (env $TSFMT_CLEAR_CACHE)",
	)
	fs.StringSlice(
		"excludes", nil,
		"Exclude files or directories matching the specified globs. (env $TSFMT_EXCLUDES)",
	)
	fs.Bool(
		"fail-on-change", false,
		"Exit with error if any changes were made. Useful for CI. (env $TSFMT_FAIL_ON_CHANGE)",
	)
	fs.StringSlice(
		"includes", nil,
		"Only format files matching the specified globs. (env $TSFMT_INCLUDES)",
	)
	fs.Bool(
		"no-cache", false,
		"Ignore the evaluation cache entirely. Useful for CI. (env $TSFMT_NO_CACHE)",
	)
	fs.BoolP(
		"quiet", "q", false,
		"Only log errors. (env $TSFMT_QUIET)",
	)
	fs.Bool(
		"stdin", false,
		"Format the content passed in via stdin and print the result to stdout.",
	)
	fs.String(
		"target", "",
		"The script target, one of <"+strings.Join(TargetNames(), "|")+">. (env $TSFMT_TARGET)",
	)
	fs.String(
		"tree-root", "",
		"The root directory from which tsfmt will start walking (defaults to the directory containing the "+
			"config file). (env $TSFMT_TREE_ROOT)",
	)
	fs.CountP(
		"verbose", "v",
		"Set the verbosity of logs e.g. -vv. (env $TSFMT_VERBOSE)",
	)
	fs.String(
		"walk", "auto",
		"The method used to traverse the files within the tree root. Currently supports "+
			"<auto|git|filesystem>. (env $TSFMT_WALK)",
	)
	fs.StringP(
		"working-dir", "C", ".",
		"Run as if tsfmt was started in the specified working directory. (env $TSFMT_WORKING_DIR)",
	)
}

// NewViper creates a Viper instance pre-configured with the following options:
// * TOML config type
// * automatic env enabled
// * `TSFMT_` env prefix for environment variables
// * replacement of `-` and `.` with `_` when mapping flags to env e.g. `options.tab-size` => `TSFMT_OPTIONS_TAB_SIZE`.
func NewViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigType("toml")

	v.SetEnvPrefix("tsfmt")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// AutomaticEnv only applies to keys viper already knows about, and the option knobs have neither a flag nor
	// a default
	for _, key := range OptionKeys() {
		if err := v.BindEnv("options." + key); err != nil {
			return nil, fmt.Errorf("failed to bind env for options.%s: %w", key, err)
		}
	}

	// unset some env variables that we don't want automatically applied
	if err := os.Unsetenv("TSFMT_STDIN"); err != nil {
		return nil, fmt.Errorf("failed to unset TSFMT_STDIN: %w", err)
	}

	return v, nil
}

// FromViper takes a viper instance and produces a Config instance.
// The target is validated here so that a bad value fails before any unit is read.
func FromViper(v *viper.Viper) (*Config, error) {
	configReset := map[string]any{
		"clear-cache": false,
		"no-cache":    false,
		"stdin":       false,
		"working-dir": ".",
	}

	// reset certain values which are not allowed to be specified in the config file
	if err := v.MergeConfigMap(configReset); err != nil {
		return nil, fmt.Errorf("failed to overwrite config values: %w", err)
	}

	var err error

	cfg := &Config{}

	if err = v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err = cfg.Params.Resolve(); err != nil {
		return nil, err
	}

	cfg.WorkingDirectory, err = filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for working directory: %w", err)
	}

	if cfg.Stdin {
		cfg.Walk = "stdin"
	}

	if cfg.Walk == "" {
		cfg.Walk = "auto"
	}

	if cfg.TreeRoot == "" {
		if used := v.ConfigFileUsed(); used != "" {
			cfg.TreeRoot = filepath.Dir(used)
		} else {
			cfg.TreeRoot = cfg.WorkingDirectory
		}
	}

	if cfg.TreeRoot, err = filepath.Abs(cfg.TreeRoot); err != nil {
		return nil, fmt.Errorf("failed to get absolute path for tree root: %w", err)
	}

	if cfg.BufferLimit < 0 {
		return nil, ErrInvalidBufferLimit
	}

	l := log.WithPrefix("config")
	l.Debugf("tree root = %s", cfg.TreeRoot)
	l.Debugf("buffer limit = %d", cfg.BufferLimit)

	return cfg, nil
}

func FindUp(searchDir string, fileNames ...string) (path string, dir string, err error) {
	for _, dir := range eachDir(searchDir) {
		for _, f := range fileNames {
			path := filepath.Join(dir, f)
			if fileExists(path) {
				return path, dir, nil
			}
		}
	}

	return "", "", fmt.Errorf("could not find %s in %s", fileNames, searchDir)
}

func eachDir(path string) (paths []string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}

	paths = []string{path}

	for {
		parent := filepath.Dir(path)
		if parent == path {
			return
		}

		paths = append(paths, parent)
		path = parent
	}
}

func fileExists(path string) bool {
	// Some broken filesystems like SSHFS return file information on stat() but
	// then cannot open the file. So we use os.Open.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return false
	}

	return fi.Mode().IsRegular()
}
