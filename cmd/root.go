package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/numtide/tsfmt/build"
	"github.com/numtide/tsfmt/cmd/format"
	_init "github.com/numtide/tsfmt/cmd/init"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFiles are the names searched for, in order, when no config file is given explicitly.
var ConfigFiles = []string{"tsfmt.toml", ".tsfmt.toml"}

func NewRoot() (*cobra.Command, *stats.Stats) {
	var (
		tsfmtInit  bool
		configFile string
		completion string
	)

	// create a viper instance for reading in config
	v, err := config.NewViper()
	if err != nil {
		cobra.CheckErr(fmt.Errorf("failed to create viper instance: %w", err))
	}

	// create a new stats instance
	statz := stats.New()

	// create our root command
	cmd := &cobra.Command{
		Use:     build.Name + " <paths...>",
		Short:   "Normalise the formatting of TypeScript sources",
		Version: build.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(v, statz, cmd, args)
		},
	}

	// update version template
	cmd.SetVersionTemplate(build.Name + " {{.Version}}\n")

	fs := cmd.Flags()

	// add our config flags to the command's flag set
	config.SetFlags(fs)

	// add a couple of special flags which don't have a corresponding entry in tsfmt.toml
	fs.StringVar(
		&configFile, "config-file", "",
		"Load the config file from the given path (defaults to searching upwards for tsfmt.toml or "+
			".tsfmt.toml).",
	)
	fs.BoolVarP(
		&tsfmtInit, "init", "i", false,
		"Create a tsfmt.toml file in the current directory.",
	)
	fs.StringVar(
		&completion, "completion", "",
		"Print a shell completion script for one of <bash|zsh|fish>.",
	)

	// bind our command's flags to viper
	if err := v.BindPFlags(fs); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to bind global config to viper: %w", err))
	}

	return cmd, statz
}

func runE(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	// change working directory if required
	workingDir, err := filepath.Abs(v.GetString("working-dir"))
	if err != nil {
		return fmt.Errorf("failed to get absolute path for working directory: %w", err)
	} else if err = os.Chdir(workingDir); err != nil {
		return fmt.Errorf("failed to change working directory: %w", err)
	}

	if shell, err := flags.GetString("completion"); err != nil {
		return fmt.Errorf("failed to read completion flag: %w", err)
	} else if shell != "" {
		return generateShellCompletions(cmd, shell, cmd.OutOrStdout())
	}

	// check if we are running the init command
	if init, err := flags.GetBool("init"); err != nil {
		return fmt.Errorf("failed to read init flag: %w", err)
	} else if init {
		if err := _init.Run(workingDir, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to run init command: %w", err)
		}

		return nil
	}

	// use the path specified by the flag
	configFile, err := flags.GetString("config-file")
	if err != nil {
		return fmt.Errorf("failed to read config-file flag: %w", err)
	}

	// fallback to env
	if configFile == "" {
		configFile = os.Getenv("TSFMT_CONFIG")
	}

	// search up from the working directory
	if configFile == "" {
		configFile, _, err = config.FindUp(workingDir, ConfigFiles...)
		if err != nil {
			// without a config file every option takes its default
			log.Debugf("no config file found: %v", err)
		}
	}

	if configFile != "" {
		log.Debugf("using config file: %s", configFile)

		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			cmd.SilenceUsage = true

			return fmt.Errorf("failed to read config file '%s': %w", configFile, err)
		}
	}

	// configure logging
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	if v.GetBool("quiet") {
		// if quiet, we only log errors
		log.SetLevel(log.ErrorLevel)
	} else {
		// otherwise, the verbose flag controls the log level
		switch v.GetInt("verbose") {
		case 0:
			log.SetLevel(log.WarnLevel)
		case 1:
			log.SetLevel(log.InfoLevel)
		default:
			log.SetLevel(log.DebugLevel)
		}
	}

	// format
	return format.Run(v, statz, cmd, args) //nolint:wrapcheck
}
