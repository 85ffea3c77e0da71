package format

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/numtide/tsfmt/cache"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/format"
	"github.com/numtide/tsfmt/oracle"
	"github.com/numtide/tsfmt/stage"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/walk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Run(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, paths []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// for stdin, the single path names the unit for matching and for the oracle
	if cfg.Stdin && len(paths) != 1 {
		return errors.New("exactly one path should be specified when using the --stdin flag")
	}

	walkType, err := walk.TypeString(cfg.Walk)
	if err != nil {
		return fmt.Errorf("invalid walk type: %w", err)
	}

	// build the stage, failing early on a bad target or a missing oracle command
	s, err := stage.New(&cfg.Params, oracle.New(cfg.TreeRoot, cfg.Oracle))
	if err != nil {
		return fmt.Errorf("failed to create stage: %w", err)
	}

	log.Debugf("formatting with %s", oracle.Identity(s.Oracle()))

	if cfg.ClearCache {
		if err = cache.Remove(cfg.TreeRoot); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	var unitCache *cache.Cache

	// stdin output always goes to stdout, so there is nothing worth caching
	if !(cfg.NoCache || cfg.Stdin) {
		unitCache, err = openCache(cfg.TreeRoot, s)
		if err != nil {
			// if we can't open the cache, we log a warning and fallback to no cache
			log.Warnf("failed to open cache: %v", err)
		}
	}

	var writer format.Writer
	if cfg.Stdin {
		writer = format.NewStreamWriter(os.Stdout)
	} else {
		writer = format.NewFilesystemWriter(osfs.New(cfg.TreeRoot))
	}

	reader, err := walk.NewCompositeReader(walkType, cfg.TreeRoot, paths, cfg.BufferLimit, statz)
	if err != nil {
		return fmt.Errorf("failed to create walker: %w", err)
	}

	runner, err := format.NewRunner(cfg, s, unitCache, writer, statz)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	// create an app context and listen for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		cancel()
	}()

	runErr := runner.Run(ctx, reader)

	if unitCache != nil {
		if err = unitCache.Close(); err != nil {
			log.Errorf("failed to update cache: %v", err)
		}
	}

	// stops any traversal the runner abandoned
	if err = reader.Close(); err != nil {
		if runErr == nil {
			return fmt.Errorf("failed to close reader: %w", err)
		}

		log.Errorf("failed to close reader: %v", err)
	}

	// print stats to stdout unless we are processing stdin and printing the results to stdout
	if !cfg.Stdin {
		statz.Print(os.Stdout)
	}

	return runErr //nolint:wrapcheck
}

// openCache opens the cache for root, keyed by the signature of the stage's options and oracle.
func openCache(root string, s *stage.Stage) (*cache.Cache, error) {
	signature, err := cache.Signature(s.Options(), oracle.Identity(s.Oracle()))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return cache.Load(root, signature, format.BatchSize) //nolint:wrapcheck
}
