package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/numtide/tsfmt/cache"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/matcher"
	"github.com/numtide/tsfmt/stage"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/unit"
	"github.com/numtide/tsfmt/walk"
	"golang.org/x/sync/errgroup"
)

const BatchSize = 1024

var (
	ErrFailOnChange       = errors.New("unexpected changes detected, --fail-on-change is enabled")
	ErrFormattingFailures = errors.New("formatting failures detected")
)

// task is a unit which has been handed to the stage, along with its contents at that point.
type task struct {
	unit     *unit.Unit
	original []byte
}

// Runner feeds units from a walk.Reader through a stage, writing back any which change.
type Runner struct {
	stage  *stage.Stage
	match  matcher.MatchFn
	cache  *cache.Cache
	writer Writer
	stats  *stats.Stats

	// passthrough writes every unit, changed or not, as stdin processing expects the result on stdout
	passthrough  bool
	failOnChange bool

	log *log.Logger

	failures int
}

// NewRunner creates a Runner. The cache may be nil, in which case every matched unit is formatted.
func NewRunner(
	cfg *config.Config,
	s *stage.Stage,
	c *cache.Cache,
	w Writer,
	statz *stats.Stats,
) (*Runner, error) {
	match, err := matcher.New(cfg.Includes, cfg.Excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile includes and excludes: %w", err)
	}

	return &Runner{
		stage:        s,
		match:        match,
		cache:        c,
		writer:       w,
		stats:        statz,
		passthrough:  cfg.Stdin,
		failOnChange: cfg.FailOnChange,
		log:          log.WithPrefix("format"),
	}, nil
}

// Run processes everything reader produces. It does not close reader.
//
// Rejected streams are reported and counted but do not fail the run. Any other formatting error is logged and the
// run carries on, returning ErrFormattingFailures once every unit has been processed.
func (r *Runner) Run(ctx context.Context, reader walk.Reader) error {
	eg, ctx := errgroup.WithContext(ctx)

	unitsCh := make(chan *unit.Unit, BatchSize)

	// The stage produces exactly one result per unit, in the order received, and blocks until each result is
	// taken. Results are therefore paired with their task by position.
	inflightCh := make(chan *task, cap(unitsCh)+2)

	formattedCh := make(chan *unit.Unit)
	errCh := make(chan error)

	r.failures = 0

	// start concurrent processing tasks in reverse order
	eg.Go(func() error {
		return r.collect(ctx, inflightCh, formattedCh, errCh)
	})

	eg.Go(func() error {
		defer func() {
			close(formattedCh)
			close(errCh)
		}()

		return r.stage.Run(ctx, unitsCh, formattedCh, errCh) //nolint:wrapcheck
	})

	eg.Go(func() error {
		defer close(unitsCh)

		return r.read(ctx, reader, inflightCh, unitsCh)
	})

	if err := eg.Wait(); err != nil {
		return err //nolint:wrapcheck
	}

	if r.failures > 0 {
		return fmt.Errorf("%w: %d unit(s) could not be formatted", ErrFormattingFailures, r.failures)
	}

	if r.failOnChange && r.stats.Value(stats.Changed) != 0 {
		return ErrFailOnChange
	}

	return nil
}

func (r *Runner) read(
	ctx context.Context,
	reader walk.Reader,
	inflightCh chan<- *task,
	unitsCh chan<- *unit.Unit,
) error {
	for {
		units := make([]*unit.Unit, BatchSize)

		n, err := reader.Read(ctx, units)

		for _, u := range units[:n] {
			if submitErr := r.submit(ctx, u, inflightCh, unitsCh); submitErr != nil {
				return submitErr
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read units: %w", err)
		}
	}
}

// submit hands u to the stage, unless it is unwanted or already formatted.
func (r *Runner) submit(
	ctx context.Context,
	u *unit.Unit,
	inflightCh chan<- *task,
	unitsCh chan<- *unit.Unit,
) error {
	result, err := r.match(u)
	if err != nil {
		return fmt.Errorf("failed to match %s: %w", u.RelPath, err)
	}

	if result != matcher.Wanted {
		r.log.Debugf("path did not match includes and excludes: %s", u.RelPath)

		return r.skip(u)
	}

	r.stats.Add(stats.Matched, 1)

	var original []byte

	if u.IsBuffer() {
		if original, err = u.Contents().Bytes(); err != nil {
			return err //nolint:wrapcheck
		}

		if r.cache != nil {
			fresh, err := r.cache.Fresh(u.RelPath, original)
			if err != nil {
				return err //nolint:wrapcheck
			} else if fresh {
				r.log.Debugf("path is unchanged since it was last formatted: %s", u.RelPath)
				r.stats.Add(stats.Cached, 1)

				return r.skip(u)
			}
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case inflightCh <- &task{unit: u, original: original}:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case unitsCh <- u:
	}

	return nil
}

// skip releases a unit which will not be formatted.
func (r *Runner) skip(u *unit.Unit) error {
	if r.passthrough && u.IsBuffer() {
		if err := r.writer.Write(u); err != nil {
			return err //nolint:wrapcheck
		}
	}

	if err := u.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", u.RelPath, err)
	}

	return nil
}

func (r *Runner) collect(
	ctx context.Context,
	inflightCh <-chan *task,
	formattedCh <-chan *unit.Unit,
	errCh <-chan error,
) error {
	next := func() (*task, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case t := <-inflightCh:
			return t, nil
		}
	}

	for formattedCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-formattedCh:
			if !ok {
				formattedCh = nil

				continue
			}

			t, err := next()
			if err != nil {
				return err
			} else if t.unit != u {
				return fmt.Errorf("received %s from the stage but expected %s", u.RelPath, t.unit.RelPath)
			}

			if err = r.formatted(t); err != nil {
				return err
			}

		case stageErr, ok := <-errCh:
			if !ok {
				errCh = nil

				continue
			}

			t, err := next()
			if err != nil {
				return err
			}

			if err = r.failed(t, stageErr); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Runner) formatted(t *task) error {
	u := t.unit

	r.stats.Add(stats.Formatted, 1)

	contents, err := u.Contents().Bytes()
	if err != nil {
		return err //nolint:wrapcheck
	}

	changed := !bytes.Equal(t.original, contents)

	if changed {
		r.stats.Add(stats.Changed, 1)

		logMethod := r.log.Debug
		if r.failOnChange {
			// surface the changed unit more obviously
			logMethod = r.log.Error
		}

		logMethod(
			"unit has changed",
			"path", u.RelPath,
			"prev_size", len(t.original),
			"current_size", len(contents),
		)
	}

	if changed || r.passthrough {
		if err = r.writer.Write(u); err != nil {
			return err //nolint:wrapcheck
		}
	}

	if r.cache != nil {
		if err = r.cache.Update(u.RelPath, contents); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func (r *Runner) failed(t *task, stageErr error) error {
	u := t.unit

	if errors.Is(stageErr, stage.ErrUnsupportedStream) {
		r.stats.Add(stats.Rejected, 1)
		r.log.Warn("unit was not formatted", "path", u.RelPath, "err", stageErr)
	} else {
		r.stats.Add(stats.Failed, 1)
		r.log.Error("failed to format unit", "path", u.RelPath, "err", stageErr)

		r.failures++
	}

	return r.skip(u)
}
