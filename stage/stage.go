// Package stage exposes the formatting of a single unit as a reusable pipeline stage.
package stage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/numtide/tsfmt/build"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
	"github.com/numtide/tsfmt/oracle"
	"github.com/numtide/tsfmt/unit"
)

// Stage formats buffer-backed units and rejects stream-backed ones.
//
// Options and the oracle are fixed at construction and shared, read-only, by every unit passing through.
// A Stage processes one unit at a time; independent stages share nothing.
type Stage struct {
	name    string
	options *config.Options
	oracle  oracle.Oracle

	log *log.Logger
}

// New resolves params and builds the oracle once. A nil params means all defaults.
// An unknown target fails here, before any unit has been accepted.
func New(params *config.Params, factory oracle.Factory) (*Stage, error) {
	options, err := params.Resolve()
	if err != nil {
		return nil, err
	}

	o, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise oracle: %w", err)
	}

	return &Stage{
		name:    build.Name,
		options: options,
		oracle:  o,
		log:     log.WithPrefix("stage"),
	}, nil
}

// Name returns the identity the stage attaches to its errors.
func (s *Stage) Name() string {
	return s.name
}

// Options returns the resolved options. Callers must not modify them.
func (s *Stage) Options() *config.Options {
	return s.options
}

func (s *Stage) Oracle() oracle.Oracle {
	return s.oracle
}

// Transform formats u in place.
//
// A stream-backed unit is left untouched and an *UnsupportedStreamError returned. Errors from the oracle are
// returned as they are, in which case the unit is also left untouched.
func (s *Stage) Transform(ctx context.Context, u *unit.Unit) error {
	contents := u.Contents()

	if contents.Kind() == unit.KindStream {
		return &UnsupportedStreamError{Plugin: s.name, Path: u.Path}
	}

	source, err := contents.Bytes()
	if err != nil {
		return err
	}

	edits, err := s.oracle.ComputeEdits(ctx, filepath.Base(u.Path), source)
	if err != nil {
		return err
	}

	if err = edit.Validate(len(source), edits); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidEdits, u.Path, err)
	}

	s.log.Debugf("applying %d edit(s) to %s", len(edits), u.Path)

	u.SetBuffer(edit.Apply(source, edits))

	return nil
}

// Run transforms every unit received on in, forwarding it to out on success or sending the error to errs
// otherwise. Each unit results in exactly one of the two.
//
// Run returns nil once in is closed, or the context error if ctx is cancelled first. It does not close out or
// errs.
func (s *Stage) Run(ctx context.Context, in <-chan *unit.Unit, out chan<- *unit.Unit, errs chan<- error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-in:
			if !ok {
				return nil
			}

			if err := s.Transform(ctx, u); err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case errs <- err:
				}

				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- u:
			}
		}
	}
}
