package walk

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/numtide/tsfmt/unit"
	"golang.org/x/sync/errgroup"
)

var errClosed = errors.New("reader closed")

// traversal runs a walk in the background and hands the units it finds to Read.
type traversal struct {
	eg      *errgroup.Group
	unitsCh chan *unit.Unit

	done     chan struct{}
	doneOnce sync.Once
}

func newTraversal() *traversal {
	return &traversal{
		eg:      &errgroup.Group{},
		unitsCh: make(chan *unit.Unit, BatchSize*runtime.NumCPU()),
		done:    make(chan struct{}),
	}
}

// start runs walk in the background. unitsCh is closed once walk returns.
func (t *traversal) start(walk func() error) {
	t.eg.Go(func() error {
		defer close(t.unitsCh)

		return walk()
	})
}

// send hands u to Read. Once the reader has been closed, u is released instead and errClosed is returned.
func (t *traversal) send(u *unit.Unit) error {
	select {
	case t.unitsCh <- u:
		return nil
	case <-t.done:
		if err := u.Close(); err != nil {
			return fmt.Errorf("failed to release %s: %w", u.RelPath, err)
		}

		return errClosed
	}
}

func (t *traversal) Read(ctx context.Context, units []*unit.Unit) (n int, err error) {
	return readUnits(ctx, t.unitsCh, units)
}

// Close stops the walk if it is still running and releases any unit which was never read.
func (t *traversal) Close() error {
	t.doneOnce.Do(func() {
		close(t.done)
	})

	err := t.eg.Wait()
	if errors.Is(err, errClosed) {
		err = nil
	}

	for u := range t.unitsCh {
		if closeErr := u.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to release %s: %w", u.RelPath, closeErr)
		}
	}

	return err
}
