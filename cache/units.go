package cache

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

// ErrUpdatesStopped is returned by Update once writing to the database has failed.
var ErrUpdatesStopped = errors.New("cache updates have stopped")

type update struct {
	relPath string
	digest  []byte
}

// Cache remembers which units were left fully formatted under a given signature, so they can be skipped on the
// next run. Lookups are synchronous, updates are batched and written in the background until Close.
type Cache struct {
	db        *bolt.DB
	signature []byte
	batchSize int
	closeDB   bool

	log *log.Logger
	eg  *errgroup.Group

	updateCh chan update
	done     chan struct{}
}

// Fresh reports whether contents is exactly what was recorded for relPath under the current signature.
func (c *Cache) Fresh(relPath string, contents []byte) (bool, error) {
	fresh := false

	err := c.db.View(func(tx *bolt.Tx) error {
		bucket, err := BucketUnits(tx)
		if err != nil {
			return err
		}

		entry, err := bucket.Get(relPath)
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		fresh = bytes.Equal(entry.Signature, c.signature) && bytes.Equal(entry.Digest, Digest(contents))

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up cache entry for %s: %w", relPath, err)
	}

	return fresh, nil
}

// Update records contents as the formatted state of relPath.
func (c *Cache) Update(relPath string, contents []byte) error {
	select {
	case c.updateCh <- update{relPath: relPath, digest: Digest(contents)}:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %w", ErrUpdatesStopped, c.eg.Wait())
	}
}

// process writes pending updates to the database in batches.
func (c *Cache) process() error {
	batch := make([]update, 0, c.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		c.log.Debugf("flushing %d entries", len(batch))

		return c.db.Update(func(tx *bolt.Tx) error {
			bucket, err := BucketUnits(tx)
			if err != nil {
				return err
			}

			for _, u := range batch {
				entry := Entry{Signature: c.signature, Digest: u.digest}
				if err := bucket.Put(u.relPath, &entry); err != nil {
					return err
				}
			}

			return nil
		})
	}

	for u := range c.updateCh {
		batch = append(batch, u)
		if len(batch) == c.batchSize {
			if err := flush(); err != nil {
				return err
			}

			batch = batch[:0]
		}
	}

	// flush final partial batch
	return flush()
}

// Close waits for any pending updates to be written. The database is only closed if it was opened by Load.
func (c *Cache) Close() error {
	close(c.updateCh)

	err := c.eg.Wait()
	if err != nil {
		err = fmt.Errorf("failed to update cache: %w", err)
	}

	if c.closeDB {
		if closeErr := c.db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close cache db: %w", closeErr)
		}
	}

	return err
}

// New creates a Cache backed by db for the given signature.
func New(db *bolt.DB, signature []byte, batchSize int) *Cache {
	c := &Cache{
		db:        db,
		signature: signature,
		batchSize: batchSize,
		log:       log.WithPrefix("cache"),
		eg:        &errgroup.Group{},
		updateCh:  make(chan update, batchSize*runtime.NumCPU()),
		done:      make(chan struct{}),
	}

	c.eg.Go(func() error {
		defer close(c.done)

		return c.process()
	})

	return c
}

// Load opens the cache db for root and returns a Cache which owns it.
func Load(root string, signature []byte, batchSize int) (*Cache, error) {
	db, err := Open(root)
	if err != nil {
		return nil, err
	}

	c := New(db, signature, batchSize)
	c.closeDB = true

	return c, nil
}
