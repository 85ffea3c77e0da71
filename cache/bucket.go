package cache

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const bucketUnits = "units"

var ErrKeyNotFound = errors.New("key not found")

// Entry records how a unit looked the last time it was left fully formatted.
type Entry struct {
	// Signature identifies the options and oracle the unit was formatted with.
	Signature []byte `msgpack:"s"`
	// Digest is the sha256 of the formatted contents.
	Digest []byte `msgpack:"d"`
}

type Bucket[V any] struct {
	bucket *bolt.Bucket
}

func (b *Bucket[V]) Size() int {
	return b.bucket.Stats().KeyN
}

func (b *Bucket[V]) Get(key string) (*V, error) {
	bytes := b.bucket.Get([]byte(key))
	if bytes == nil {
		return nil, ErrKeyNotFound
	}

	var value V
	if err := msgpack.Unmarshal(bytes, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry for key '%v': %w", key, err)
	}

	return &value, nil
}

func (b *Bucket[V]) Put(key string, value *V) error {
	if bytes, err := msgpack.Marshal(value); err != nil {
		return fmt.Errorf("failed to marshal cache entry for key %v: %w", key, err)
	} else if err = b.bucket.Put([]byte(key), bytes); err != nil {
		return fmt.Errorf("failed to put cache entry for key %v: %w", key, err)
	}

	return nil
}

func (b *Bucket[V]) Delete(key string) error {
	return b.bucket.Delete([]byte(key)) //nolint:wrapcheck
}

func (b *Bucket[V]) DeleteAll() error {
	// a cursor can skip keys when deleting while advancing, so always restart from the first key
	c := b.bucket.Cursor()
	for k, v := c.First(); !(k == nil && v == nil); k, v = c.First() {
		if err := c.Delete(); err != nil {
			return fmt.Errorf("failed to remove cache entry for key %s: %w", string(k), err)
		}
	}

	return nil
}

func (b *Bucket[V]) ForEach(f func(string, *V) error) error {
	return b.bucket.ForEach(func(key, bytes []byte) error { //nolint:wrapcheck
		var value V
		if err := msgpack.Unmarshal(bytes, &value); err != nil {
			return fmt.Errorf("failed to unmarshal cache entry for key '%v': %w", key, err)
		}

		return f(string(key), &value)
	})
}

// BucketUnits returns the bucket of unit entries, keyed by relative path. It is created if the transaction is
// writable.
func BucketUnits(tx *bolt.Tx) (*Bucket[Entry], error) {
	var (
		err error
		b   *bolt.Bucket
	)

	if tx.Writable() {
		b, err = tx.CreateBucketIfNotExists([]byte(bucketUnits))
	} else {
		b = tx.Bucket([]byte(bucketUnits))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get/create bucket %s: %w", bucketUnits, err)
	} else if b == nil {
		return nil, fmt.Errorf("bucket %s does not exist", bucketUnits)
	}

	return &Bucket[Entry]{b}, nil
}
