package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/numtide/tsfmt/build"
	"github.com/numtide/tsfmt/config"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// Path returns a unique local cache file path for the given root string, using its SHA-256 hash.
func Path(root string) (string, error) {
	digest := sha256.Sum256([]byte(root))

	name := hex.EncodeToString(digest[:])

	path, err := xdg.CacheFile(fmt.Sprintf("%s/eval-cache/%v.db", build.Name, name))
	if err != nil {
		return "", fmt.Errorf("could not resolve local path for the cache: %w", err)
	}

	return path, nil
}

// Open initialises and opens a Bolt database for the specified root path.
func Open(root string) (*bolt.DB, error) {
	path, err := Path(root)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db at %s: %w", path, err)
	}

	// ensure bucket exist
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := BucketUnits(tx)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return db, nil
}

// Remove deletes the cache db for root, if there is one.
func Remove(root string) error {
	path, err := Path(root)
	if err != nil {
		return err
	}

	// A process which already has the db open keeps working against the unlinked inode.
	if err = os.Remove(path); !(err == nil || os.IsNotExist(err)) {
		return fmt.Errorf("failed to remove cache db at %s: %w", path, err)
	}

	return nil
}

// Signature identifies a formatting configuration: the resolved options and the identity of the oracle.
// Entries recorded under a different signature are stale.
func Signature(opts *config.Options, oracleIdentity string) ([]byte, error) {
	b, err := msgpack.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	h := sha256.New()
	h.Write(b)
	h.Write([]byte(oracleIdentity))

	return h.Sum(nil), nil
}

// Digest returns the sha256 of contents.
func Digest(contents []byte) []byte {
	digest := sha256.Sum256(contents)

	return digest[:]
}
