package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/unit"
)

type Type int

const (
	Auto Type = iota
	Stdin
	Filesystem
	Git

	BatchSize = 1024
)

var ErrUnknownType = errors.New("unknown walk type")

var typeNames = []string{"auto", "stdin", "filesystem", "git"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}

	return typeNames[t]
}

// TypeString retrieves a Type from its name.
func TypeString(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownType, s)
}

// Reader is an interface for reading units.
// Read fills units and returns how many it wrote, returning io.EOF once the reader is exhausted.
type Reader interface {
	Read(ctx context.Context, units []*unit.Unit) (n int, err error)
	Close() error
}

// CompositeReader combines multiple Readers into one.
// It iterates over the given readers, reading each until completion.
type CompositeReader struct {
	idx     int
	current Reader
	readers []Reader
}

func (c *CompositeReader) Read(ctx context.Context, units []*unit.Unit) (n int, err error) {
	if c.current == nil {
		// check if we have exhausted all the readers
		if c.idx >= len(c.readers) {
			return 0, io.EOF
		}

		c.current = c.readers[c.idx]
		c.idx++
	}

	n, err = c.current.Read(ctx, units)

	if errors.Is(err, io.EOF) {
		// move onto the next reader on the following call
		err = nil
		c.current = nil
	} else if err != nil {
		err = fmt.Errorf("failed to read from current reader: %w", err)
	}

	return n, err
}

// Close closes every reader, including those which were never read from.
func (c *CompositeReader) Close() error {
	var err error

	for _, reader := range c.readers {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close reader: %w", closeErr)
		}
	}

	return err
}

//nolint:ireturn
func NewReader(
	walkType Type,
	root string,
	path string,
	bufferLimit int,
	statz *stats.Stats,
) (Reader, error) {
	switch walkType {
	case Auto:
		// try git first and fall back to a plain filesystem walk
		reader, err := NewReader(Git, root, path, bufferLimit, statz)
		if err != nil {
			log.Debugf("falling back to a filesystem walk: %v", err)

			reader, err = NewReader(Filesystem, root, path, bufferLimit, statz)
		}

		return reader, err
	case Stdin:
		return nil, errors.New("stdin walk type is not supported")
	case Filesystem:
		return NewFilesystemReader(root, path, bufferLimit, statz), nil
	case Git:
		return NewGitReader(root, path, bufferLimit, statz)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, walkType)
	}
}

// NewCompositeReader returns a composite reader for the `root` and all `paths`.
//
//nolint:ireturn
func NewCompositeReader(
	walkType Type,
	root string,
	paths []string,
	bufferLimit int,
	statz *stats.Stats,
) (Reader, error) {
	root, err := resolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("error resolving path %s: %w", root, err)
	}

	// stdin has nothing to traverse, the single path only names the unit
	if walkType == Stdin {
		if len(paths) != 1 {
			return nil, errors.New("stdin walk requires exactly one path")
		}

		path := paths[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(relPath, "..") {
			return nil, fmt.Errorf("path %s not inside the tree root %s", paths[0], root)
		}

		return NewStdinReader(root, relPath, os.Stdin, statz), nil
	}

	// if no paths are provided we default to processing the tree root
	if len(paths) == 0 {
		return NewReader(walkType, root, "", bufferLimit, statz)
	}

	readers := make([]Reader, len(paths))

	for idx, path := range paths {
		resolvedPath, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("error resolving path %s: %w", path, err)
		}

		relativePath, err := filepath.Rel(root, resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("error computing relative path from %s to %s: %w", root, resolvedPath, err)
		}

		if strings.HasPrefix(relativePath, "..") {
			return nil, fmt.Errorf("path %s not inside the tree root %s", path, root)
		}

		info, err := os.Lstat(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", resolvedPath, err)
		}

		if info.IsDir() {
			// for directories, we honour the walk type as we traverse them
			readers[idx], err = NewReader(walkType, root, relativePath, bufferLimit, statz)
		} else {
			// for files, we enforce a simple filesystem read
			readers[idx], err = NewReader(Filesystem, root, relativePath, bufferLimit, statz)
		}

		if err != nil {
			// stop the readers which have already started
			_ = (&CompositeReader{readers: readers[:idx]}).Close()

			return nil, fmt.Errorf("failed to create reader for %s: %w", relativePath, err)
		}
	}

	return &CompositeReader{
		readers: readers,
	}, nil
}

// resolvePath returns the absolute form of path with any symlinks resolved.
func resolvePath(path string) (string, error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("error computing absolute path of %s: %w", path, err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		return "", fmt.Errorf("path %s not found: %w", absolutePath, err)
	}

	return resolvedPath, nil
}

// readUnits drains ch into units until units is full, ch is closed or ctx is done.
func readUnits(ctx context.Context, ch <-chan *unit.Unit, units []*unit.Unit) (n int, err error) {
	idx := 0

LOOP:
	for idx < len(units) {
		select {
		case <-ctx.Done():
			return idx, ctx.Err()
		case u, ok := <-ch:
			if !ok {
				err = io.EOF

				break LOOP
			}

			units[idx] = u
			idx++
		}
	}

	return idx, err
}
