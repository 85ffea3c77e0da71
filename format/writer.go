package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/tsfmt/unit"
)

// Writer persists the contents of a formatted unit.
type Writer interface {
	Write(u *unit.Unit) error
}

// FilesystemWriter writes units back to their relative path within a filesystem, keeping the file mode.
type FilesystemWriter struct {
	fs billy.Filesystem
}

func (w *FilesystemWriter) Write(u *unit.Unit) error {
	contents, err := u.Contents().Bytes()
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", u.RelPath, err)
	}

	perm := os.FileMode(0o644)

	info, err := w.fs.Stat(u.RelPath)
	if err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", u.RelPath, err)
	}

	if err = util.WriteFile(w.fs, u.RelPath, contents, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", u.RelPath, err)
	}

	return nil
}

func NewFilesystemWriter(fs billy.Filesystem) *FilesystemWriter {
	return &FilesystemWriter{fs: fs}
}

// StreamWriter copies the contents of every unit to an io.Writer, such as stdout.
type StreamWriter struct {
	lock sync.Mutex
	out  io.Writer
}

func (w *StreamWriter) Write(u *unit.Unit) error {
	contents, err := u.Contents().Bytes()
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", u.RelPath, err)
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, err = w.out.Write(contents); err != nil {
		return fmt.Errorf("failed to write %s: %w", u.RelPath, err)
	}

	return nil
}

func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{out: out}
}
