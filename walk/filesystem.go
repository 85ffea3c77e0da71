package walk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/unit"
)

// FilesystemReader traverses and loads units from a specified path within a filesystem.
type FilesystemReader struct {
	log         *log.Logger
	root        string
	path        string
	fs          billy.Filesystem
	bufferLimit int
	stats       *stats.Stats

	*traversal
}

// process walks the path and sends every regular file it finds to unitsCh as a unit.
func (f *FilesystemReader) process() error {
	start := f.path
	if start == "" {
		start = "."
	}

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("error walking path %s: %w", path, err)
		}

		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		// symlinks and other special files are left alone
		if !info.Mode().IsRegular() {
			return nil
		}

		u, err := load(f.fs, f.root, path, info, f.bufferLimit)
		if err != nil {
			return err
		}

		f.log.Debugf("loaded %s as a %s unit", u.RelPath, u.Contents().Kind())
		f.stats.Add(stats.Traversed, 1)

		return f.send(u)
	}

	return util.Walk(f.fs, start, walkFn) //nolint:wrapcheck
}

// NewFilesystemReader creates a reader which walks path within root on the local disk.
func NewFilesystemReader(root string, path string, bufferLimit int, statz *stats.Stats) *FilesystemReader {
	return NewFilesystemReaderFS(osfs.New(root), root, path, bufferLimit, statz)
}

// NewFilesystemReaderFS creates a reader which walks path within fs. Unit paths are joined onto root.
//
// Files larger than bufferLimit bytes are presented as stream-backed units. A bufferLimit of zero loads every
// file into memory.
func NewFilesystemReaderFS(
	fs billy.Filesystem,
	root string,
	path string,
	bufferLimit int,
	statz *stats.Stats,
) *FilesystemReader {
	r := FilesystemReader{
		log:         log.WithPrefix("walk | filesystem"),
		root:        root,
		path:        path,
		fs:          fs,
		bufferLimit: bufferLimit,
		stats:       statz,
		traversal:   newTraversal(),
	}

	r.start(r.process)

	return &r
}

// load reads relPath from fs into a unit, opening it as a stream instead when it exceeds bufferLimit.
func load(fs billy.Filesystem, root string, relPath string, info os.FileInfo, bufferLimit int) (*unit.Unit, error) {
	path := filepath.Join(root, relPath)

	if bufferLimit > 0 && info.Size() > int64(bufferLimit) {
		file, err := fs.Open(relPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		return unit.New(path, relPath, unit.Stream(file)), nil
	}

	contents, err := util.ReadFile(fs, relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return unit.New(path, relPath, unit.Buffer(contents)), nil
}
