package walk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/numtide/tsfmt/stats"
)

// GitReader loads the units tracked in the index of the git repository at root.
type GitReader struct {
	root        string
	path        string
	fs          billy.Filesystem
	bufferLimit int
	stats       *stats.Stats

	log  *log.Logger
	repo *git.Repository

	*traversal
}

func (g *GitReader) process() error {
	gitIndex, err := g.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("failed to open git index: %w", err)
	}

	// index entries are slash separated and relative to the repository root
	prefix := filepath.ToSlash(filepath.Clean(g.path))
	if prefix == "." {
		prefix = ""
	}

	for _, entry := range gitIndex.Entries {
		if prefix != "" && entry.Name != prefix && !strings.HasPrefix(entry.Name, prefix+"/") {
			continue
		}

		// we only want regular files, not directories, symlinks or submodules
		switch entry.Mode {
		case filemode.Dir, filemode.Symlink, filemode.Submodule:
			continue
		}

		relPath := filepath.FromSlash(entry.Name)

		info, err := g.fs.Lstat(relPath)
		if errors.Is(err, os.ErrNotExist) {
			// the underlying file might have been removed without the change being staged yet
			g.log.Warnf("Path %s is in the index but appears to have been removed from the filesystem", relPath)

			continue
		} else if err != nil {
			return fmt.Errorf("failed to stat %s: %w", relPath, err)
		}

		u, err := load(g.fs, g.root, relPath, info, g.bufferLimit)
		if err != nil {
			return err
		}

		g.stats.Add(stats.Traversed, 1)

		if err = g.send(u); err != nil {
			return err
		}
	}

	return nil
}

func NewGitReader(
	root string,
	path string,
	bufferLimit int,
	statz *stats.Stats,
) (*GitReader, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	r := &GitReader{
		root:        root,
		path:        path,
		fs:          osfs.New(root),
		bufferLimit: bufferLimit,
		stats:       statz,
		log:         log.WithPrefix("walk | git"),
		repo:        repo,
		traversal:   newTraversal(),
	}

	r.start(r.process)

	return r, nil
}
