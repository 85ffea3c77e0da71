package walk

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/unit"
)

// StdinReader presents everything read from input as a single buffer-backed unit named by path.
type StdinReader struct {
	root  string
	path  string
	stats *stats.Stats
	input io.Reader

	complete bool
}

func (s *StdinReader) Read(_ context.Context, units []*unit.Unit) (n int, err error) {
	if s.complete || len(units) == 0 {
		return 0, io.EOF
	}

	contents, err := io.ReadAll(s.input)
	if err != nil {
		return 0, fmt.Errorf("failed to read stdin: %w", err)
	}

	units[0] = unit.New(filepath.Join(s.root, s.path), s.path, unit.Buffer(contents))

	s.complete = true
	s.stats.Add(stats.Traversed, 1)

	return 1, io.EOF
}

func (s *StdinReader) Close() error {
	return nil
}

func NewStdinReader(root string, path string, input io.Reader, statz *stats.Stats) *StdinReader {
	return &StdinReader{
		root:  root,
		path:  path,
		stats: statz,
		input: input,
	}
}
