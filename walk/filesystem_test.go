package walk_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/test"
	"github.com/numtide/tsfmt/unit"
	"github.com/numtide/tsfmt/walk"
	"github.com/stretchr/testify/require"
)

// readAll drains r, reading in small batches.
func readAll(t *testing.T, r walk.Reader) []*unit.Unit {
	t.Helper()

	var result []*unit.Unit

	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)

		units := make([]*unit.Unit, 4)
		n, err := r.Read(ctx, units)

		cancel()

		result = append(result, units[:n]...)

		if errors.Is(err, io.EOF) {
			break
		}

		require.NoError(t, err)
	}

	require.NoError(t, r.Close())

	return result
}

func relPaths(units []*unit.Unit) []string {
	paths := make([]string, len(units))
	for i, u := range units {
		paths[i] = u.RelPath
	}

	return paths
}

func TestFilesystemReader(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)
	statz := stats.New()

	units := readAll(t, walk.NewFilesystemReader(tempDir, "", 0, statz))

	as.Equal(test.ExamplesPaths, relPaths(units))
	as.Equal(int32(len(test.ExamplesPaths)), statz.Value(stats.Traversed))
	as.Equal(int32(0), statz.Value(stats.Matched))

	for _, u := range units {
		as.True(u.IsBuffer(), u.RelPath)
		as.Equal(filepath.Join(tempDir, u.RelPath), u.Path)

		contents, err := u.Contents().Bytes()
		as.NoError(err)
		as.Equal(test.ReadFile(t, u.Path), string(contents))
	}
}

func TestFilesystemReaderPath(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)
	statz := stats.New()

	units := readAll(t, walk.NewFilesystemReader(tempDir, "src", 0, statz))
	as.Equal([]string{"src/app.ts", "src/lib/math.ts", "src/util.ts"}, relPaths(units))

	// a single file
	units = readAll(t, walk.NewFilesystemReader(tempDir, "src/util.ts", 0, statz))
	as.Equal([]string{"src/util.ts"}, relPaths(units))

	as.Equal(int32(4), statz.Value(stats.Traversed))
}

func TestFilesystemReaderSkipsGitDir(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)
	as.NoError(os.MkdirAll(filepath.Join(tempDir, ".git", "objects"), 0o755))
	as.NoError(os.WriteFile(filepath.Join(tempDir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))

	units := readAll(t, walk.NewFilesystemReader(tempDir, "", 0, stats.New()))
	as.Equal(test.ExamplesPaths, relPaths(units))
}

func TestFilesystemReaderBufferLimit(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, "src/small.ts", []byte("let a;\n"), 0o644))
	as.NoError(util.WriteFile(fs, "src/large.ts", []byte(strings.Repeat("let a;\n", 10)), 0o644))

	statz := stats.New()
	units := readAll(t, walk.NewFilesystemReaderFS(fs, "/repo", "src", 16, statz))

	as.Len(units, 2)
	as.Equal(int32(2), statz.Value(stats.Traversed))

	byPath := make(map[string]*unit.Unit)
	for _, u := range units {
		byPath[u.RelPath] = u
	}

	small := byPath["src/small.ts"]
	as.NotNil(small)
	as.True(small.IsBuffer())
	as.Equal("/repo/src/small.ts", small.Path)

	large := byPath["src/large.ts"]
	as.NotNil(large)
	as.True(large.IsStream())

	_, err := large.Contents().Bytes()
	as.ErrorIs(err, unit.ErrNotBuffer)

	// the stream reads the file contents
	contents, err := io.ReadAll(large.Contents().Reader())
	as.NoError(err)
	as.Len(contents, 70)
	as.NoError(large.Close())
}

func TestFilesystemReaderCloseEarly(t *testing.T) {
	as := require.New(t)

	// more units than the reader buffers, so the walk is still running when it is closed
	count := walk.BatchSize*runtime.NumCPU() + 8

	fs := memfs.New()
	for i := 0; i < count; i++ {
		as.NoError(util.WriteFile(fs, fmt.Sprintf("src/%05d.ts", i), []byte("let a;\n"), 0o644))
	}

	statz := stats.New()
	r := walk.NewFilesystemReaderFS(fs, "/repo", "src", 4, statz)

	units := make([]*unit.Unit, 4)
	n, err := r.Read(context.Background(), units)
	as.NoError(err)
	as.Equal(4, n)

	for _, u := range units {
		as.True(u.IsStream())
		as.NoError(u.Close())
	}

	closed := make(chan error, 1)

	go func() {
		closed <- r.Close()
	}()

	select {
	case err = <-closed:
		as.NoError(err)
	case <-time.After(10 * time.Second):
		as.FailNow("reader did not stop after Close")
	}

	as.Less(statz.Value(stats.Traversed), int32(count))
}

func TestStdinReader(t *testing.T) {
	as := require.New(t)

	statz := stats.New()
	r := walk.NewStdinReader("/repo", "src/piped.ts", strings.NewReader("let a ;\n"), statz)

	units := make([]*unit.Unit, 2)
	n, err := r.Read(context.Background(), units)
	as.Equal(1, n)
	as.ErrorIs(err, io.EOF)

	as.Equal("/repo/src/piped.ts", units[0].Path)
	as.Equal("src/piped.ts", units[0].RelPath)

	contents, err := units[0].Contents().Bytes()
	as.NoError(err)
	as.Equal("let a ;\n", string(contents))

	// subsequent reads are exhausted
	n, err = r.Read(context.Background(), units)
	as.Equal(0, n)
	as.ErrorIs(err, io.EOF)

	as.Equal(int32(1), statz.Value(stats.Traversed))
	as.NoError(r.Close())
}

func TestCompositeReader(t *testing.T) {
	as := require.New(t)

	tempDir := test.TempExamples(t)
	statz := stats.New()

	r, err := walk.NewCompositeReader(
		walk.Filesystem,
		tempDir,
		[]string{filepath.Join(tempDir, "src", "lib"), filepath.Join(tempDir, "README.md")},
		0,
		statz,
	)
	as.NoError(err)

	units := readAll(t, r)
	as.Equal([]string{"src/lib/math.ts", "README.md"}, relPaths(units))

	// no paths means the whole tree
	r, err = walk.NewCompositeReader(walk.Filesystem, tempDir, nil, 0, statz)
	as.NoError(err)
	as.Equal(test.ExamplesPaths, relPaths(readAll(t, r)))

	// paths must be inside the tree root
	_, err = walk.NewCompositeReader(walk.Filesystem, filepath.Join(tempDir, "src"), []string{tempDir}, 0, statz)
	as.ErrorContains(err, "not inside the tree root")

	// and must exist
	_, err = walk.NewCompositeReader(walk.Filesystem, tempDir, []string{filepath.Join(tempDir, "missing.ts")}, 0, statz)
	as.Error(err)

	// stdin needs exactly one path
	_, err = walk.NewCompositeReader(walk.Stdin, tempDir, nil, 0, statz)
	as.ErrorContains(err, "exactly one path")

	_, err = walk.NewCompositeReader(walk.Stdin, tempDir, []string{"../outside.ts"}, 0, statz)
	as.ErrorContains(err, "not inside the tree root")
}

func TestTypeString(t *testing.T) {
	as := require.New(t)

	for _, walkType := range []walk.Type{walk.Auto, walk.Stdin, walk.Filesystem, walk.Git} {
		parsed, err := walk.TypeString(walkType.String())
		as.NoError(err)
		as.Equal(walkType, parsed)
	}

	_, err := walk.TypeString("jujutsu")
	as.ErrorIs(err, walk.ErrUnknownType)
}
