package format_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/tsfmt/cache"
	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
	"github.com/numtide/tsfmt/format"
	"github.com/numtide/tsfmt/oracle"
	"github.com/numtide/tsfmt/stage"
	"github.com/numtide/tsfmt/stats"
	"github.com/numtide/tsfmt/walk"
	"github.com/stretchr/testify/require"
)

const bufferLimit = 64

func newFS(t *testing.T) billy.Filesystem {
	t.Helper()

	fs := memfs.New()

	for path, contents := range map[string]string{
		"src/dirty.ts":  "let a = 1;  \n\tlet b;\n",
		"src/clean.ts":  "let c;\n",
		"src/notes.txt": "leave me alone   \n",
		"src/big.ts":    strings.Repeat("let d;\n", 20),
	} {
		require.NoError(t, util.WriteFile(fs, path, []byte(contents), 0o644))
	}

	return fs
}

func newStage(t *testing.T, factory oracle.Factory) *stage.Stage {
	t.Helper()

	newline := "\n"

	s, err := stage.New(&config.Params{Options: &config.PartialOptions{Newline: &newline}}, factory)
	require.NoError(t, err)

	return s
}

func whitespace(opts *config.Options) (oracle.Oracle, error) {
	return oracle.NewWhitespace(opts)
}

func run(
	t *testing.T,
	fs billy.Filesystem,
	cfg *config.Config,
	s *stage.Stage,
	c *cache.Cache,
) (*stats.Stats, error) {
	t.Helper()

	statz := stats.New()

	runner, err := format.NewRunner(cfg, s, c, format.NewFilesystemWriter(fs), statz)
	require.NoError(t, err)

	reader := walk.NewFilesystemReaderFS(fs, "/repo", "src", bufferLimit, statz)

	runErr := runner.Run(context.Background(), reader)
	require.NoError(t, reader.Close())

	return statz, runErr
}

func readFile(t *testing.T, fs billy.Filesystem, path string) string {
	t.Helper()

	b, err := util.ReadFile(fs, path)
	require.NoError(t, err)

	return string(b)
}

func TestRunner(t *testing.T) {
	as := require.New(t)

	fs := newFS(t)
	cfg := &config.Config{Includes: []string{"*.ts"}}

	statz, err := run(t, fs, cfg, newStage(t, whitespace), nil)
	as.NoError(err, "rejected streams do not fail the run")

	as.Equal("let a = 1;\n    let b;\n", readFile(t, fs, "src/dirty.ts"))
	as.Equal("let c;\n", readFile(t, fs, "src/clean.ts"))
	as.Equal("leave me alone   \n", readFile(t, fs, "src/notes.txt"))
	as.Equal(strings.Repeat("let d;\n", 20), readFile(t, fs, "src/big.ts"))

	as.Equal(int32(4), statz.Value(stats.Traversed))
	as.Equal(int32(3), statz.Value(stats.Matched))
	as.Equal(int32(2), statz.Value(stats.Formatted))
	as.Equal(int32(1), statz.Value(stats.Changed))
	as.Equal(int32(1), statz.Value(stats.Rejected))
	as.Equal(int32(0), statz.Value(stats.Failed))

	// a second run has nothing left to change
	statz, err = run(t, fs, cfg, newStage(t, whitespace), nil)
	as.NoError(err)
	as.Equal(int32(2), statz.Value(stats.Formatted))
	as.Equal(int32(0), statz.Value(stats.Changed))
}

func TestRunnerExcludes(t *testing.T) {
	as := require.New(t)

	fs := newFS(t)
	cfg := &config.Config{Excludes: []string{"*.txt", "src/dirty.ts"}}

	statz, err := run(t, fs, cfg, newStage(t, whitespace), nil)
	as.NoError(err)

	as.Equal("let a = 1;  \n\tlet b;\n", readFile(t, fs, "src/dirty.ts"))
	as.Equal(int32(2), statz.Value(stats.Matched))
	as.Equal(int32(0), statz.Value(stats.Changed))
}

func TestRunnerFailOnChange(t *testing.T) {
	as := require.New(t)

	fs := newFS(t)
	cfg := &config.Config{Includes: []string{"*.ts"}, FailOnChange: true}

	statz, err := run(t, fs, cfg, newStage(t, whitespace), nil)
	as.ErrorIs(err, format.ErrFailOnChange)
	as.Equal(int32(1), statz.Value(stats.Changed))

	// the change is still written
	as.Equal("let a = 1;\n    let b;\n", readFile(t, fs, "src/dirty.ts"))

	_, err = run(t, fs, cfg, newStage(t, whitespace), nil)
	as.NoError(err)
}

func TestRunnerFailures(t *testing.T) {
	as := require.New(t)

	fs := newFS(t)
	cfg := &config.Config{Includes: []string{"*.ts"}}

	errBroken := errors.New("cannot parse")

	s := newStage(t, func(*config.Options) (oracle.Oracle, error) {
		return oracle.Func(func(_ context.Context, name string, source []byte) ([]edit.Edit, error) {
			if name == "dirty.ts" {
				return nil, errBroken
			}

			return []edit.Edit{{Start: len(source), NewText: "// ok\n"}}, nil
		}), nil
	})

	statz, err := run(t, fs, cfg, s, nil)
	as.ErrorIs(err, format.ErrFormattingFailures)

	// the failing unit is untouched and the others are still formatted
	as.Equal("let a = 1;  \n\tlet b;\n", readFile(t, fs, "src/dirty.ts"))
	as.Equal("let c;\n// ok\n", readFile(t, fs, "src/clean.ts"))

	as.Equal(int32(1), statz.Value(stats.Failed))
	as.Equal(int32(1), statz.Value(stats.Rejected))
	as.Equal(int32(1), statz.Value(stats.Changed))
}

func TestRunnerCache(t *testing.T) {
	as := require.New(t)

	root := t.TempDir()

	db, err := cache.Open(root)
	as.NoError(err)

	t.Cleanup(func() {
		as.NoError(db.Close())
		as.NoError(cache.Remove(root))
	})

	fs := newFS(t)
	cfg := &config.Config{Includes: []string{"*.ts"}}
	s := newStage(t, whitespace)

	signature, err := cache.Signature(s.Options(), oracle.Identity(s.Oracle()))
	as.NoError(err)

	runCached := func(signature []byte) *stats.Stats {
		c := cache.New(db, signature, 2)

		statz, err := run(t, fs, cfg, s, c)
		as.NoError(err)
		as.NoError(c.Close())

		return statz
	}

	statz := runCached(signature)
	as.Equal(int32(2), statz.Value(stats.Formatted))
	as.Equal(int32(0), statz.Value(stats.Cached))

	// everything buffered is now known to be formatted
	statz = runCached(signature)
	as.Equal(int32(0), statz.Value(stats.Formatted))
	as.Equal(int32(2), statz.Value(stats.Cached))
	as.Equal(int32(1), statz.Value(stats.Rejected), "streams are never cached")

	// editing a unit makes it stale
	as.NoError(util.WriteFile(fs, "src/clean.ts", []byte("let c;   \n"), 0o644))

	statz = runCached(signature)
	as.Equal(int32(1), statz.Value(stats.Formatted))
	as.Equal(int32(1), statz.Value(stats.Changed))
	as.Equal(int32(1), statz.Value(stats.Cached))

	// and so does a different configuration
	statz = runCached([]byte("different"))
	as.Equal(int32(2), statz.Value(stats.Formatted))
	as.Equal(int32(0), statz.Value(stats.Cached))
}

func TestRunnerStdin(t *testing.T) {
	as := require.New(t)

	cfg := &config.Config{Includes: []string{"*.ts"}, Stdin: true}

	process := func(path string, input string) (string, *stats.Stats) {
		var out bytes.Buffer

		statz := stats.New()

		runner, err := format.NewRunner(cfg, newStage(t, whitespace), nil, format.NewStreamWriter(&out), statz)
		as.NoError(err)

		reader := walk.NewStdinReader("/repo", path, strings.NewReader(input), statz)
		as.NoError(runner.Run(context.Background(), reader))
		as.NoError(reader.Close())

		return out.String(), statz
	}

	out, statz := process("src/piped.ts", "let a;  \r\n")
	as.Equal("let a;\n", out)
	as.Equal(int32(1), statz.Value(stats.Changed))

	// unchanged units are still written out
	out, _ = process("src/piped.ts", "let a;\n")
	as.Equal("let a;\n", out)

	// as are units which did not match
	out, statz = process("notes.txt", "hello  \n")
	as.Equal("hello  \n", out)
	as.Equal(int32(0), statz.Value(stats.Matched))
}

func TestRunnerInvalidGlob(t *testing.T) {
	as := require.New(t)

	_, err := format.NewRunner(
		&config.Config{Includes: []string{"[a-"}},
		newStage(t, whitespace),
		nil,
		format.NewStreamWriter(&bytes.Buffer{}),
		stats.New(),
	)
	as.Error(err)
}
