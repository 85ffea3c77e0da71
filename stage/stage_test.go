package stage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
	"github.com/numtide/tsfmt/oracle"
	"github.com/numtide/tsfmt/stage"
	"github.com/numtide/tsfmt/unit"
	"github.com/stretchr/testify/require"
)

const unformatted = "var a=function(v:number){return 0+1+2+3;}"

// spacing is what a TypeScript formatter reports for unformatted with the default options.
var spacing = []edit.Edit{
	{Start: 40, Length: 0, NewText: " "},
	{Start: 5, Length: 0, NewText: " "},
	{Start: 6, Length: 0, NewText: " "},
	{Start: 17, Length: 0, NewText: " "},
	{Start: 24, Length: 0, NewText: " "},
	{Start: 25, Length: 0, NewText: " "},
	{Start: 33, Length: 0, NewText: " "},
	{Start: 34, Length: 0, NewText: " "},
	{Start: 35, Length: 0, NewText: " "},
	{Start: 36, Length: 0, NewText: " "},
	{Start: 37, Length: 0, NewText: " "},
	{Start: 38, Length: 0, NewText: " "},
}

func bufferUnit(contents string) *unit.Unit {
	return unit.New("/src/a.ts", "a.ts", unit.Buffer([]byte(contents)))
}

func contentsOf(t *testing.T, u *unit.Unit) string {
	t.Helper()

	b, err := u.Contents().Bytes()
	require.NoError(t, err)

	return string(b)
}

func TestNoParams(t *testing.T) {
	as := require.New(t)

	s, err := stage.New(nil, oracle.Fixed())
	as.NoError(err)
	as.Equal("tsfmt", s.Name())
	as.Equal(config.Defaults(), *s.Options())

	u := bufferUnit("let a;")
	as.NoError(s.Transform(context.Background(), u))
	as.Equal("let a;", contentsOf(t, u))
}

func TestParams(t *testing.T) {
	as := require.New(t)

	indent, tabs := 2, 2

	s, err := stage.New(&config.Params{
		Options: &config.PartialOptions{IndentSize: &indent, TabSize: &tabs},
		Target:  "ES6",
	}, oracle.Fixed())
	as.NoError(err)

	expected := config.Defaults()
	expected.IndentSize = 2
	expected.TabSize = 2
	expected.Target = config.ES6

	as.Equal(expected, *s.Options())
}

func TestInvalidTarget(t *testing.T) {
	as := require.New(t)

	built := false
	factory := func(*config.Options) (oracle.Oracle, error) {
		built = true

		return oracle.Func(func(context.Context, string, []byte) ([]edit.Edit, error) { return nil, nil }), nil
	}

	s, err := stage.New(&config.Params{Target: "Fail"}, factory)
	as.Nil(s)
	as.EqualError(err, "Fail is not a valid script target")
	as.ErrorIs(err, config.ErrInvalidTarget)
	as.False(built, "the oracle must not be built for an invalid configuration")

	var pluginErr stage.PluginError
	as.ErrorAs(err, &pluginErr)
	as.Equal("tsfmt", pluginErr.PluginName())
}

func TestOracleConstructionFailure(t *testing.T) {
	as := require.New(t)

	_, err := stage.New(nil, oracle.New(t.TempDir(), config.Oracle{Command: "tsfmt-does-not-exist"}))
	as.ErrorIs(err, oracle.ErrCommandNotFound)
}

func TestFormatBuffer(t *testing.T) {
	as := require.New(t)

	s, err := stage.New(nil, oracle.Fixed(spacing...))
	as.NoError(err)

	in := make(chan *unit.Unit, 1)
	out := make(chan *unit.Unit, 1)
	errs := make(chan error, 1)

	u := bufferUnit(unformatted)
	in <- u
	close(in)

	as.NoError(s.Run(context.Background(), in, out, errs))
	as.Empty(errs)
	as.Len(out, 1)

	formatted := <-out
	as.Same(u, formatted)
	as.Equal("var a = function(v: number) { return 0 + 1 + 2 + 3; }", contentsOf(t, formatted))
	as.Equal("/src/a.ts", formatted.Path, "path must be left untouched")
}

func TestStreamRejected(t *testing.T) {
	as := require.New(t)

	computed := 0
	factory := func(*config.Options) (oracle.Oracle, error) {
		return oracle.Func(func(context.Context, string, []byte) ([]edit.Edit, error) {
			computed++

			return nil, nil
		}), nil
	}

	s, err := stage.New(nil, factory)
	as.NoError(err)

	in := make(chan *unit.Unit, 2)
	out := make(chan *unit.Unit, 2)
	errs := make(chan error, 2)

	stream := unit.New("/src/big.ts", "big.ts", unit.Stream(io.NopCloser(strings.NewReader("let a"))))
	in <- stream
	in <- bufferUnit("let b;")
	close(in)

	as.NoError(s.Run(context.Background(), in, out, errs))

	// exactly one error for the stream, and the buffer that followed is unaffected
	as.Len(errs, 1)
	as.Len(out, 1)
	as.Equal(1, computed)

	err = <-errs
	as.EqualError(err, "Streams are not supported")
	as.ErrorIs(err, stage.ErrUnsupportedStream)

	var streamErr *stage.UnsupportedStreamError
	as.ErrorAs(err, &streamErr)
	as.Equal("tsfmt", streamErr.Plugin)
	as.Equal("/src/big.ts", streamErr.Path)

	as.True(stream.IsStream(), "a rejected unit keeps its contents")
	as.Equal("let b;", contentsOf(t, <-out))
}

func TestOracleFailure(t *testing.T) {
	as := require.New(t)

	errParse := errors.New("unexpected token")

	s, err := stage.New(nil, func(*config.Options) (oracle.Oracle, error) {
		return oracle.Func(func(_ context.Context, name string, _ []byte) ([]edit.Edit, error) {
			as.Equal("a.ts", name)

			return nil, errParse
		}), nil
	})
	as.NoError(err)

	u := bufferUnit("let = ;")

	err = s.Transform(context.Background(), u)
	as.Equal(errParse, err, "oracle errors are passed through as-is")
	as.Equal("let = ;", contentsOf(t, u))
}

func TestInvalidEdits(t *testing.T) {
	as := require.New(t)

	s, err := stage.New(nil, oracle.Fixed(
		edit.Edit{Start: 0, Length: 3, NewText: "const"},
		edit.Edit{Start: 2, Length: 2, NewText: "x"},
	))
	as.NoError(err)

	u := bufferUnit("let a;")

	err = s.Transform(context.Background(), u)
	as.ErrorIs(err, stage.ErrInvalidEdits)
	as.ErrorIs(err, edit.ErrOverlap)
	as.Equal("let a;", contentsOf(t, u))
}

func TestOracleBuiltOnce(t *testing.T) {
	as := require.New(t)

	builds := 0
	factory := func(opts *config.Options) (oracle.Oracle, error) {
		builds++

		return oracle.NewWhitespace(opts)
	}

	newline := "\n"

	s, err := stage.New(&config.Params{Options: &config.PartialOptions{Newline: &newline}}, factory)
	as.NoError(err)

	for _, source := range []string{"a;  \r\n", "\tb;\n", "c;"} {
		as.NoError(s.Transform(context.Background(), bufferUnit(source)))
	}

	as.Equal(1, builds)
}

func TestRunCancelled(t *testing.T) {
	as := require.New(t)

	s, err := stage.New(nil, oracle.Fixed())
	as.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// nothing is ever sent, so only the cancellation can end the run
	in := make(chan *unit.Unit)

	as.ErrorIs(s.Run(ctx, in, make(chan *unit.Unit), make(chan error)), context.Canceled)
}
