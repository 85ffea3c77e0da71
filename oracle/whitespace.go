package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
)

var ErrInvalidTabSize = errors.New("tab size must be greater than zero")

// Whitespace is a built-in oracle which only touches layout:
// * line breaks are normalised to the configured newline sequence
// * trailing spaces and tabs are removed
// * leading indentation is re-rendered with spaces or tabs, honouring the tab size.
type Whitespace struct {
	newline  string
	tabSize  int
	useTabs  bool
	tabStops string // rendering of one full tab stop
}

// NewWhitespace creates a Whitespace oracle for opts.
func NewWhitespace(opts *config.Options) (*Whitespace, error) {
	if opts.TabSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTabSize, opts.TabSize)
	}

	w := &Whitespace{
		newline: opts.Newline,
		tabSize: opts.TabSize,
		useTabs: !opts.ConvertTabsToSpaces,
	}

	if w.useTabs {
		w.tabStops = "\t"
	} else {
		w.tabStops = strings.Repeat(" ", opts.TabSize)
	}

	return w, nil
}

func (w *Whitespace) Identity() string {
	return fmt.Sprintf("whitespace newline=%q tab-size=%d tabs=%t", w.newline, w.tabSize, w.useTabs)
}

func (w *Whitespace) ComputeEdits(ctx context.Context, _ string, source []byte) ([]edit.Edit, error) {
	var edits []edit.Edit

	for start := 0; start < len(source); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end, brk := lineEnd(source, start)
		edits = append(edits, w.line(source, start, end)...)

		if brk > 0 && w.newline != "" && string(source[end:end+brk]) != w.newline {
			edits = append(edits, edit.Edit{Start: end, Length: brk, NewText: w.newline})
		}

		start = end + brk
	}

	return edits, nil
}

// line computes the edits for the content of a single line, source[start:end].
func (w *Whitespace) line(source []byte, start int, end int) []edit.Edit {
	content := source[start:end]

	indent := len(content) - len(bytes.TrimLeft(content, " \t"))
	if indent == len(content) {
		// blank line, drop all of it
		if indent == 0 {
			return nil
		}

		return []edit.Edit{{Start: start, Length: indent}}
	}

	var edits []edit.Edit

	if rendered := w.render(content[:indent]); rendered != string(content[:indent]) {
		edits = append(edits, edit.Edit{Start: start, Length: indent, NewText: rendered})
	}

	if trailing := len(content) - len(bytes.TrimRight(content, " \t")); trailing > 0 {
		edits = append(edits, edit.Edit{Start: end - trailing, Length: trailing})
	}

	return edits
}

// render converts leading whitespace to its canonical form.
func (w *Whitespace) render(indent []byte) string {
	column := 0

	for _, c := range indent {
		if c == '\t' {
			column = (column/w.tabSize + 1) * w.tabSize
		} else {
			column++
		}
	}

	stops, rest := column/w.tabSize, column%w.tabSize

	return strings.Repeat(w.tabStops, stops) + strings.Repeat(" ", rest)
}

// lineEnd returns the offset of the line break terminating the line which begins at start, and the length of
// that break (0 at the end of the source).
func lineEnd(source []byte, start int) (end int, brk int) {
	idx := bytes.IndexAny(source[start:], "\r\n")
	if idx < 0 {
		return len(source), 0
	}

	end = start + idx
	if source[end] == '\r' && end+1 < len(source) && source[end+1] == '\n' {
		return end, 2
	}

	return end, 1
}
