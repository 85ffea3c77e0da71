// Package unit defines the file-like values which flow through a formatting pipeline.
package unit

import (
	"errors"
	"fmt"
	"io"
)

// Kind is the representation of a unit's contents.
type Kind int

const (
	// KindBuffer contents are fully materialized in memory.
	KindBuffer Kind = iota
	// KindStream contents are an open stream which has not been read.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var ErrNotBuffer = errors.New("unit contents are not buffered")

// Contents holds either a buffer or a stream, never both.
// The zero value is an empty buffer.
type Contents struct {
	kind   Kind
	buf    []byte
	stream io.ReadCloser
}

// Buffer returns buffer-backed contents.
func Buffer(b []byte) Contents {
	return Contents{kind: KindBuffer, buf: b}
}

// Stream returns stream-backed contents.
func Stream(r io.ReadCloser) Contents {
	return Contents{kind: KindStream, stream: r}
}

func (c Contents) Kind() Kind {
	return c.kind
}

// Bytes returns the buffer, or ErrNotBuffer for stream-backed contents.
func (c Contents) Bytes() ([]byte, error) {
	if c.kind != KindBuffer {
		return nil, ErrNotBuffer
	}

	return c.buf, nil
}

// Reader returns the stream for stream-backed contents, otherwise nil.
func (c Contents) Reader() io.ReadCloser {
	return c.stream
}

// Unit is a single file travelling through the pipeline.
// Path and RelPath are used for diagnostics and for writing the result; the pipeline never changes them.
type Unit struct {
	Path    string
	RelPath string

	contents Contents
}

// New creates a unit with the given contents.
func New(path string, relPath string, contents Contents) *Unit {
	return &Unit{
		Path:     path,
		RelPath:  relPath,
		contents: contents,
	}
}

func (u *Unit) Contents() Contents {
	return u.contents
}

func (u *Unit) IsBuffer() bool {
	return u.contents.kind == KindBuffer
}

func (u *Unit) IsStream() bool {
	return u.contents.kind == KindStream
}

// SetBuffer replaces the unit's contents with b.
func (u *Unit) SetBuffer(b []byte) {
	u.contents = Buffer(b)
}

// Close releases a stream, if the unit holds one.
func (u *Unit) Close() error {
	if u.contents.kind != KindStream || u.contents.stream == nil {
		return nil
	}

	if err := u.contents.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream for %s: %w", u.Path, err)
	}

	return nil
}

// String returns the unit's path as a string.
func (u *Unit) String() string {
	return u.Path
}
