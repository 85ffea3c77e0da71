package stats

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

type Type int

const (
	Traversed Type = iota
	Matched
	Cached
	Formatted
	Changed
	Rejected
	Failed
)

// Stats counts units as they move through a run. It is safe for concurrent use.
type Stats struct {
	start    time.Time
	counters map[Type]*atomic.Int32
}

func (s *Stats) Add(t Type, delta int32) int32 {
	return s.counters[t].Add(delta)
}

func (s *Stats) Value(t Type) int32 {
	return s.counters[t].Load()
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s *Stats) Print(w io.Writer) {
	components := []string{
		"traversed %d files",
		"matched %d files",
		"skipped %d unchanged files",
		"formatted %d files (%d changed)",
		"rejected %d streams",
		"failed on %d files in %v",
		"",
	}

	_, _ = fmt.Fprintf(
		w,
		strings.Join(components, "\n"),
		s.Value(Traversed),
		s.Value(Matched),
		s.Value(Cached),
		s.Value(Formatted),
		s.Value(Changed),
		s.Value(Rejected),
		s.Value(Failed),
		s.Elapsed().Round(time.Millisecond),
	)
}

func New() *Stats {
	counters := make(map[Type]*atomic.Int32)
	for _, t := range []Type{Traversed, Matched, Cached, Formatted, Changed, Rejected, Failed} {
		counters[t] = &atomic.Int32{}
	}

	return &Stats{
		start:    time.Now(),
		counters: counters,
	}
}
