// Package edit applies text edits computed against a single original text.
package edit

import (
	"cmp"
	"fmt"
	"slices"
)

// Edit replaces Length bytes at Start with NewText.
// Offsets always refer to the original text the edit was computed against, never an intermediate state.
type Edit struct {
	Start   int    `json:"start"`
	Length  int    `json:"length"`
	NewText string `json:"newText"`
}

// End returns the exclusive end offset of the replaced span.
func (e Edit) End() int {
	return e.Start + e.Length
}

func (e Edit) String() string {
	return fmt.Sprintf("[%d,%d)=%q", e.Start, e.End(), e.NewText)
}

// Apply returns original with every edit applied.
//
// Edits must be pairwise non-overlapping and lie within original, see Validate. They are spliced from the
// highest Start to the lowest so that the offsets of the edits still to be processed keep pointing into the
// untouched left part of the buffer. The order of the input slice does not matter and original is not
// modified.
func Apply(original []byte, edits []Edit) []byte {
	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, descending)

	growth := 0
	for _, e := range sorted {
		growth += len(e.NewText) - e.Length
	}

	result := make([]byte, len(original), max(len(original), len(original)+growth))
	copy(result, original)

	for _, e := range sorted {
		result = splice(result, e)
	}

	return result
}

// descending orders edits by Start, highest first. An insertion sharing its Start with a replacement is
// ordered after it, so the inserted text ends up in front of the replacement.
func descending(a, b Edit) int {
	if c := cmp.Compare(b.Start, a.Start); c != 0 {
		return c
	}

	return cmp.Compare(b.Length, a.Length)
}

// splice replaces buf[e.Start:e.End()] with e.NewText in place, growing buf when required.
func splice(buf []byte, e Edit) []byte {
	delta := len(e.NewText) - e.Length
	tail := len(buf) - e.End()

	switch {
	case delta > 0:
		buf = append(buf, make([]byte, delta)...)
		copy(buf[e.End()+delta:], buf[e.End():e.End()+tail])
	case delta < 0:
		copy(buf[e.End()+delta:], buf[e.End():])
		buf = buf[:len(buf)+delta]
	}

	copy(buf[e.Start:], e.NewText)

	return buf
}
