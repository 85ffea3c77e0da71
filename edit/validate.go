package edit

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidSpan = errors.New("edit has a negative start or length")
	ErrOutOfBounds = errors.New("edit lies outside the text")
	ErrOverlap     = errors.New("edits overlap")
)

// Validate checks that edits can be applied to a text of the given length: every span lies within
// [0, length] and no two spans overlap. Two insertions at the same offset are reported as overlapping since
// their relative order is undefined.
func Validate(length int, edits []Edit) error {
	for _, e := range edits {
		if e.Start < 0 || e.Length < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, e)
		} else if e.End() > length {
			return fmt.Errorf("%w: %v exceeds length %d", ErrOutOfBounds, e, length)
		}
	}

	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, func(a, b Edit) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}

		return cmp.Compare(a.Length, b.Length)
	})

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]

		sameInsertion := prev.Length == 0 && next.Length == 0 && prev.Start == next.Start
		if next.Start < prev.End() || sameInsertion {
			return fmt.Errorf("%w: %v and %v", ErrOverlap, prev, next)
		}
	}

	return nil
}
