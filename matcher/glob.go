package matcher

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/numtide/tsfmt/unit"
)

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, len(patterns))

	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern '%v': %w", pattern, err)
		}

		globs[i] = g
	}

	return globs, nil
}

// IncludeGlobs wants a unit whose relative path matches any of patterns and is indifferent to the rest.
func IncludeGlobs(patterns []string) (MatchFn, error) {
	globs, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	return func(u *unit.Unit) (Result, error) {
		for _, g := range globs {
			if g.Match(u.RelPath) {
				return Wanted, nil
			}
		}

		return Indifferent, nil
	}, nil
}

// ExcludeGlobs rejects a unit whose relative path matches any of patterns and is indifferent to the rest.
func ExcludeGlobs(patterns []string) (MatchFn, error) {
	include, err := IncludeGlobs(patterns)
	if err != nil {
		return nil, err
	}

	return invert(include), nil
}
