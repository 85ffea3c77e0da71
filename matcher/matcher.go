// Package matcher decides which units a run should format.
package matcher

import (
	"github.com/numtide/tsfmt/unit"
)

type Result int

const (
	// Unit explicitly selected.
	Wanted Result = iota
	// Unit explicitly rejected.
	Unwanted
	// Unit neither selected nor rejected.
	Indifferent
	// Something went wrong.
	Error
)

type MatchFn = func(u *unit.Unit) (Result, error)

func wantAll(_ *unit.Unit) (Result, error) {
	return Wanted, nil
}

func invert(match MatchFn) MatchFn {
	return func(u *unit.Unit) (Result, error) {
		result, err := match(u)

		switch result {
		case Wanted:
			result = Unwanted
		case Unwanted:
			result = Wanted
		case Indifferent:
		case Error:
		}

		return result, err
	}
}

// Combine combines multiple matchers into a single matcher.
// The order of the matchers is important, which is why have explicit parameters for includes and excludes.
func Combine(includes []MatchFn, excludes []MatchFn) MatchFn {
	// exclusions are applied first so a unit matching an exclude is rejected even if it matches an include
	matchers := make([]MatchFn, 0, len(excludes)+len(includes))
	matchers = append(matchers, excludes...)
	matchers = append(matchers, includes...)

	return func(u *unit.Unit) (Result, error) {
		var (
			err error
			// Default to "don't care."
			result = Indifferent
		)

		for _, matchFn := range matchers {
			result, err = matchFn(u)
			if err != nil {
				return Error, err
			}

			switch result {
			case Wanted, Unwanted:
				return result, nil

			case Indifferent:
			case Error:
			default:
			}
		}

		return result, nil
	}
}

// New builds the matcher for a run from include and exclude glob patterns. With no includes every unit that is
// not excluded is wanted.
func New(includes []string, excludes []string) (MatchFn, error) {
	include, err := IncludeGlobs(includes)
	if err != nil {
		return nil, err
	}

	exclude, err := ExcludeGlobs(excludes)
	if err != nil {
		return nil, err
	}

	if len(includes) == 0 {
		include = wantAll
	}

	return Combine([]MatchFn{include}, []MatchFn{exclude}), nil
}
