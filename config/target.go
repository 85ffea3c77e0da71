package config

import (
	"errors"
	"fmt"

	"github.com/numtide/tsfmt/build"
)

// Target is the language level the source is parsed against.
type Target int

const (
	ES3 Target = iota
	ES5
	ES6
	ES2016
	ES2017
	Latest

	// ES2015 is another name for ES6.
	ES2015 = ES6
)

var ErrInvalidTarget = errors.New("invalid script target")

// targets is the closed set of recognised names. Lookups are case-sensitive.
var targets = map[string]Target{
	"ES3":    ES3,
	"ES5":    ES5,
	"ES6":    ES6,
	"ES2015": ES2015,
	"ES2016": ES2016,
	"ES2017": ES2017,
	"Latest": Latest,
}

var targetNames = map[Target]string{
	ES3:    "ES3",
	ES5:    "ES5",
	ES6:    "ES6",
	ES2016: "ES2016",
	ES2017: "ES2017",
	Latest: "Latest",
}

// InvalidTargetError is returned when a target name is not part of the recognised set.
type InvalidTargetError struct {
	Plugin string
	Name   string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("%s is not a valid script target", e.Name)
}

func (e *InvalidTargetError) Unwrap() error {
	return ErrInvalidTarget
}

// PluginName returns the identity of the stage which rejected the target.
func (e *InvalidTargetError) PluginName() string {
	return e.Plugin
}

// ResolveTarget looks name up in the closed set of targets.
func ResolveTarget(name string) (Target, error) {
	target, ok := targets[name]
	if !ok {
		return 0, &InvalidTargetError{Plugin: build.Name, Name: name}
	}

	return target, nil
}

// TargetNames returns every recognised target name, aliases included.
func TargetNames() []string {
	return []string{"ES3", "ES5", "ES6", "ES2015", "ES2016", "ES2017", "Latest"}
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Target(%d)", int(t))
}

func (t Target) MarshalText() ([]byte, error) {
	name, ok := targetNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, int(t))
	}

	return []byte(name), nil
}

func (t *Target) UnmarshalText(text []byte) error {
	target, err := ResolveTarget(string(text))
	if err != nil {
		return err
	}

	*t = target

	return nil
}
