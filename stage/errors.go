package stage

import (
	"errors"

	"github.com/numtide/tsfmt/config"
)

var (
	ErrUnsupportedStream = errors.New("streams are not supported")
	ErrInvalidEdits      = errors.New("oracle returned edits which cannot be applied")
)

// PluginError is implemented by the errors a stage raises itself, as opposed to errors passed through from the
// oracle. PluginName identifies the stage which raised it.
type PluginError interface {
	error
	PluginName() string
}

var (
	_ PluginError = &UnsupportedStreamError{}
	_ PluginError = &config.InvalidTargetError{}
)

// UnsupportedStreamError is reported for every stream-backed unit presented to a stage.
type UnsupportedStreamError struct {
	Plugin string
	Path   string
}

func (e *UnsupportedStreamError) Error() string {
	return "Streams are not supported"
}

func (e *UnsupportedStreamError) Unwrap() error {
	return ErrUnsupportedStream
}

func (e *UnsupportedStreamError) PluginName() string {
	return e.Plugin
}
