package core

import (
	"errors"
	"fmt"
)

// Error kinds. Everything before the batch loop is fatal; ErrBuild and
// ErrCompression are recovered inside the loop and never abort a run.
var (
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
	ErrMetadataUnavailable  = errors.New("build metadata unavailable")
	ErrConfiguration        = errors.New("configuration error")
	ErrBuild                = errors.New("build failed")
	ErrCompression          = errors.New("compression failed")
)

// Error attaches a message and an optional cause to one of the kinds above.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func toolchainErrorf(cause error, format string, args ...any) error {
	return newError(ErrToolchainUnavailable, cause, format, args...)
}

func metadataErrorf(cause error, format string, args ...any) error {
	return newError(ErrMetadataUnavailable, cause, format, args...)
}

func configErrorf(format string, args ...any) error {
	return newError(ErrConfiguration, nil, format, args...)
}

// IsFatal reports whether err belongs to the pre-batch failure classes
// that abort a run before anything is built.
func IsFatal(err error) bool {
	return errors.Is(err, ErrToolchainUnavailable) ||
		errors.Is(err, ErrMetadataUnavailable) ||
		errors.Is(err, ErrConfiguration)
}

var errEmptyRevision = errors.New("git rev-parse returned an empty revision")
