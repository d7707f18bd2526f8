package pkg

// Sentinel errors for the causal package and its subpackages.
// These errors can be tested using errors.Is for reliable error checking.

import (
	"fmt"
	"slices"
	"strings"
)

// Error represents a chain of errors.
type Error []error

// ErrOpenOutput is returned when the profile output destination cannot be
// opened at startup.
//
// This error is fatal: profiling cannot proceed without somewhere to write
// experiment records. It should be wrapped with the underlying I/O error.
var ErrOpenOutput = MakeErrorf("open profile output")

// ErrInstallSampler is returned when the sampling interrupt source cannot be
// installed.
var ErrInstallSampler = MakeErrorf("install sampler")

// ErrAlreadyRunning is returned when a profiler is started while another
// instance owns the process.
var ErrAlreadyRunning = MakeErrorf("profiler already running")

// ErrInvalidSpeedup is returned when a fixed speedup is outside [0,100].
var ErrInvalidSpeedup = MakeErrorf("speedup percent out of range")

// ErrInvalidLocation is returned when a fixed candidate is not of the form
// file:line.
var ErrInvalidLocation = MakeErrorf("invalid source location")

// ErrNoCandidate is returned when no candidate point is available for
// selection.
var ErrNoCandidate = MakeErrorf("no candidate point available")

// ErrParseProfile is returned when a profile record cannot be parsed.
//
// This error should be wrapped with the offending line number.
var ErrParseProfile = MakeErrorf("parse profile")

// ErrInvalidFormat is returned when an invalid format is specified.
//
// This error should be wrapped with additional context that specifies the
// invalid format along with a list of valid formats.
var ErrInvalidFormat = MakeErrorf("invalid format")

// ErrInvalidFilter is returned when a report filter expression does not
// compile or does not evaluate to a boolean.
var ErrInvalidFilter = MakeErrorf("invalid filter")

// MakeError constructs an Error from the given errors.
// The errors are stored in the order they are provided:
// the first argument is the innermost error in the chain.
// Nil is returned if no errors are provided.
func MakeError(errs ...error) Error {
	var e Error

	for _, err := range errs {
		if err != nil {
			e = append(e, UnwrapErrors(err)...)
		}
	}

	return e
}

// MakeErrorf constructs an Error from a formatted error message.
func MakeErrorf(format string, args ...any) Error {
	return MakeError(fmt.Errorf(format, args...))
}

// Error returns a concatenated string representation of all errors
// in the error chain, separated by ": ", from outermost to innermost.
func (e Error) Error() string {
	var sb strings.Builder

	for i, err := range slices.Backward(e) {
		if i < len(e)-1 {
			sb.WriteString(": ")
		}

		sb.WriteString(err.Error())
	}

	return sb.String()
}

// Wrap returns a copy of the receiver with err appended as the innermost
// cause, so that the receiver's message reads first.
func (e Error) Wrap(err ...error) Error {
	chain := make(Error, 0, len(e)+len(err))
	for _, w := range err {
		if w != nil {
			chain = append(chain, UnwrapErrors(w)...)
		}
	}

	return append(chain, e...)
}

// Wrapf is like Wrap with a formatted error.
func (e Error) Wrapf(format string, args ...any) Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// Unwrap returns the slice of errors contained in the receiver.
func (e Error) Unwrap() []error {
	return e
}

// Is reports whether target is an Error whose chain is a suffix of the
// receiver's chain, which is how sentinel errors appear after Wrap.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok || len(t) == 0 || len(t) > len(e) {
		return false
	}

	off := len(e) - len(t)
	for i := range t {
		if e[off+i] != t[i] {
			return false
		}
	}

	return true
}

// UnwrapErrors recursively unwraps an error chain and returns a slice
// containing all errors in the chain, starting from the innermost error.
func UnwrapErrors(err error) Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(Error); ok {
		return slices.Clone(e)
	}

	chain := Error{}

	if e, ok := err.(interface{ Unwrap() []error }); ok {
		for _, wrapped := range e.Unwrap() {
			chain = append(chain, UnwrapErrors(wrapped)...)
		}
	} else if e, ok := err.(interface{ Unwrap() error }); ok {
		chain = append(chain, UnwrapErrors(e.Unwrap())...)
	}

	return append(chain, err)
}
