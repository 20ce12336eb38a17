package gowebm

import (
	"github.com/pkg/errors"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
)

// ErrUnknown is matched by every error returned by a failing Segment
// operation. The muxing engine does not report why a call failed, hence
// errors are not classified further.
var ErrUnknown = errors.New("unknown error")

// ErrorKind is the kind of an Error.
// More kinds may be added in the future.
type ErrorKind int

// Error kinds.
const (
	// the engine could not allocate or initialize a segment.
	ErrorKindConstruction ErrorKind = iota + 1

	// the engine rejected an operation.
	ErrorKindOperation
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConstruction:
		return "construction"
	case ErrorKindOperation:
		return "operation"
	}
	return "unknown"
}

// Error is the error returned by Segment.
type Error struct {
	Kind ErrorKind

	// name of the failing operation.
	Op string

	// error of the output destination that caused the failure, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + ErrUnknown.Error() + ": " + e.Err.Error()
	}
	return e.Op + ": " + ErrUnknown.Error()
}

// Is allows to use errors.Is(err, ErrUnknown).
func (e *Error) Is(target error) bool {
	return target == ErrUnknown
}

// Unwrap returns the destination error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newConstructionError(op string, cause error) error {
	return &Error{
		Kind: ErrorKindConstruction,
		Op:   op,
		Err:  cause,
	}
}

func resultToError(op string, res mkvmuxer.Result, cause error) error {
	if res == mkvmuxer.ResultOK {
		return nil
	}
	return &Error{
		Kind: ErrorKindOperation,
		Op:   op,
		Err:  cause,
	}
}
