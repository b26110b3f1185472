// Package errors carries stack-annotated errors across the module and the
// small closed taxonomy of error kinds that crosses the wire between client
// and server.
package errors

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

var (
	New    = errors.New
	Errorf = errors.Errorf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Cause  = errors.Cause
)

// github.com/pkg/errors can be formatted with rich information, including
// stacktrace, see: https://godoc.org/github.com/pkg/errors#hdr-Formatted_printing_of_errors
type richError interface {
	error
	fmt.Formatter
}

// RichError wraps as necessary an arbitrary recovered value with stacktrace
// information, for use at the boundary of a panic/recover style operation.
func RichError(err interface{}) error {
	if err == nil {
		return nil
	}
	switch err := err.(type) {
	case richError:
		return err
	case error:
		return errors.Wrap(err, err.Error()).(richError)
	default:
		return errors.New(fmt.Sprintf("%s", err)).(richError)
	}
}

// Kind is the abstract error taxonomy of spec §7, small enough to cross the
// wire as a plain string and stable regardless of the concrete Go error type
// that produced it on either side.
type Kind string

const (
	// NotFound means the path does not exist on the server.
	NotFound Kind = "NotFound"
	// AlreadyExists means a create collided with an existing entry.
	AlreadyExists Kind = "AlreadyExists"
	// PermissionDenied means local I/O was forbidden by the host OS.
	PermissionDenied Kind = "PermissionDenied"
	// Stale means a cache entry was found inconsistent with the server
	// after a failed compare and had to be dropped.
	Stale Kind = "Stale"
	// BackendUnavailable means an RPC failed after exhausting retries.
	BackendUnavailable Kind = "BackendUnavailable"
	// InvalidState means an internal invariant was violated.
	InvalidState Kind = "InvalidState"
)

// KindError is a typed error carrying one of the Kind values above, plus a
// human-readable message and, optionally, the error it wraps.
type KindError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *KindError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *KindError) Unwrap() error { return e.Cause }

// Of constructs a KindError.
func Of(kind Kind, format string, args ...interface{}) *KindError {
	return &KindError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrapped constructs a KindError that carries a lower-level cause.
func Wrapped(kind Kind, cause error, format string, args ...interface{}) *KindError {
	return &KindError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to InvalidState if err is not
// (and does not wrap) a *KindError.
func KindOf(err error) Kind {
	for err != nil {
		if k, ok := err.(*KindError); ok {
			return k.Kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if err == nil {
		return ""
	}
	return InvalidState
}

// Is reports whether err is, or wraps, a *KindError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromHostError classifies an error returned by a host filesystem call (open,
// stat, rename, ...) into the abstract taxonomy, the way jdfs's
// vfs.FsError maps syscall.Errno/os.PathError down to the small set of
// errors that may cross the wire.
func FromHostError(op, path string, err error) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *os.PathError:
		return FromHostError(e.Op, e.Path, e.Err)
	case *os.LinkError:
		return FromHostError(e.Op, e.Old+" -> "+e.New, e.Err)
	case syscall.Errno:
		switch e {
		case syscall.ENOENT:
			return Wrapped(NotFound, err, "%s %s", op, path)
		case syscall.EEXIST:
			return Wrapped(AlreadyExists, err, "%s %s", op, path)
		case syscall.EACCES, syscall.EPERM:
			return Wrapped(PermissionDenied, err, "%s %s", op, path)
		}
	}
	if os.IsNotExist(err) {
		return Wrapped(NotFound, err, "%s %s", op, path)
	}
	if os.IsExist(err) {
		return Wrapped(AlreadyExists, err, "%s %s", op, path)
	}
	if os.IsPermission(err) {
		return Wrapped(PermissionDenied, err, "%s %s", op, path)
	}
	return Wrapped(InvalidState, err, "%s %s", op, path)
}
