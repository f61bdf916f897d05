// Package dsnaperr provides the error taxonomy shared by every downloader
// component (C1-C7). It is a leaf package with no internal dependencies so it
// can be imported by pkg/ebs, pkg/sparsefile, pkg/fetchpool, pkg/snapshot and
// the CLI layer without causing import cycles.
package dsnaperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry decisions and CLI exit-code mapping.
type Kind int

const (
	// KindUnknown is the zero value and should never be produced deliberately.
	KindUnknown Kind = iota

	// KindOutputExists indicates the destination image file already exists
	// and --force was not given.
	KindOutputExists

	// KindUnauthorized indicates the caller's credentials lack permission
	// for the requested EBS/EC2 operation.
	KindUnauthorized

	// KindNotFound indicates the snapshot, volume, or instance does not exist.
	KindNotFound

	// KindTransient indicates a retryable failure: throttling, 5xx,
	// connection reset. internal/retry retries these; nothing else.
	KindTransient

	// KindChecksum indicates a block's SHA-256 digest did not match the
	// digest returned by the API.
	KindChecksum

	// KindIO indicates a local filesystem error unrelated to the API.
	KindIO

	// KindCancelled indicates the operation was cancelled via its context.
	KindCancelled
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindOutputExists:
		return "OutputExists"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	case KindTransient:
		return "Transient"
	case KindChecksum:
		return "Checksum"
	case KindIO:
		return "IO"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Error wraps an underlying error with a Kind and, where applicable, the
// 0-based block index that failed.
type Error struct {
	Kind  Kind
	Err   error
	Index int64 // -1 when not block-scoped
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: block %d: %v", e.Kind, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap supports errors.Is / errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, dsnaperr.New(dsnaperr.KindTransient, nil)) or, more
// commonly, use the Is* helpers below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New wraps err with kind, with no block index.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err, Index: -1}
}

// NewBlock wraps err with kind and a block index.
func NewBlock(kind Kind, err error, index int64) *Error {
	return &Error{Kind: kind, Err: err, Index: index}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and
// KindUnknown otherwise.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is a *Error of KindTransient.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsOutputExists reports whether err is a *Error of KindOutputExists.
func IsOutputExists(err error) bool {
	return KindOf(err) == KindOutputExists
}

// IsCancelled reports whether err is a *Error of KindCancelled.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// ExitCode maps err to a process exit code.
//
//	0 - success (never called with a nil error)
//	1 - user error (output exists, bad snapshot id, unauthorized, not found)
//	2 - failure after the download started (checksum mismatch, I/O, transient)
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindOutputExists, KindNotFound, KindUnauthorized:
		return 1
	default:
		return 2
	}
}
