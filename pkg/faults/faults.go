// Package faults classifies raw server failure payloads into typed
// causes. It is a leaf: pure string/structure inspection, no I/O.
package faults

import (
	"errors"
	"fmt"
)

// Sentinel causes for remote execution failures.
var (
	// ErrResourceExhausted indicates the server ran out of GPU memory.
	ErrResourceExhausted = errors.New("server out of memory")

	// ErrMissingDependency indicates a referenced value (typically a
	// model filename) is not in the server's allowed list.
	ErrMissingDependency = errors.New("missing model or value")

	// ErrMissingCapability indicates a referenced node type is unknown
	// to the server.
	ErrMissingCapability = errors.New("missing node type")

	// ErrUnreachable indicates a transport-level connection failure.
	ErrUnreachable = errors.New("server unreachable")

	// ErrDeadline indicates the server took longer than the configured wait.
	ErrDeadline = errors.New("deadline exceeded")

	// ErrRejected indicates the server's validation named specific
	// nodes or fields as invalid.
	ErrRejected = errors.New("job rejected by server")

	// ErrUnclassified covers everything else; the raw message is surfaced.
	ErrUnclassified = errors.New("unclassified failure")
)

// Fault wraps a classified failure with the context callers surface to
// end users.
type Fault struct {
	// Op is the operation that failed (e.g., "submit", "poll").
	Op string

	// Cause is one of the sentinel causes above.
	Cause error

	// Message is the original server-reported text.
	Message string

	// Hint is an actionable suggestion, set for the causes where one
	// exists (out-of-memory, missing model).
	Hint string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("%s: %v: %s", f.Op, f.Cause, f.Message)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Cause)
}

// Unwrap returns the sentinel cause for errors.Is support.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// New builds a Fault for op with the given cause and raw message.
func New(op string, cause error, message string) *Fault {
	return &Fault{Op: op, Cause: cause, Message: message, Hint: hintFor(cause)}
}

func hintFor(cause error) string {
	switch {
	case errors.Is(cause, ErrResourceExhausted):
		return "reduce resolution or batch size, or free GPU memory on the server"
	case errors.Is(cause, ErrMissingDependency):
		return "install the named model on the server, or pick one from its catalog"
	case errors.Is(cause, ErrMissingCapability):
		return "install the node package providing this type on the server"
	default:
		return ""
	}
}

// IsResourceExhausted reports whether err classifies as remote out-of-memory.
func IsResourceExhausted(err error) bool { return errors.Is(err, ErrResourceExhausted) }

// IsMissingDependency reports whether err classifies as a missing model/value.
func IsMissingDependency(err error) bool { return errors.Is(err, ErrMissingDependency) }

// IsMissingCapability reports whether err classifies as an unknown node type.
func IsMissingCapability(err error) bool { return errors.Is(err, ErrMissingCapability) }

// IsUnreachable reports whether err classifies as a transport failure.
func IsUnreachable(err error) bool { return errors.Is(err, ErrUnreachable) }

// IsDeadline reports whether err classifies as a timeout.
func IsDeadline(err error) bool { return errors.Is(err, ErrDeadline) }

// IsRejected reports whether err classifies as structured validation rejection.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }
