// Package boxerr defines the error kinds surfaced by the box editor.
package boxerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an editor error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidHandle: a drag named a handle outside the nine known handles.
	KindInvalidHandle
	// KindCoordinateConversion: the parent or element rect was unusable when
	// committing. The commit is aborted and may be retried.
	KindCoordinateConversion
	// KindConcurrentDrag: StartDrag was called while a drag was active.
	KindConcurrentDrag
	// KindDetachedElement: the target element left the document mid-edit.
	KindDetachedElement
	// KindInvalidState: the operation is not allowed in the current mode.
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidHandle:
		return "invalid_handle"
	case KindCoordinateConversion:
		return "coordinate_conversion"
	case KindConcurrentDrag:
		return "concurrent_drag"
	case KindDetachedElement:
		return "detached_element"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching. Any *Error with the same Kind matches.
var (
	ErrInvalidHandle        = &Error{Kind: KindInvalidHandle}
	ErrCoordinateConversion = &Error{Kind: KindCoordinateConversion}
	ErrConcurrentDrag       = &Error{Kind: KindConcurrentDrag}
	ErrDetachedElement      = &Error{Kind: KindDetachedElement}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
)

// Error is a structured editor error.
type Error struct {
	// Op is the operation that failed (e.g., "editbox.ExitEditing").
	Op   string
	Kind Kind
	// NodeID identifies the editable box, if known.
	NodeID string
	// Reason is a short human-readable cause.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	if e.NodeID != "" {
		msg += " node=" + e.NodeID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind.
func New(op string, kind Kind, nodeID, reason string) *Error {
	return &Error{Op: op, Kind: kind, NodeID: nodeID, Reason: reason}
}

// Wrap builds an Error of the given kind around err.
func Wrap(op string, kind Kind, nodeID string, err error) *Error {
	return &Error{Op: op, Kind: kind, NodeID: nodeID, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
