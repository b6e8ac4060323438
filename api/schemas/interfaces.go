package schemas

import "errors"

// ErrDetached is returned by Element.SetStyle when the element is no longer
// connected to a document.
var ErrDetached = errors.New("element is detached from the document")

// -- Document Interfaces --

// Element is the minimal view of a DOM element the editor needs. Both the
// in-memory document and the Chrome-backed document implement it.
type Element interface {
	// ID returns a stable identifier for logging and lookups.
	ID() string
	// Style returns the inline value of a CSS property, or "" when unset.
	Style(property string) string
	// SetStyle writes an inline CSS property. An empty value removes it.
	SetStyle(property, value string) error
	// BoundingClientRect returns the element's rendered box in viewport
	// coordinates. Detached or undisplayed elements report a zero rect.
	BoundingClientRect() Rect
	// Parent returns the parent element, or nil for the root or a detached node.
	Parent() Element
	// IsConnected reports whether the element is attached to its document.
	IsConnected() bool
	Attr(name string) string
	SetAttr(name, value string) error
}

// Document creates and removes elements and resolves hit tests.
type Document interface {
	// CreateElement returns a new, detached element.
	CreateElement(tag string) (Element, error)
	// AppendToRoot attaches el as the last child of the document body.
	AppendToRoot(el Element) error
	RemoveElement(el Element) error
	// ElementFromPoint returns the topmost hit-testable element at (x, y), or nil.
	ElementFromPoint(x, y float64) Element
}

// EventTarget delivers InputEvents to registered listeners.
type EventTarget interface {
	// AddEventListener registers fn for events of type t and returns a
	// function that removes the registration.
	AddEventListener(t EventType, fn func(InputEvent)) (remove func())
}

// ChangeKind describes why an observed rect may have changed.
type ChangeKind string

const (
	ChangeInitial  ChangeKind = "initial"
	ChangeResize   ChangeKind = "resize"
	ChangeMutation ChangeKind = "mutation"
	ChangeViewport ChangeKind = "viewport"
	ChangePoll     ChangeKind = "poll"
)

// ChangeSource pushes layout-change notifications for an element. It plays
// the role ResizeObserver and MutationObserver play in a browser.
type ChangeSource interface {
	Watch(el Element, fn func(ChangeKind)) (cancel func())
}
