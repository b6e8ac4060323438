package schemas

import "strings"

// -- Input Schemas --

// KeyModifier represents keyboard modifiers (Ctrl, Alt, Shift, Meta).
// These values correspond directly to the CDP input.DispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1 // Corresponds to CDP modifier 1
	ModCtrl  KeyModifier = 2 // Corresponds to CDP modifier 2
	ModMeta  KeyModifier = 4 // Corresponds to CDP modifier 4
	ModShift KeyModifier = 8 // Corresponds to CDP modifier 8
)

// Has reports whether all bits of m2 are set in m.
func (m KeyModifier) Has(m2 KeyModifier) bool { return m&m2 == m2 && m2 != 0 }

// ParseKeyModifiers builds a bitmask from names like "shift" or "alt".
// Unknown names are returned in the second result.
func ParseKeyModifiers(names []string) (KeyModifier, []string) {
	var m KeyModifier
	var unknown []string
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "alt", "option":
			m |= ModAlt
		case "ctrl", "control":
			m |= ModCtrl
		case "meta", "cmd", "command":
			m |= ModMeta
		case "shift":
			m |= ModShift
		default:
			unknown = append(unknown, n)
		}
	}
	return m, unknown
}

func (m KeyModifier) String() string {
	if m == ModNone {
		return "none"
	}
	var parts []string
	for _, mod := range []struct {
		bit  KeyModifier
		name string
	}{{ModShift, "shift"}, {ModAlt, "alt"}, {ModCtrl, "ctrl"}, {ModMeta, "meta"}} {
		if m&mod.bit != 0 {
			parts = append(parts, mod.name)
		}
	}
	return strings.Join(parts, "+")
}

func (m KeyModifier) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// EventType names an input event delivered to an EventTarget.
type EventType string

const (
	EventPointerDown        EventType = "pointerdown"
	EventPointerMove        EventType = "pointermove"
	EventPointerUp          EventType = "pointerup"
	EventPointerCancel      EventType = "pointercancel"
	EventLostPointerCapture EventType = "lostpointercapture"
	EventBlur               EventType = "blur"
	EventKeyDown            EventType = "keydown"
	EventKeyUp              EventType = "keyup"
	EventTouchStart         EventType = "touchstart"
	EventTouchMove          EventType = "touchmove"
	EventTouchEnd           EventType = "touchend"
	EventTouchCancel        EventType = "touchcancel"
)

// TouchPoint is one active touch contact.
type TouchPoint struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// InputEvent encapsulates a pointer, touch, keyboard or focus event.
type InputEvent struct {
	Type      EventType   `json:"type"`
	PointerID int         `json:"pointerId"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Target    Element     `json:"-"`
	Modifiers KeyModifier `json:"modifiers"`
	// Key is the DOM key value for keyboard events ("Escape", "Shift", ...).
	Key string `json:"key,omitempty"`
	// Touches holds the active touches for touch events. Only the first is used.
	Touches []TouchPoint `json:"touches,omitempty"`
}

// Point returns the event position.
func (e InputEvent) Point() Point {
	return Point{X: e.X, Y: e.Y}
}
