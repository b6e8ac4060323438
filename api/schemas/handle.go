package schemas

import (
	"fmt"
	"strings"
)

// -- Handle Schemas --

// HandleKind identifies one of the overlay's grab handles. The zero value is
// not a valid handle.
type HandleKind int

const (
	HandleInvalid HandleKind = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleMove
)

// ResizeHandles lists the eight resize handles in clockwise order from the
// top-left corner.
var ResizeHandles = []HandleKind{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

var handleNames = map[HandleKind]string{
	HandleNW:   "nw",
	HandleN:    "n",
	HandleNE:   "ne",
	HandleE:    "e",
	HandleSE:   "se",
	HandleS:    "s",
	HandleSW:   "sw",
	HandleW:    "w",
	HandleMove: "move",
}

// ParseHandleKind converts a handle tag ("nw", "e", "move", ...) into a HandleKind.
func ParseHandleKind(s string) (HandleKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range handleNames {
		if name == s {
			return k, nil
		}
	}
	return HandleInvalid, fmt.Errorf("unknown handle %q", s)
}

// ParseDragType accepts "move" or "resize-<direction>".
func ParseDragType(s string) (HandleKind, error) {
	if s == "move" {
		return HandleMove, nil
	}
	dir, ok := strings.CutPrefix(s, "resize-")
	if !ok {
		return HandleInvalid, fmt.Errorf("unknown drag type %q", s)
	}
	k, err := ParseHandleKind(dir)
	if err != nil || k == HandleMove {
		return HandleInvalid, fmt.Errorf("unknown drag type %q", s)
	}
	return k, nil
}

func (h HandleKind) String() string {
	if name, ok := handleNames[h]; ok {
		return name
	}
	return fmt.Sprintf("HandleKind(%d)", int(h))
}

// DragType returns the drag type a press on this handle starts.
func (h HandleKind) DragType() string {
	if h == HandleMove {
		return "move"
	}
	return "resize-" + h.String()
}

// Valid reports whether h is one of the nine known handles.
func (h HandleKind) Valid() bool {
	_, ok := handleNames[h]
	return ok
}

// IsResize reports whether h is one of the eight resize handles.
func (h HandleKind) IsResize() bool { return h.Valid() && h != HandleMove }

func (h HandleKind) HasWest() bool  { return h == HandleNW || h == HandleW || h == HandleSW }
func (h HandleKind) HasEast() bool  { return h == HandleNE || h == HandleE || h == HandleSE }
func (h HandleKind) HasNorth() bool { return h == HandleNW || h == HandleN || h == HandleNE }
func (h HandleKind) HasSouth() bool { return h == HandleSW || h == HandleS || h == HandleSE }

// IsCorner reports whether h moves both a horizontal and a vertical edge.
func (h HandleKind) IsCorner() bool {
	return (h.HasWest() || h.HasEast()) && (h.HasNorth() || h.HasSouth())
}

// MarshalText renders the handle by its tag so reports stay readable.
func (h HandleKind) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("invalid handle kind %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText parses a handle tag.
func (h *HandleKind) UnmarshalText(text []byte) error {
	k, err := ParseHandleKind(string(text))
	if err != nil {
		return err
	}
	*h = k
	return nil
}
