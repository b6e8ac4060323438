// Package layout computes element boxes from inline styles. It covers the
// subset of CSS the editor manipulates: positioned boxes, percentage and
// absolute lengths, and 2D transforms.
package layout

import (
	"math"
	"strings"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
)

// Styles is the property lookup layout needs. style.Declarations implements it.
type Styles interface {
	Lookup(property, fallback string) string
}

// Viewport is the size of the initial containing block in CSS px.
type Viewport struct {
	Width, Height float64
}

// Rect returns the viewport as a rect anchored at the origin.
func (vp Viewport) Rect() schemas.Rect {
	return schemas.Rect{Width: vp.Width, Height: vp.Height}
}

func (vp Viewport) lengthContext(reference float64) style.LengthContext {
	return style.LengthContext{Reference: reference, ViewportWidth: vp.Width, ViewportHeight: vp.Height}
}

// Position is the CSS position scheme of an element.
type Position string

const (
	PositionStatic   Position = "static"
	PositionRelative Position = "relative"
	PositionAbsolute Position = "absolute"
	PositionFixed    Position = "fixed"
)

// PositionOf reads the position property.
func PositionOf(s Styles) Position {
	switch Position(strings.ToLower(s.Lookup("position", "static"))) {
	case PositionRelative:
		return PositionRelative
	case PositionAbsolute:
		return PositionAbsolute
	case PositionFixed:
		return PositionFixed
	default:
		return PositionStatic
	}
}

// IsPositioned reports whether the element establishes a containing block for
// absolutely positioned descendants.
func IsPositioned(s Styles) bool {
	return PositionOf(s) != PositionStatic || hasTransform(s)
}

// IsDisplayed reports whether the element generates a box at all.
func IsDisplayed(s Styles) bool {
	return strings.ToLower(s.Lookup("display", "block")) != "none"
}

func hasTransform(s Styles) bool {
	t := strings.TrimSpace(s.Lookup("transform", "none"))
	return t != "" && t != "none"
}

// ResolveBox computes the untransformed border box of an element laid out
// in containing block cb. staticOrigin is where the element would sit in
// normal flow; this model stacks static boxes at their parent's origin.
func ResolveBox(s Styles, cb schemas.Rect, staticOrigin schemas.Point, vp Viewport) schemas.Rect {
	horizontal := vp.lengthContext(cb.Width)
	vertical := vp.lengthContext(cb.Height)
	lenX := func(prop string) (float64, bool) { return style.ParseLength(s.Lookup(prop, "auto"), horizontal) }
	lenY := func(prop string) (float64, bool) { return style.ParseLength(s.Lookup(prop, "auto"), vertical) }

	width, hasWidth := lenX("width")
	height, hasHeight := lenY("height")
	left, hasLeft := lenX("left")
	right, hasRight := lenX("right")
	top, hasTop := lenY("top")
	bottom, hasBottom := lenY("bottom")

	switch PositionOf(s) {
	case PositionAbsolute, PositionFixed:
		if !hasWidth {
			width = 0
			if hasLeft && hasRight {
				width = cb.Width - left - right
			}
		}
		if !hasHeight {
			height = 0
			if hasTop && hasBottom {
				height = cb.Height - top - bottom
			}
		}
		x, y := staticOrigin.X, staticOrigin.Y
		switch {
		case hasLeft:
			x = cb.Left + left
		case hasRight:
			x = cb.Right() - right - width
		}
		switch {
		case hasTop:
			y = cb.Top + top
		case hasBottom:
			y = cb.Bottom() - bottom - height
		}
		return schemas.Rect{Left: x, Top: y, Width: math.Max(0, width), Height: math.Max(0, height)}

	default:
		if !hasWidth {
			width = cb.Width
		}
		if !hasHeight {
			height = 0
		}
		r := schemas.Rect{Left: staticOrigin.X, Top: staticOrigin.Y, Width: math.Max(0, width), Height: math.Max(0, height)}
		if PositionOf(s) == PositionRelative {
			switch {
			case hasLeft:
				r.Left += left
			case hasRight:
				r.Left -= right
			}
			switch {
			case hasTop:
				r.Top += top
			case hasBottom:
				r.Top -= bottom
			}
		}
		return r
	}
}

// BoundingRect returns the viewport-space bounding box of an element whose
// untransformed border box is box.
func BoundingRect(s Styles, box schemas.Rect, vp Viewport) schemas.Rect {
	return TransformAbout(s, box, vp).BoundingBox(box)
}
