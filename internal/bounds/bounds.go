// Package bounds holds the pure geometry used while a box is being dragged:
// moves, per-handle resizes, minimum-size clamping and the Shift/Alt
// modifier adjustments. All inputs and outputs are parent-relative pixels.
package bounds

import (
	"math"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
)

// edgeRule gives, per handle, how the pointer delta feeds each component of
// the bounds. A coefficient of 1 adds the delta, -1 subtracts it.
type edgeRule struct {
	x, w float64 // multiplied by dx
	y, h float64 // multiplied by dy
}

var resizeRules = map[schemas.HandleKind]edgeRule{
	schemas.HandleNW: {x: 1, w: -1, y: 1, h: -1},
	schemas.HandleN:  {y: 1, h: -1},
	schemas.HandleNE: {w: 1, y: 1, h: -1},
	schemas.HandleE:  {w: 1},
	schemas.HandleSE: {w: 1, h: 1},
	schemas.HandleS:  {h: 1},
	schemas.HandleSW: {x: 1, w: -1, h: 1},
	schemas.HandleW:  {x: 1, w: -1},
}

// ComputeMove translates start by (dx, dy) keeping its size.
func ComputeMove(start schemas.Bounds, dx, dy float64) schemas.Bounds {
	start.X += dx
	start.Y += dy
	return start
}

// ComputeResize moves the edges named by handle by (dx, dy). The opposite
// edges stay where they were. A zero delta returns start unchanged.
func ComputeResize(start schemas.Bounds, handle schemas.HandleKind, dx, dy float64) (schemas.Bounds, error) {
	rule, ok := resizeRules[handle]
	if !ok {
		return start, boxerr.New("bounds.ComputeResize", boxerr.KindInvalidHandle, "", "not a resize handle: "+handle.String())
	}
	return schemas.Bounds{
		X:      start.X + rule.x*dx,
		Y:      start.Y + rule.y*dy,
		Width:  start.Width + rule.w*dx,
		Height: start.Height + rule.h*dy,
	}, nil
}

// ApplyMinSizeConstraint clamps width and height to the minimums. When the
// dragged edge is the west or north one, the opposite edge stays put, so x or
// y is recomputed from the far edge of start. Moves are never clamped.
func ApplyMinSizeConstraint(b, start schemas.Bounds, handle schemas.HandleKind, minWidth, minHeight float64) schemas.Bounds {
	if !handle.IsResize() {
		return b
	}
	if b.Width < minWidth {
		b.Width = minWidth
		if handle.HasWest() {
			b.X = start.X + start.Width - minWidth
		}
	}
	if b.Height < minHeight {
		b.Height = minHeight
		if handle.HasNorth() {
			b.Y = start.Y + start.Height - minHeight
		}
	}
	return b
}

// ApplyModifiers applies Shift (keep the aspect ratio of start) and then Alt
// (keep the centre of start) to a resize result. Moves pass through.
func ApplyModifiers(b, start schemas.Bounds, handle schemas.HandleKind, mods schemas.KeyModifier) schemas.Bounds {
	if !handle.IsResize() {
		return b
	}
	if mods.Has(schemas.ModShift) {
		b = lockAspect(b, start, handle)
	}
	if mods.Has(schemas.ModAlt) {
		c := start.Center()
		b.X = c.X - b.Width/2
		b.Y = c.Y - b.Height/2
	}
	return b
}

func lockAspect(b, start schemas.Bounds, handle schemas.HandleKind) schemas.Bounds {
	ratio := start.AspectRatio()
	if ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return b
	}

	switch {
	case handle == schemas.HandleN || handle == schemas.HandleS:
		// Only the height was dragged; width follows, centred on the start box.
		b.Width = b.Height * ratio
		b.X = start.X - (b.Width-start.Width)/2
	case handle == schemas.HandleE || handle == schemas.HandleW:
		b.Height = b.Width / ratio
		b.Y = start.Y - (b.Height-start.Height)/2
	default:
		if math.Abs(b.Width-start.Width) > math.Abs(b.Height-start.Height) {
			b.Height = b.Width / ratio
		} else {
			b.Width = b.Height * ratio
		}
		b.X = anchor(start.X, start.Width, b.Width, handle.HasWest())
		b.Y = anchor(start.Y, start.Height, b.Height, handle.HasNorth())
	}
	return b
}

// anchor returns the new origin along one axis. When the dragged edge is the
// leading one, the trailing edge of the start box stays fixed.
func anchor(startPos, startSize, size float64, leadingEdge bool) float64 {
	if leadingEdge {
		return startPos + startSize - size
	}
	return startPos
}

// holdAspectMinimum grows an aspect-locked result back to the minimum size.
// Locking the ratio recomputes one side from the other, which can undo the
// earlier clamp. Both sides scale together and the box is placed the way the
// modifiers placed it.
func holdAspectMinimum(b, start schemas.Bounds, handle schemas.HandleKind, mods schemas.KeyModifier, minWidth, minHeight float64) schemas.Bounds {
	if !mods.Has(schemas.ModShift) || b.Width <= 0 || b.Height <= 0 {
		return b
	}
	scale := math.Max(minWidth/b.Width, minHeight/b.Height)
	if scale <= 1 {
		return b
	}
	b.Width *= scale
	b.Height *= scale
	if mods.Has(schemas.ModAlt) {
		c := start.Center()
		b.X = c.X - b.Width/2
		b.Y = c.Y - b.Height/2
		return b
	}
	b.X = place(start.X, start.Width, b.Width, handle.HasWest(), handle.HasEast())
	b.Y = place(start.Y, start.Height, b.Height, handle.HasNorth(), handle.HasSouth())
	return b
}

// place is anchor for an axis that may not have been dragged at all, in which
// case the box stays centred on start.
func place(startPos, startSize, size float64, leading, trailing bool) float64 {
	if !leading && !trailing {
		return startPos - (size-startSize)/2
	}
	return anchor(startPos, startSize, size, leading)
}

// Compute runs the full per-move pipeline: move or resize from start by
// delta, then the minimum-size clamp, then modifiers. An aspect lock that
// shrank a side below the minimum is scaled back up.
func Compute(start schemas.Bounds, handle schemas.HandleKind, delta schemas.Point, mods schemas.KeyModifier, minWidth, minHeight float64) (schemas.Bounds, error) {
	if handle == schemas.HandleMove {
		return ComputeMove(start, delta.X, delta.Y), nil
	}
	b, err := ComputeResize(start, handle, delta.X, delta.Y)
	if err != nil {
		return start, err
	}
	b = ApplyMinSizeConstraint(b, start, handle, minWidth, minHeight)
	b = ApplyModifiers(b, start, handle, mods)
	return holdAspectMinimum(b, start, handle, mods, minWidth, minHeight), nil
}
