package schemas

import (
	"fmt"
	"strconv"
)

// -- Geometry Schemas --

// Point is a position in viewport coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns the vector from o to p.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Rect is a viewport-relative rectangle as reported by getBoundingClientRect.
// Right and Bottom are derived.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Valid reports whether the rect has a usable, non-degenerate size.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Center returns the visual centre of the rect.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// Contains reports whether (x, y) lies inside the rect. The right and bottom
// edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x < r.Right() && y >= r.Top && y < r.Bottom()
}

// Translate returns the rect moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.Left += dx
	r.Top += dy
	return r
}

func (r Rect) String() string {
	return fmt.Sprintf("{left:%g top:%g width:%g height:%g}", r.Left, r.Top, r.Width, r.Height)
}

// Bounds is a box in pixels relative to the top-left of the parent element.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the centre of the bounds in parent-relative pixels.
func (b Bounds) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// AspectRatio returns Width/Height, or 0 when the height is zero.
func (b Bounds) AspectRatio() float64 {
	if b.Height == 0 {
		return 0
	}
	return b.Width / b.Height
}

func (b Bounds) String() string {
	return fmt.Sprintf("{x:%g y:%g width:%g height:%g}", b.X, b.Y, b.Width, b.Height)
}

// PercentBounds expresses an element's centre position and size as
// percentages of its parent. Left/Top locate the centre, not the corner.
type PercentBounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PercentCSS holds the four style strings written on commit.
type PercentCSS struct {
	Left   string `json:"left"`
	Top    string `json:"top"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// CSS formats the bounds with the given number of decimals, e.g. "50.0%".
func (p PercentBounds) CSS(precision int) PercentCSS {
	f := func(v float64) string {
		return strconv.FormatFloat(v, 'f', precision, 64) + "%"
	}
	return PercentCSS{Left: f(p.Left), Top: f(p.Top), Width: f(p.Width), Height: f(p.Height)}
}
