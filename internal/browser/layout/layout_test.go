// internal/browser/layout/layout_test.go
package layout

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
)

var (
	vp     = Viewport{Width: 1280, Height: 720}
	approx = cmpopts.EquateApprox(0, 1e-9)
)

func assertRect(t *testing.T, want, got schemas.Rect) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("rect mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixInverse(t *testing.T) {
	m := TranslateMatrix(10, -4).Multiply(ScaleMatrix(2, 3))
	inv, err := m.Inverse()
	require.NoError(t, err)

	x, y := m.Apply(7, 9)
	bx, by := inv.Apply(x, y)
	assert.InDelta(t, 7.0, bx, 1e-9)
	assert.InDelta(t, 9.0, by, 1e-9)

	_, err = ScaleMatrix(0, 1).Inverse()
	assert.Error(t, err)
}

func TestResolveBoxAbsolutePercent(t *testing.T) {
	parent := schemas.Rect{Left: 0, Top: 0, Width: 1000, Height: 500}
	s := style.Parse("position: absolute; left: 50%; top: 50%; width: 20%; height: 20%; transform: translate(-50%, -50%)")

	box := ResolveBox(s, parent, schemas.Point{}, vp)
	assertRect(t, schemas.Rect{Left: 500, Top: 250, Width: 200, Height: 100}, box)

	// The centring transform moves the visual box so its centre sits at left/top.
	assertRect(t, schemas.Rect{Left: 400, Top: 200, Width: 200, Height: 100}, BoundingRect(s, box, vp))
}

func TestResolveBoxAbsolutePixels(t *testing.T) {
	parent := schemas.Rect{Left: 40, Top: 30, Width: 600, Height: 400}
	s := style.Parse("position: absolute; left: 100px; top: 100px; width: 250px; height: 120px; transform: none")

	box := ResolveBox(s, parent, schemas.Point{X: 40, Y: 30}, vp)
	assertRect(t, schemas.Rect{Left: 140, Top: 130, Width: 250, Height: 120}, box)
	assertRect(t, box, BoundingRect(s, box, vp))
}

func TestResolveBoxRightBottomAndStretch(t *testing.T) {
	cb := schemas.Rect{Left: 0, Top: 0, Width: 200, Height: 100}

	s := style.Parse("position: absolute; right: -4px; bottom: -4px; width: 8px; height: 8px")
	assertRect(t, schemas.Rect{Left: 196, Top: 96, Width: 8, Height: 8}, ResolveBox(s, cb, schemas.Point{}, vp))

	s = style.Parse("position: absolute; left: 10px; right: 10px; top: 0; bottom: 0")
	assertRect(t, schemas.Rect{Left: 10, Top: 0, Width: 180, Height: 100}, ResolveBox(s, cb, schemas.Point{}, vp))
}

func TestResolveBoxStatic(t *testing.T) {
	cb := schemas.Rect{Left: 10, Top: 20, Width: 300, Height: 200}

	// An empty static block fills the width and has no height.
	s := style.Parse("")
	assertRect(t, schemas.Rect{Left: 10, Top: 20, Width: 300, Height: 0}, ResolveBox(s, cb, schemas.Point{X: 10, Y: 20}, vp))

	s = style.Parse("position: relative; top: 5px; left: 5px; height: 50px")
	assertRect(t, schemas.Rect{Left: 15, Top: 25, Width: 300, Height: 50}, ResolveBox(s, cb, schemas.Point{X: 10, Y: 20}, vp))
}

func TestRotatedBoundingBox(t *testing.T) {
	box := schemas.Rect{Left: 0, Top: 0, Width: 100, Height: 100}
	s := style.Parse("transform: rotate(45deg)")

	got := BoundingRect(s, box, vp)
	d := 100 * math.Sqrt2
	assertRect(t, schemas.Rect{Left: 50 - d/2, Top: 50 - d/2, Width: d, Height: d}, got)
}

func TestParseTransformFunctions(t *testing.T) {
	box := schemas.Rect{Width: 200, Height: 100}
	tests := []struct {
		value    string
		x, y     float64
		wantX, wantY float64
	}{
		{"translateX(10px)", 0, 0, 10, 0},
		{"translateY(50%)", 0, 0, 0, 50},
		{"scale(2)", 3, 4, 6, 8},
		{"scaleX(2) scaleY(3)", 1, 1, 2, 3},
		{"matrix(1, 0, 0, 1, 5, 6)", 0, 0, 5, 6},
		{"translate(10px) scale(2)", 1, 1, 12, 2},
		{"skew(10deg)", 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			x, y := ParseTransform(tt.value, box, vp).Apply(tt.x, tt.y)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
		})
	}
}

func TestParseAngle(t *testing.T) {
	assert.InDelta(t, math.Pi/2, parseAngle("90deg"), 1e-12)
	assert.InDelta(t, math.Pi/2, parseAngle("100grad"), 1e-12)
	assert.InDelta(t, math.Pi, parseAngle("0.5turn"), 1e-12)
	assert.InDelta(t, 1.0, parseAngle("1rad"), 1e-12)
	assert.InDelta(t, math.Pi/2, parseAngle("90"), 1e-12)
}

func TestPositionAndDisplay(t *testing.T) {
	assert.Equal(t, PositionStatic, PositionOf(style.Parse("")))
	assert.Equal(t, PositionFixed, PositionOf(style.Parse("position: FIXED")))
	assert.False(t, IsPositioned(style.Parse("position: static")))
	assert.True(t, IsPositioned(style.Parse("transform: scale(1)")))
	assert.False(t, IsDisplayed(style.Parse("display: none")))
	assert.True(t, IsDisplayed(style.Parse("display: inline-block")))
}
