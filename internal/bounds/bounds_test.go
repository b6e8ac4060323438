package bounds

import (
	"math"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

var start = schemas.Bounds{X: 100, Y: 100, Width: 200, Height: 150}

func TestComputeMove(t *testing.T) {
	got := ComputeMove(start, -30, 12.5)
	assert.Equal(t, schemas.Bounds{X: 70, Y: 112.5, Width: 200, Height: 150}, got)
}

func TestComputeResizeTable(t *testing.T) {
	const dx, dy = 10, 20
	tests := []struct {
		handle schemas.HandleKind
		want   schemas.Bounds
	}{
		{schemas.HandleNW, schemas.Bounds{X: 110, Y: 120, Width: 190, Height: 130}},
		{schemas.HandleN, schemas.Bounds{X: 100, Y: 120, Width: 200, Height: 130}},
		{schemas.HandleNE, schemas.Bounds{X: 100, Y: 120, Width: 210, Height: 130}},
		{schemas.HandleE, schemas.Bounds{X: 100, Y: 100, Width: 210, Height: 150}},
		{schemas.HandleSE, schemas.Bounds{X: 100, Y: 100, Width: 210, Height: 170}},
		{schemas.HandleS, schemas.Bounds{X: 100, Y: 100, Width: 200, Height: 170}},
		{schemas.HandleSW, schemas.Bounds{X: 110, Y: 100, Width: 190, Height: 170}},
		{schemas.HandleW, schemas.Bounds{X: 110, Y: 100, Width: 190, Height: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.handle.String(), func(t *testing.T) {
			got, err := ComputeResize(start, tt.handle, dx, dy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeResizeZeroDeltaIsIdentity(t *testing.T) {
	for _, h := range schemas.ResizeHandles {
		got, err := ComputeResize(start, h, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, start, got, h.String())
	}
}

func TestComputeResizeInvalidHandle(t *testing.T) {
	for _, h := range []schemas.HandleKind{schemas.HandleInvalid, schemas.HandleMove, schemas.HandleKind(99)} {
		_, err := ComputeResize(start, h, 1, 1)
		assert.ErrorIs(t, err, boxerr.ErrInvalidHandle, h.String())
	}
}

func TestComputeScenarioSouthEast(t *testing.T) {
	got, err := Compute(start, schemas.HandleSE, schemas.Point{X: 50, Y: -30}, schemas.ModNone, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 100, Y: 100, Width: 250, Height: 120}, got)
}

func TestComputeScenarioNorthWestClamp(t *testing.T) {
	got, err := Compute(start, schemas.HandleNW, schemas.Point{X: 300, Y: 0}, schemas.ModNone, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 280, Y: 100, Width: 20, Height: 150}, got)
}

func TestMinSizeKeepsFarEdgeAnchored(t *testing.T) {
	const minW, minH = 20, 30
	// Overshoot every handle well past the opposite edge.
	deltas := map[schemas.HandleKind]schemas.Point{
		schemas.HandleNW: {X: 500, Y: 500},
		schemas.HandleN:  {Y: 500},
		schemas.HandleNE: {X: -500, Y: 500},
		schemas.HandleE:  {X: -500},
		schemas.HandleSE: {X: -500, Y: -500},
		schemas.HandleS:  {Y: -500},
		schemas.HandleSW: {X: 500, Y: -500},
		schemas.HandleW:  {X: 500},
	}
	for h, d := range deltas {
		got, err := Compute(start, h, d, schemas.ModNone, minW, minH)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, got.Width, float64(minW), h.String())
		assert.GreaterOrEqual(t, got.Height, float64(minH), h.String())
		if h.HasWest() {
			assert.Equal(t, start.X+start.Width, got.X+got.Width, "%s: right edge must stay", h)
		}
		if h.HasEast() {
			assert.Equal(t, start.X, got.X, "%s: left edge must stay", h)
		}
		if h.HasNorth() {
			assert.Equal(t, start.Y+start.Height, got.Y+got.Height, "%s: bottom edge must stay", h)
		}
		if h.HasSouth() {
			assert.Equal(t, start.Y, got.Y, "%s: top edge must stay", h)
		}
	}
}

func TestMinSizeIgnoresMove(t *testing.T) {
	tiny := schemas.Bounds{X: 1, Y: 1, Width: 5, Height: 5}
	assert.Equal(t, tiny, ApplyMinSizeConstraint(tiny, tiny, schemas.HandleMove, 20, 20))
}

func TestShiftPreservesAspectRatio(t *testing.T) {
	ratio := start.Width / start.Height
	deltas := []schemas.Point{{X: 50, Y: -30}, {X: -10, Y: 80}, {X: 7, Y: 7}, {X: 0, Y: 40}, {X: -60, Y: 0}}
	for _, h := range schemas.ResizeHandles {
		for _, d := range deltas {
			got, err := Compute(start, h, d, schemas.ModShift, 1, 1)
			require.NoError(t, err)
			assert.InDelta(t, ratio, got.Width/got.Height, 1e-9, "%s %v", h, d)
		}
	}
}

func TestShiftKeepsMinimumSize(t *testing.T) {
	// The clamp leaves 20x150, the lock brings height down to 15, and the
	// result is scaled back up so neither side is under 20.
	got, err := Compute(start, schemas.HandleSE, schemas.Point{X: -190}, schemas.ModShift, 20, 20)
	require.NoError(t, err)
	want := schemas.Bounds{X: 100, Y: 100, Width: 80.0 / 3, Height: 20}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("shift se mismatch (-want +got):\n%s", diff)
	}

	got, err = Compute(start, schemas.HandleNW, schemas.Point{X: 190}, schemas.ModShift, 20, 20)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got.Height, 1e-9)
	assert.InDelta(t, start.X+start.Width, got.X+got.Width, 1e-9, "right edge stays")
	assert.InDelta(t, start.Y+start.Height, got.Y+got.Height, 1e-9, "bottom edge stays")

	got, err = Compute(start, schemas.HandleE, schemas.Point{X: -190}, schemas.ModShift|schemas.ModAlt, 20, 20)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got.Height, 1e-9)
	assert.InDelta(t, start.Center().X, got.Center().X, 1e-9)
	assert.InDelta(t, start.Center().Y, got.Center().Y, 1e-9)
}

func TestShiftCornerAnchorsOppositeCorner(t *testing.T) {
	// Width grows more than height: height follows width, bottom-right stays.
	got, err := Compute(start, schemas.HandleNW, schemas.Point{X: -100, Y: -10}, schemas.ModShift, 20, 20)
	require.NoError(t, err)
	want := schemas.Bounds{X: 0, Y: 25, Width: 300, Height: 225}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("shift nw mismatch (-want +got):\n%s", diff)
	}
}

func TestShiftEdgeHandleRecentres(t *testing.T) {
	got, err := Compute(start, schemas.HandleS, schemas.Point{Y: 150}, schemas.ModShift, 20, 20)
	require.NoError(t, err)
	// Height doubles, width follows and stays centred on the start box.
	want := schemas.Bounds{X: 0, Y: 100, Width: 400, Height: 300}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("shift s mismatch (-want +got):\n%s", diff)
	}
}

func TestAltKeepsCentre(t *testing.T) {
	c := start.Center()
	for _, h := range schemas.ResizeHandles {
		got, err := Compute(start, h, schemas.Point{X: 24, Y: -18}, schemas.ModAlt, 1, 1)
		require.NoError(t, err)
		assert.InDelta(t, c.X, got.Center().X, 1e-9, h.String())
		assert.InDelta(t, c.Y, got.Center().Y, 1e-9, h.String())
	}
}

func TestShiftThenAlt(t *testing.T) {
	got, err := Compute(start, schemas.HandleSE, schemas.Point{X: 100, Y: 0}, schemas.ModShift|schemas.ModAlt, 20, 20)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, got.Width, 1e-9)
	assert.InDelta(t, 225.0, got.Height, 1e-9)
	assert.InDelta(t, start.Center().X, got.Center().X, 1e-9)
	assert.InDelta(t, start.Center().Y, got.Center().Y, 1e-9)
}

func TestModifiersIgnoredForMove(t *testing.T) {
	got, err := Compute(start, schemas.HandleMove, schemas.Point{X: 5, Y: 5}, schemas.ModShift|schemas.ModAlt, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 105, Y: 105, Width: 200, Height: 150}, got)
}

func TestShiftWithDegenerateStartIsNoop(t *testing.T) {
	flat := schemas.Bounds{X: 0, Y: 0, Width: 100, Height: 0}
	b := schemas.Bounds{X: 0, Y: 0, Width: 140, Height: 20}
	assert.Equal(t, b, ApplyModifiers(b, flat, schemas.HandleSE, schemas.ModShift))
}

type fuzzDrag struct {
	X, Y, W, H float64
	DX, DY     float64
	Handle     uint8
	Mods       uint8
}

func sane(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e6
}

// FuzzCompute checks the invariants that must hold for any drag: resize
// results never fall below the minimum size, with or without modifiers, and
// moves never change size.
func FuzzCompute(f *testing.F) {
	f.Add([]byte("seed-corpus-nw-0001"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var in fuzzDrag
		if err := fuzz.NewConsumer(data).GenerateStruct(&in); err != nil {
			return
		}
		for _, v := range []float64{in.X, in.Y, in.W, in.H, in.DX, in.DY} {
			if !sane(v) {
				return
			}
		}
		s := schemas.Bounds{X: in.X, Y: in.Y, Width: math.Abs(in.W) + 20, Height: math.Abs(in.H) + 20}
		handle := schemas.HandleKind(int(in.Handle)%9 + 1)
		mods := schemas.KeyModifier(in.Mods) & (schemas.ModShift | schemas.ModAlt)

		got, err := Compute(s, handle, schemas.Point{X: in.DX, Y: in.DY}, schemas.ModNone, 20, 20)
		require.NoError(t, err)
		if handle == schemas.HandleMove {
			assert.Equal(t, s.Width, got.Width)
			assert.Equal(t, s.Height, got.Height)
			return
		}
		assert.GreaterOrEqual(t, got.Width, 20.0)
		assert.GreaterOrEqual(t, got.Height, 20.0)

		withMods, err := Compute(s, handle, schemas.Point{X: in.DX, Y: in.DY}, mods, 20, 20)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, withMods.Width, 20-1e-9)
		assert.GreaterOrEqual(t, withMods.Height, 20-1e-9)
		if mods.Has(schemas.ModShift) {
			assert.InEpsilon(t, s.Width/s.Height, withMods.Width/withMods.Height, 1e-6)
		}
	})
}
