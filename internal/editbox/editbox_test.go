package editbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
	"github.com/xkilldash9x/boxedit/internal/browser/dom"
	"github.com/xkilldash9x/boxedit/internal/browser/layout"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/rectobserver"
)

const spineStyle = "position: absolute; left: 50%; top: 50%; width: 20%; height: 20%; transform: translate(-50%, -50%);"

const page = `<html><body>
<div id="stage" style="position: absolute; left: 0px; top: 0px; width: 1000px; height: 500px;">
	<img id="spine" style="` + spineStyle + `">
</div>
</body></html>`

var approx = cmpopts.EquateApprox(0, 1e-9)

type harness struct {
	doc    *dom.Document
	stage  *dom.Element
	spine  *dom.Element
	box    *EditableBox
	errs   []error
	events []string
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	doc, err := dom.ParseString(page, layout.Viewport{Width: 1280, Height: 720}, logger)
	require.NoError(t, err)
	h := &harness{doc: doc}
	h.stage, err = doc.Query("//*[@id='stage']")
	require.NoError(t, err)
	h.spine, err = doc.Query("//*[@id='spine']")
	require.NoError(t, err)

	opts := Options{
		NodeID:   "bb-test",
		Logger:   logger,
		Observer: rectobserver.New(logger, config.ObserverConfig{DuplicateThreshold: 0.05}, doc),
		Errors:   boxerr.HandlerFunc(func(err error) { h.errs = append(h.errs, err) }),
		Hooks: Hooks{
			OnEnterEditing: func() { h.events = append(h.events, "enter") },
			OnExitEditing:  func(schemas.PercentBounds) { h.events = append(h.events, "exit") },
			OnDragUpdate:   func(schemas.Bounds) { h.events = append(h.events, "drag") },
			OnCancel:       func() { h.events = append(h.events, "cancel") },
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.box, err = New(h.spine, opts)
	require.NoError(t, err)
	return h
}

func (h *harness) pct(t *testing.T, prop string) float64 {
	t.Helper()
	v, ok := style.ParsePercent(h.spine.Style(prop))
	require.True(t, ok, "%s = %q", prop, h.spine.Style(prop))
	return v
}

func TestNewDefaults(t *testing.T) {
	doc, err := dom.ParseString(page, layout.Viewport{Width: 1280, Height: 720}, nil)
	require.NoError(t, err)
	spine, err := doc.Query("//*[@id='spine']")
	require.NoError(t, err)

	box, err := New(spine, Options{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, box.minWidth)
	assert.Equal(t, 20.0, box.minHeight)
	assert.Equal(t, 1, box.precision)
	assert.Regexp(t, `^bb-[0-9a-f-]{36}$`, box.NodeID())
	assert.Equal(t, ModeIdle, box.Mode())

	_, err = New(nil, Options{})
	assert.ErrorIs(t, err, boxerr.ErrDetachedElement)
}

func TestExitEditingWritesCentreAnchoredPercentages(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 200, Height: 100}, h.spine.BoundingClientRect())

	h.box.EnterEditing()
	pb, err := h.box.ExitEditing()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(schemas.PercentBounds{Left: 50, Top: 50, Width: 20, Height: 20}, pb, approx))
	assert.Equal(t, "50.0%", h.spine.Style("left"))
	assert.Equal(t, "50.0%", h.spine.Style("top"))
	assert.Equal(t, "20.0%", h.spine.Style("width"))
	assert.Equal(t, "20.0%", h.spine.Style("height"))
	assert.Equal(t, BaseTransform, h.spine.Style("transform"))
	assert.Equal(t, ModeIdle, h.box.Mode())
	assert.Nil(t, h.box.State().Backup)
	assert.Equal(t, []string{"enter", "exit"}, h.events)
}

func TestEnterEditingDoesNotMoveTheElement(t *testing.T) {
	h := newHarness(t, nil)
	before := h.spine.BoundingClientRect()
	attr := h.spine.Attr("style")

	h.box.EnterEditing()
	h.box.EnterEditing()

	assert.Equal(t, before, h.spine.BoundingClientRect())
	assert.Equal(t, attr, h.spine.Attr("style"))
	state := h.box.State()
	assert.Equal(t, ModeEditing, state.Mode)
	require.NotNil(t, state.Backup)
	assert.Equal(t, Backup{Left: "50%", Top: "50%", Width: "20%", Height: "20%", Transform: "translate(-50%, -50%)"}, *state.Backup)
	assert.Equal(t, []string{"enter"}, h.events, "a second EnterEditing is a no-op")

	// The first drag write at the press point keeps the rendered box in place.
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 500, Y: 250}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 500, Y: 250})
	require.NoError(t, err)
	assert.Equal(t, before, h.spine.BoundingClientRect())
	assert.Equal(t, "none", h.spine.Style("transform"))
}

func TestRoundTripWithoutDrag(t *testing.T) {
	parents := [][2]float64{{1000, 500}, {333, 777}, {1280, 720}, {57, 41}}
	percents := []schemas.PercentBounds{
		{Left: 50, Top: 50, Width: 20, Height: 20},
		{Left: 37.3, Top: 61.9, Width: 12.5, Height: 44.4},
		{Left: 0, Top: 100, Width: 100, Height: 1},
		{Left: 12.3, Top: 87.6, Width: 3.3, Height: 66.6},
	}
	for _, parent := range parents {
		for _, p := range percents {
			h := newHarness(t, nil)
			require.NoError(t, h.stage.SetStyle("width", style.Pixels(parent[0])))
			require.NoError(t, h.stage.SetStyle("height", style.Pixels(parent[1])))
			css := p.CSS(1)
			for prop, v := range map[string]string{"left": css.Left, "top": css.Top, "width": css.Width, "height": css.Height} {
				require.NoError(t, h.spine.SetStyle(prop, v))
			}

			h.box.EnterEditing()
			_, err := h.box.ExitEditing()
			require.NoError(t, err)

			assert.InDelta(t, p.Left, h.pct(t, "left"), 0.1)
			assert.InDelta(t, p.Top, h.pct(t, "top"), 0.1)
			assert.InDelta(t, p.Width, h.pct(t, "width"), 0.1)
			assert.InDelta(t, p.Height, h.pct(t, "height"), 0.1)
		}
	}
}

func TestResizeDragWritesPixelsThenCommits(t *testing.T) {
	h := newHarness(t, nil)
	var updates []schemas.Bounds
	h.box.hooks.OnDragUpdate = func(b schemas.Bounds) { updates = append(updates, b) }

	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 600, Y: 300}, schemas.HandleSE, schemas.ModNone))
	assert.True(t, h.box.Dragging())

	got, err := h.box.UpdateDrag(schemas.Point{X: 650, Y: 320})
	require.NoError(t, err)
	want := schemas.Bounds{X: 400, Y: 200, Width: 250, Height: 120}
	assert.Equal(t, want, got)
	assert.Equal(t, []schemas.Bounds{want}, updates)

	assert.Equal(t, "400px", h.spine.Style("left"))
	assert.Equal(t, "200px", h.spine.Style("top"))
	assert.Equal(t, "250px", h.spine.Style("width"))
	assert.Equal(t, "120px", h.spine.Style("height"))
	assert.Equal(t, "none", h.spine.Style("transform"))
	assert.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 250, Height: 120}, h.spine.BoundingClientRect())

	h.box.EndDrag()
	assert.False(t, h.box.Dragging())
	assert.Equal(t, ModeEditing, h.box.Mode(), "EndDrag does not leave editing")

	pb, err := h.box.ExitEditing()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(schemas.PercentBounds{Left: 52.5, Top: 52, Width: 25, Height: 24}, pb, approx))
	assert.Equal(t, "52.5%", h.spine.Style("left"))
	assert.Equal(t, "52.0%", h.spine.Style("top"))
	assert.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 250, Height: 120}, h.spine.BoundingClientRect())
}

func TestFailedCommitRestoresPixelStyles(t *testing.T) {
	failWidth := true
	h := newHarness(t, func(o *Options) {
		o.Writer = StyleWriterFunc(func(el schemas.Element, property, value string) error {
			if failWidth && property == "width" && strings.HasSuffix(value, "%") {
				return errors.New("eval timeout")
			}
			return el.SetStyle(property, value)
		})
	})

	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 600, Y: 300}, schemas.HandleSE, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 650, Y: 330})
	require.NoError(t, err)
	h.box.EndDrag()

	attr := h.spine.Attr("style")
	rect := h.spine.BoundingClientRect()
	require.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 250, Height: 130}, rect)

	_, err = h.box.ExitEditing()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing width")
	assert.Equal(t, attr, h.spine.Attr("style"))
	assert.Equal(t, rect, h.spine.BoundingClientRect())
	assert.Equal(t, ModeEditing, h.box.Mode())

	failWidth = false
	pb, err := h.box.ExitEditing()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(schemas.PercentBounds{Left: 52.5, Top: 53, Width: 25, Height: 26}, pb, approx))
	assert.Equal(t, rect, h.spine.BoundingClientRect())
}

func TestFailedDragWriteKeepsPreviousBounds(t *testing.T) {
	failHeight := false
	h := newHarness(t, func(o *Options) {
		o.Writer = StyleWriterFunc(func(el schemas.Element, property, value string) error {
			if failHeight && property == "height" {
				return errors.New("eval timeout")
			}
			return el.SetStyle(property, value)
		})
	})

	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 500, Y: 250}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 510, Y: 250})
	require.NoError(t, err)
	attr := h.spine.Attr("style")

	failHeight = true
	_, err = h.box.UpdateDrag(schemas.Point{X: 560, Y: 290})
	require.Error(t, err)
	assert.Equal(t, attr, h.spine.Attr("style"))
	assert.Equal(t, schemas.Rect{Left: 410, Top: 200, Width: 200, Height: 100}, h.spine.BoundingClientRect())
}

func TestSecondDragContinuesFromWorkingBounds(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()

	require.NoError(t, h.box.StartDrag(schemas.Point{X: 500, Y: 250}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 520, Y: 240})
	require.NoError(t, err)
	h.box.EndDrag()

	require.NoError(t, h.box.StartDrag(schemas.Point{X: 0, Y: 0}, schemas.HandleE, schemas.ModNone))
	assert.Equal(t, schemas.Bounds{X: 420, Y: 190, Width: 200, Height: 100}, h.box.State().Session.StartBounds)
	got, err := h.box.UpdateDrag(schemas.Point{X: 30, Y: 99})
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 420, Y: 190, Width: 230, Height: 100}, got)
}

func TestMinSizeClampKeepsFarEdge(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MinWidth, o.MinHeight = 20, 30 })
	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 400, Y: 200}, schemas.HandleNW, schemas.ModNone))

	got, err := h.box.UpdateDrag(schemas.Point{X: 700, Y: 400})
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 580, Y: 270, Width: 20, Height: 30}, got)
	r := h.spine.BoundingClientRect()
	assert.Equal(t, 600.0, r.Right())
	assert.Equal(t, 300.0, r.Bottom())
}

func TestModifiersChangeMidDrag(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 600, Y: 300}, schemas.HandleSE, schemas.ModNone))

	got, err := h.box.UpdateDrag(schemas.Point{X: 700, Y: 310})
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 400, Y: 200, Width: 300, Height: 110}, got)

	h.box.SetModifiers(schemas.ModShift)
	got, err = h.box.UpdateDrag(schemas.Point{X: 700, Y: 310})
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 400, Y: 200, Width: 300, Height: 150}, got)

	h.box.SetModifiers(schemas.ModShift | schemas.ModAlt)
	got, err = h.box.UpdateDrag(schemas.Point{X: 700, Y: 310})
	require.NoError(t, err)
	assert.Equal(t, schemas.Bounds{X: 350, Y: 175, Width: 300, Height: 150}, got)
	assert.Equal(t, schemas.Point{X: 500, Y: 250}, got.Center())
}

func TestZeroSizedParentAbortsCommit(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 500, Y: 250}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 510, Y: 250})
	require.NoError(t, err)
	h.box.EndDrag()

	require.NoError(t, h.stage.SetStyle("width", "0px"))
	require.NoError(t, h.stage.SetStyle("height", "0px"))
	attr := h.spine.Attr("style")

	_, err = h.box.ExitEditing()
	require.Error(t, err)
	assert.ErrorIs(t, err, boxerr.ErrCoordinateConversion)
	assert.Equal(t, attr, h.spine.Attr("style"), "no style may be written")
	assert.Equal(t, ModeEditing, h.box.Mode())
	require.Len(t, h.errs, 1)
	assert.Equal(t, boxerr.KindCoordinateConversion, boxerr.KindOf(h.errs[0]))

	// Layout settles; the next commit succeeds.
	require.NoError(t, h.stage.SetStyle("width", "1000px"))
	require.NoError(t, h.stage.SetStyle("height", "500px"))
	pb, err := h.box.ExitEditing()
	require.NoError(t, err)
	assert.InDelta(t, 51.0, pb.Left, 1e-9)
	assert.Equal(t, ModeIdle, h.box.Mode())
}

func TestDetachedElement(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 500, Y: 250}, schemas.HandleMove, schemas.ModNone))
	require.NoError(t, h.doc.RemoveElement(h.spine))
	attr := h.spine.Attr("style")

	_, err := h.box.UpdateDrag(schemas.Point{X: 550, Y: 250})
	assert.ErrorIs(t, err, boxerr.ErrDetachedElement)
	assert.Equal(t, attr, h.spine.Attr("style"))

	_, err = h.box.ExitEditing()
	assert.ErrorIs(t, err, boxerr.ErrDetachedElement)
	assert.Equal(t, ModeEditing, h.box.Mode())

	err = h.box.CancelEditing()
	assert.ErrorIs(t, err, boxerr.ErrDetachedElement)
	assert.Equal(t, ModeIdle, h.box.Mode())
	assert.Len(t, h.errs, 3)
}

func TestStartDragOnDetachedElement(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()
	require.NoError(t, h.doc.RemoveElement(h.spine))

	err := h.box.StartDrag(schemas.Point{}, schemas.HandleMove, schemas.ModNone)
	assert.ErrorIs(t, err, boxerr.ErrDetachedElement)
	assert.False(t, h.box.Dragging())
}

func TestStartDragGuards(t *testing.T) {
	h := newHarness(t, nil)

	err := h.box.StartDrag(schemas.Point{}, schemas.HandleSE, schemas.ModNone)
	assert.ErrorIs(t, err, boxerr.ErrInvalidState, "StartDrag requires EnterEditing first")

	h.box.EnterEditing()
	err = h.box.StartDrag(schemas.Point{}, schemas.HandleKind(42), schemas.ModNone)
	assert.ErrorIs(t, err, boxerr.ErrInvalidHandle)
	assert.False(t, h.box.Dragging())

	_, err = h.box.UpdateDrag(schemas.Point{X: 1})
	assert.ErrorIs(t, err, boxerr.ErrInvalidState)

	require.NoError(t, h.box.StartDrag(schemas.Point{X: 1, Y: 2}, schemas.HandleSE, schemas.ModNone))
	err = h.box.StartDrag(schemas.Point{X: 9, Y: 9}, schemas.HandleMove, schemas.ModNone)
	assert.ErrorIs(t, err, boxerr.ErrConcurrentDrag)

	session := h.box.State().Session
	require.NotNil(t, session)
	assert.Equal(t, schemas.HandleSE, session.Handle, "the first drag stays authoritative")
	assert.Equal(t, schemas.Point{X: 1, Y: 2}, session.StartPointer)
	assert.Len(t, h.errs, 4)
}

func TestExitEditingWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	attr := h.spine.Attr("style")
	pb, err := h.box.ExitEditing()
	require.NoError(t, err)
	assert.Equal(t, schemas.PercentBounds{}, pb)
	assert.Equal(t, attr, h.spine.Attr("style"))
	assert.NoError(t, h.box.CancelEditing())
	assert.Empty(t, h.events)
}

func TestExitEditingEndsDanglingDrag(t *testing.T) {
	h := newHarness(t, nil)
	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.ExitEditing()
	require.NoError(t, err)
	assert.False(t, h.box.Dragging())
}

func TestCancelEditingRestoresBackup(t *testing.T) {
	h := newHarness(t, nil)
	attr := h.spine.Attr("style")
	require.Equal(t, spineStyle, attr)
	rect := h.spine.BoundingClientRect()

	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{X: 600, Y: 300}, schemas.HandleSE, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 680, Y: 350})
	require.NoError(t, err)
	require.NotEqual(t, rect, h.spine.BoundingClientRect())

	require.NoError(t, h.box.CancelEditing())
	assert.Equal(t, attr, h.spine.Attr("style"))
	assert.Equal(t, rect, h.spine.BoundingClientRect())
	assert.Equal(t, ModeIdle, h.box.Mode())
	assert.False(t, h.box.Dragging())
	assert.Equal(t, []string{"enter", "drag", "cancel"}, h.events)
}

func TestCancelRemovesPropertiesThatWereUnset(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.spine.SetStyle("transform", ""))
	attr := h.spine.Attr("style")

	h.box.EnterEditing()
	require.NoError(t, h.box.StartDrag(schemas.Point{}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 5})
	require.NoError(t, err)
	require.Equal(t, "none", h.spine.Style("transform"))

	require.NoError(t, h.box.CancelEditing())
	assert.Equal(t, attr, h.spine.Attr("style"))
}

func TestAuditingWriterLogsEveryWrite(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, func(o *Options) { o.Writer = NewAuditingWriter(nil, zap.New(core)) })

	h.box.EnterEditing()
	assert.Zero(t, logs.Len(), "entering editing writes nothing")
	require.NoError(t, h.box.StartDrag(schemas.Point{}, schemas.HandleMove, schemas.ModNone))
	_, err := h.box.UpdateDrag(schemas.Point{X: 10})
	require.NoError(t, err)

	entries := logs.FilterMessage("Style write.").All()
	require.Len(t, entries, 5)
	first := entries[0].ContextMap()
	assert.Equal(t, "left", first["property"])
	assert.Equal(t, "50%", first["from"])
	assert.Equal(t, "410px", first["to"])
	assert.Equal(t, h.spine.ID(), first["element"])
}

func TestAuditingWriterReportsRejectedWrite(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, nil)
	w := NewAuditingWriter(nil, zap.New(core))
	require.NoError(t, h.doc.RemoveElement(h.spine))

	err := w.WriteStyle(h.spine, "left", "1px")
	assert.ErrorIs(t, err, schemas.ErrDetached)
	assert.Equal(t, 1, logs.FilterMessage("Style write rejected.").Len())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Editor()
	cfg.PercentPrecision = 2
	cfg.AuditStyleWrites = true

	opts := OptionsFromConfig(cfg, zap.NewNop())
	assert.Equal(t, 20.0, opts.MinWidth)
	require.NotNil(t, opts.PercentPrecision)
	assert.Equal(t, 2, *opts.PercentPrecision)
	assert.IsType(t, &AuditingWriter{}, opts.Writer)

	cfg.AuditStyleWrites = false
	assert.Nil(t, OptionsFromConfig(cfg, nil).Writer)
}

func TestToPercent(t *testing.T) {
	pb, err := ToPercent(schemas.Rect{Left: 400, Top: 200, Width: 200, Height: 100}, schemas.Rect{Width: 1000, Height: 500})
	require.NoError(t, err)
	assert.Equal(t, schemas.PercentCSS{Left: "50.0%", Top: "50.0%", Width: "20.0%", Height: "20.0%"}, pb.CSS(1))

	_, err = ToPercent(schemas.Rect{Width: 1, Height: 1}, schemas.Rect{})
	assert.ErrorIs(t, err, boxerr.ErrCoordinateConversion)
}
