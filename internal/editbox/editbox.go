// Package editbox implements the Idle/Editing state machine that swaps a
// centre-anchored, percentage-positioned element into parent-relative pixels
// for dragging and converts it back on commit without a visible jump.
package editbox

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/bounds"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/rectobserver"
)

// BaseTransform is the resting transform of an idle element: its left/top
// percentages locate the visual centre.
const BaseTransform = "translate(-50%, -50%)"

const (
	defaultMinSize   = 20
	defaultPrecision = 1
)

// Mode is the editing mode of a box.
type Mode int

const (
	ModeIdle Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "idle"
}

// MarshalText renders the mode by name in reports.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// RectSource is the subset of the RectObserver the box depends on.
type RectSource interface {
	GetRect(el schemas.Element) schemas.Rect
	StableParentRect(el schemas.Element) (schemas.Rect, bool)
	IsSafeForSwap(el schemas.Element) rectobserver.SwapCheck
}

// Hooks let a host follow the box without polling. Any of them may be nil.
// They run after the box has released its lock.
type Hooks struct {
	OnEnterEditing func()
	OnExitEditing  func(schemas.PercentBounds)
	OnDragUpdate   func(schemas.Bounds)
	OnCancel       func()
}

// Options configure a box.
type Options struct {
	// MinWidth and MinHeight default to 20px.
	MinWidth  float64
	MinHeight float64
	// NodeID defaults to a generated "bb-" id.
	NodeID string
	// PercentPrecision is the number of decimals in committed percentages.
	// Defaults to 1.
	PercentPrecision *int

	Logger   *zap.Logger
	Observer RectSource
	Writer   StyleWriter
	Hooks    Hooks
	// Errors receives every error the box returns. Defaults to a LogHandler.
	Errors boxerr.Handler
}

// OptionsFromConfig fills the size and precision options from cfg. When
// AuditStyleWrites is set, writes go through an AuditingWriter.
func OptionsFromConfig(cfg config.EditorConfig, logger *zap.Logger) Options {
	precision := cfg.PercentPrecision
	opts := Options{
		MinWidth:         cfg.MinWidth,
		MinHeight:        cfg.MinHeight,
		PercentPrecision: &precision,
		Logger:           logger,
	}
	if cfg.AuditStyleWrites {
		opts.Writer = NewAuditingWriter(DirectWriter, logger)
	}
	return opts
}

// Backup is the inline style captured on EnterEditing.
type Backup struct {
	Left      string `json:"left"`
	Top       string `json:"top"`
	Width     string `json:"width"`
	Height    string `json:"height"`
	Transform string `json:"transform"`
}

func (b Backup) pairs() [][2]string {
	return [][2]string{
		{"left", b.Left}, {"top", b.Top}, {"width", b.Width}, {"height", b.Height}, {"transform", b.Transform},
	}
}

// DragSession is the state of an active drag.
type DragSession struct {
	Handle       schemas.HandleKind  `json:"handle"`
	StartPointer schemas.Point       `json:"start_pointer"`
	StartBounds  schemas.Bounds      `json:"start_bounds"`
	Modifiers    schemas.KeyModifier `json:"modifiers"`
}

// State is a snapshot of a box.
type State struct {
	NodeID        string         `json:"node_id"`
	Mode          Mode           `json:"mode"`
	Bounds        schemas.Bounds `json:"bounds"`
	HasBounds     bool           `json:"has_bounds"`
	Backup        *Backup        `json:"backup,omitempty"`
	Session       *DragSession   `json:"session,omitempty"`
	BaseTransform string         `json:"base_transform"`
}

// EditableBox owns the position and size styles of one element.
type EditableBox struct {
	el        schemas.Element
	nodeID    string
	minWidth  float64
	minHeight float64
	precision int

	logger   *zap.Logger
	observer RectSource
	writer   StyleWriter
	hooks    Hooks
	errs     boxerr.Handler

	mu        sync.Mutex
	mode      Mode
	backup    *Backup
	bounds    schemas.Bounds
	hasBounds bool
	session   *DragSession
}

// New creates an idle box for el.
func New(el schemas.Element, opts Options) (*EditableBox, error) {
	if el == nil {
		return nil, boxerr.New("editbox.New", boxerr.KindDetachedElement, opts.NodeID, "nil element")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = defaultMinSize
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = defaultMinSize
	}
	precision := defaultPrecision
	if opts.PercentPrecision != nil && *opts.PercentPrecision >= 0 {
		precision = *opts.PercentPrecision
	}
	if opts.NodeID == "" {
		opts.NodeID = "bb-" + uuid.NewString()
	}
	if opts.Observer == nil {
		opts.Observer = rectobserver.New(opts.Logger, config.ObserverConfig{}, nil)
	}
	if opts.Writer == nil {
		opts.Writer = DirectWriter
	}
	logger := opts.Logger.Named("editbox").With(zap.String("node_id", opts.NodeID))
	if opts.Errors == nil {
		opts.Errors = boxerr.NewLogHandler(logger)
	}
	return &EditableBox{
		el:        el,
		nodeID:    opts.NodeID,
		minWidth:  opts.MinWidth,
		minHeight: opts.MinHeight,
		precision: precision,
		logger:    logger,
		observer:  opts.Observer,
		writer:    opts.Writer,
		hooks:     opts.Hooks,
		errs:      opts.Errors,
	}, nil
}

func (b *EditableBox) NodeID() string           { return b.nodeID }
func (b *EditableBox) Element() schemas.Element { return b.el }

// Mode returns the current mode.
func (b *EditableBox) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Dragging reports whether a drag session is active.
func (b *EditableBox) Dragging() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

// State returns a copy of the box's state.
func (b *EditableBox) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := State{
		NodeID:        b.nodeID,
		Mode:          b.mode,
		Bounds:        b.bounds,
		HasBounds:     b.hasBounds,
		BaseTransform: BaseTransform,
	}
	if b.backup != nil {
		backup := *b.backup
		s.Backup = &backup
	}
	if b.session != nil {
		session := *b.session
		s.Session = &session
	}
	return s
}

// EnterEditing records the element's current inline position and size and
// switches to Editing. It writes nothing, so the element does not move.
// Calling it while already editing does nothing.
func (b *EditableBox) EnterEditing() {
	b.mu.Lock()
	if b.mode == ModeEditing {
		b.mu.Unlock()
		return
	}
	b.backup = &Backup{
		Left:      b.el.Style("left"),
		Top:       b.el.Style("top"),
		Width:     b.el.Style("width"),
		Height:    b.el.Style("height"),
		Transform: b.el.Style("transform"),
	}
	b.hasBounds = false
	b.mode = ModeEditing
	hook := b.hooks.OnEnterEditing
	b.mu.Unlock()

	b.logger.Debug("Entered editing.")
	if hook != nil {
		hook()
	}
}

// StartDrag begins a drag with the given handle at pointer p. The box must
// be Editing and not already dragging; on error no state changes.
func (b *EditableBox) StartDrag(p schemas.Point, handle schemas.HandleKind, mods schemas.KeyModifier) error {
	const op = "editbox.StartDrag"
	if !handle.Valid() {
		return b.fail(boxerr.New(op, boxerr.KindInvalidHandle, b.nodeID, "unknown handle "+handle.String()))
	}

	b.mu.Lock()
	start, err := b.startLocked(op, p, handle, mods)
	b.mu.Unlock()
	if err != nil {
		return b.fail(err)
	}
	b.logger.Debug("Drag started.",
		zap.String("drag_type", handle.DragType()),
		zap.Stringer("start_bounds", start),
		zap.Stringer("modifiers", mods))
	return nil
}

func (b *EditableBox) startLocked(op string, p schemas.Point, handle schemas.HandleKind, mods schemas.KeyModifier) (schemas.Bounds, error) {
	if b.mode != ModeEditing {
		return schemas.Bounds{}, boxerr.New(op, boxerr.KindInvalidState, b.nodeID, "StartDrag requires editing mode")
	}
	if b.session != nil {
		return schemas.Bounds{}, boxerr.New(op, boxerr.KindConcurrentDrag, b.nodeID, "a "+b.session.Handle.DragType()+" drag is already active")
	}
	start := b.bounds
	if !b.hasBounds {
		measured, err := b.measureLocked(op)
		if err != nil {
			return schemas.Bounds{}, err
		}
		start = measured
	}
	b.session = &DragSession{Handle: handle, StartPointer: p, StartBounds: start, Modifiers: mods}
	return start, nil
}

// measureLocked derives parent-relative pixel bounds from the live element
// rect and the parent's stable rect.
func (b *EditableBox) measureLocked(op string) (schemas.Bounds, error) {
	if !b.el.IsConnected() || b.el.Parent() == nil {
		return schemas.Bounds{}, boxerr.New(op, boxerr.KindDetachedElement, b.nodeID, "element is not attached to a parent")
	}
	parent, ok := b.observer.StableParentRect(b.el)
	if !ok {
		return schemas.Bounds{}, boxerr.New(op, boxerr.KindCoordinateConversion, b.nodeID, "parent rect unavailable")
	}
	rect := b.observer.GetRect(b.el)
	return schemas.Bounds{
		X:      rect.Left - parent.Left,
		Y:      rect.Top - parent.Top,
		Width:  rect.Width,
		Height: rect.Height,
	}, nil
}

// SetModifiers replaces the modifier keys of the active drag. They take
// effect on the next UpdateDrag. Without an active drag it does nothing.
func (b *EditableBox) SetModifiers(mods schemas.KeyModifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Modifiers = mods
	}
}

// UpdateDrag recomputes the bounds for pointer p and writes them as pixel
// left/top/width/height with no transform.
func (b *EditableBox) UpdateDrag(p schemas.Point) (schemas.Bounds, error) {
	const op = "editbox.UpdateDrag"
	b.mu.Lock()
	if b.session == nil {
		b.mu.Unlock()
		return schemas.Bounds{}, b.fail(boxerr.New(op, boxerr.KindInvalidState, b.nodeID, "no active drag"))
	}
	s := *b.session
	next, err := bounds.Compute(s.StartBounds, s.Handle, p.Sub(s.StartPointer), s.Modifiers, b.minWidth, b.minHeight)
	if err != nil {
		b.mu.Unlock()
		return schemas.Bounds{}, b.fail(boxerr.Wrap(op, boxerr.KindInvalidHandle, b.nodeID, err))
	}
	if err := b.writePixelsLocked(op, next); err != nil {
		b.mu.Unlock()
		return schemas.Bounds{}, b.fail(err)
	}
	b.bounds = next
	b.hasBounds = true
	hook := b.hooks.OnDragUpdate
	b.mu.Unlock()

	b.logger.Debug("Drag updated.", zap.Stringer("bounds", next))
	if hook != nil {
		hook(next)
	}
	return next, nil
}

func (b *EditableBox) writePixelsLocked(op string, next schemas.Bounds) error {
	if !b.el.IsConnected() {
		return boxerr.New(op, boxerr.KindDetachedElement, b.nodeID, "style write skipped")
	}
	return b.writeLocked(op, [][2]string{
		{"left", style.Pixels(next.X)},
		{"top", style.Pixels(next.Y)},
		{"width", style.Pixels(next.Width)},
		{"height", style.Pixels(next.Height)},
		{"transform", "none"},
	})
}

// writeLocked applies props in order. If a write fails, the properties already
// written get their previous values back so the element never shows a mix of
// old and new geometry.
func (b *EditableBox) writeLocked(op string, props [][2]string) error {
	written := make([][2]string, 0, len(props))
	for _, kv := range props {
		previous := b.el.Style(kv[0])
		if err := b.writer.WriteStyle(b.el, kv[0], kv[1]); err != nil {
			b.rollbackLocked(written)
			return boxerr.Wrap(op, boxerr.KindDetachedElement, b.nodeID, fmt.Errorf("writing %s: %w", kv[0], err))
		}
		written = append(written, [2]string{kv[0], previous})
	}
	return nil
}

func (b *EditableBox) rollbackLocked(written [][2]string) {
	for i := len(written) - 1; i >= 0; i-- {
		kv := written[i]
		if err := b.writer.WriteStyle(b.el, kv[0], kv[1]); err != nil {
			b.logger.Warn("Could not restore style after a failed write.", zap.String("property", kv[0]), zap.Error(err))
		}
	}
}

// EndDrag ends the active drag, if any. It does not leave Editing.
func (b *EditableBox) EndDrag() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return
	}
	b.session = nil
	b.logger.Debug("Drag ended.", zap.Stringer("bounds", b.bounds))
}

// ExitEditing converts the element's on-screen box into centre-anchored
// percentages of its parent, writes them with the base transform and returns
// to Idle. If the swap is unsafe nothing is written, the box stays in Editing
// and a CoordinateConversion error is returned; calling again retries.
// Calling it while idle returns zero bounds and no error.
func (b *EditableBox) ExitEditing() (schemas.PercentBounds, error) {
	const op = "editbox.ExitEditing"
	b.mu.Lock()
	if b.mode != ModeEditing {
		b.mu.Unlock()
		return schemas.PercentBounds{}, nil
	}
	if b.session != nil {
		b.logger.Warn("Exiting editing with an active drag; ending it.")
		b.session = nil
	}

	if check := b.observer.IsSafeForSwap(b.el); !check.Safe {
		kind := boxerr.KindCoordinateConversion
		if !b.el.IsConnected() {
			kind = boxerr.KindDetachedElement
		}
		b.mu.Unlock()
		return schemas.PercentBounds{}, b.fail(boxerr.New(op, kind, b.nodeID, check.Reason))
	}
	parent, ok := b.observer.StableParentRect(b.el)
	if !ok || !parent.Valid() {
		b.mu.Unlock()
		return schemas.PercentBounds{}, b.fail(boxerr.New(op, boxerr.KindCoordinateConversion, b.nodeID, "parent rect unavailable"))
	}
	rect := b.observer.GetRect(b.el)
	pb := toPercent(rect, parent)
	if !finite(pb) {
		b.mu.Unlock()
		return schemas.PercentBounds{}, b.fail(boxerr.New(op, boxerr.KindCoordinateConversion, b.nodeID, "non-finite percentages"))
	}

	css := pb.CSS(b.precision)
	if err := b.writeLocked(op, [][2]string{
		{"left", css.Left},
		{"top", css.Top},
		{"width", css.Width},
		{"height", css.Height},
		{"transform", BaseTransform},
	}); err != nil {
		b.mu.Unlock()
		return schemas.PercentBounds{}, b.fail(err)
	}

	b.backup = nil
	b.hasBounds = false
	b.mode = ModeIdle
	hook := b.hooks.OnExitEditing
	b.mu.Unlock()

	b.logger.Debug("Committed percentages.",
		zap.String("left", css.Left), zap.String("top", css.Top),
		zap.String("width", css.Width), zap.String("height", css.Height))
	if hook != nil {
		hook(pb)
	}
	return pb, nil
}

// CancelEditing abandons the edit: any drag ends, the inline styles captured
// by EnterEditing are written back and the box returns to Idle without a
// commit. A detached element cannot be restored, but the box still returns
// to Idle and the error is reported.
func (b *EditableBox) CancelEditing() error {
	const op = "editbox.CancelEditing"
	b.mu.Lock()
	if b.mode != ModeEditing {
		b.mu.Unlock()
		return nil
	}
	backup := b.backup
	b.session = nil
	b.backup = nil
	b.hasBounds = false
	b.mode = ModeIdle
	hook := b.hooks.OnCancel

	var err error
	switch {
	case backup == nil:
	case !b.el.IsConnected():
		err = boxerr.New(op, boxerr.KindDetachedElement, b.nodeID, "backup not restored")
	default:
		err = b.writeLocked(op, backup.pairs())
	}
	b.mu.Unlock()

	if err != nil {
		return b.fail(err)
	}
	b.logger.Debug("Editing cancelled.")
	if hook != nil {
		hook()
	}
	return nil
}

func (b *EditableBox) fail(err error) error {
	b.errs.HandleError(err)
	return err
}

// toPercent expresses rect relative to parent, anchored at rect's centre.
func toPercent(rect, parent schemas.Rect) schemas.PercentBounds {
	c := rect.Center()
	return schemas.PercentBounds{
		Left:   (c.X - parent.Left) / parent.Width * 100,
		Top:    (c.Y - parent.Top) / parent.Height * 100,
		Width:  rect.Width / parent.Width * 100,
		Height: rect.Height / parent.Height * 100,
	}
}

// ToPercent is the conversion ExitEditing performs. It fails with a
// CoordinateConversion error when parent has no area.
func ToPercent(rect, parent schemas.Rect) (schemas.PercentBounds, error) {
	if !parent.Valid() {
		return schemas.PercentBounds{}, boxerr.New("editbox.ToPercent", boxerr.KindCoordinateConversion, "", "parent rect is zero-sized")
	}
	return toPercent(rect, parent), nil
}

func finite(pb schemas.PercentBounds) bool {
	for _, v := range []float64{pb.Left, pb.Top, pb.Width, pb.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
