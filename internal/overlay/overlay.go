// Package overlay draws the selection frame and its nine grab handles over a
// target element. The overlay is derived state only: it follows the target's
// rect and never writes to the target itself.
package overlay

import (
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/rectobserver"
)

const (
	defaultHandleSize  = 8
	defaultBorderColor = "#007cff"
	defaultZIndex      = 10000

	// HandleAttr carries the handle tag on each handle element.
	HandleAttr = "data-handle-type"
)

// RectSource is what the view needs from the RectObserver.
type RectSource interface {
	Observe(el schemas.Element, cb rectobserver.Callback) func()
	GetRect(el schemas.Element) schemas.Rect
}

// View is the overlay of one editable element.
type View struct {
	logger   *zap.Logger
	doc      schemas.Document
	target   schemas.Element
	observer RectSource
	nodeID   string
	cfg      config.OverlayConfig

	mu          sync.Mutex
	container   schemas.Element
	handles     map[schemas.HandleKind]schemas.Element
	byID        map[string]schemas.HandleKind
	rect        schemas.Rect
	visible     bool
	unsubscribe func()
}

// New prepares a view for target. Nothing is added to the document until
// Create. nodeID names the overlay's elements and should match the box.
func New(logger *zap.Logger, doc schemas.Document, target schemas.Element, observer RectSource, nodeID string, cfg config.OverlayConfig) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandleSize <= 0 {
		cfg.HandleSize = defaultHandleSize
	}
	if cfg.BorderColor == "" {
		cfg.BorderColor = defaultBorderColor
	}
	if cfg.ZIndex == 0 {
		cfg.ZIndex = defaultZIndex
	}
	return &View{
		logger:   logger.Named("overlay").With(zap.String("node_id", nodeID)),
		doc:      doc,
		target:   target,
		observer: observer,
		nodeID:   nodeID,
		cfg:      cfg,
	}
}

// Create builds the frame and handles and attaches them to the document
// root, not to the target, so the target's transform and overflow do not
// affect them. The view starts visible and follows the target's rect from
// then on. Calling Create twice is a no-op.
func (v *View) Create() error {
	v.mu.Lock()
	if v.container != nil {
		v.mu.Unlock()
		return nil
	}

	container, err := v.element("div", v.containerID(), v.containerStyle())
	if err != nil {
		v.mu.Unlock()
		return err
	}
	handles := make(map[schemas.HandleKind]schemas.Element, len(schemas.ResizeHandles)+1)
	byID := make(map[string]schemas.HandleKind, len(schemas.ResizeHandles)+1)
	for _, kind := range append(append([]schemas.HandleKind{}, schemas.ResizeHandles...), schemas.HandleMove) {
		h, err := v.element("div", v.handleID(kind), v.handleStyle(kind))
		if err != nil {
			v.mu.Unlock()
			return err
		}
		if err := h.SetAttr(HandleAttr, kind.String()); err != nil {
			v.mu.Unlock()
			return fmt.Errorf("overlay: tagging %s handle: %w", kind, err)
		}
		if err := appendChild(container, h); err != nil {
			v.mu.Unlock()
			return err
		}
		handles[kind] = h
		byID[h.ID()] = kind
	}
	if err := v.doc.AppendToRoot(container); err != nil {
		v.mu.Unlock()
		return fmt.Errorf("overlay: attaching container: %w", err)
	}
	v.container, v.handles, v.byID = container, handles, byID
	v.visible = true
	v.mu.Unlock()

	v.SyncPosition()
	if v.observer != nil {
		unsubscribe := v.observer.Observe(v.target, func(rect schemas.Rect, _ schemas.ChangeKind) {
			v.syncTo(rect)
		})
		v.mu.Lock()
		v.unsubscribe = unsubscribe
		v.mu.Unlock()
	}
	v.logger.Debug("Overlay created.")
	return nil
}

// childAppender is implemented by document backends that can build a
// subtree before it is attached.
type childAppender interface {
	AppendElement(child schemas.Element) error
}

func appendChild(parent, child schemas.Element) error {
	a, ok := parent.(childAppender)
	if !ok {
		return fmt.Errorf("overlay: %T cannot hold child elements", parent)
	}
	if err := a.AppendElement(child); err != nil {
		return fmt.Errorf("overlay: appending %s: %w", child.ID(), err)
	}
	return nil
}

func (v *View) element(tag, id string, decls style.Declarations) (schemas.Element, error) {
	el, err := v.doc.CreateElement(tag)
	if err != nil {
		return nil, fmt.Errorf("overlay: creating %s: %w", id, err)
	}
	if err := el.SetAttr("id", id); err != nil {
		return nil, fmt.Errorf("overlay: naming %s: %w", id, err)
	}
	if err := el.SetAttr("style", decls.String()); err != nil {
		return nil, fmt.Errorf("overlay: styling %s: %w", id, err)
	}
	return el, nil
}

func (v *View) containerID() string { return "bb-container-" + v.nodeID }

func (v *View) handleID(kind schemas.HandleKind) string {
	return "bb-handle-" + v.nodeID + "-" + kind.String()
}

func (v *View) containerStyle() style.Declarations {
	var d style.Declarations
	d = d.Set("position", "fixed")
	d = d.Set("outline", "2px solid "+v.cfg.BorderColor)
	d = d.Set("pointer-events", "none")
	d = d.Set("z-index", strconv.Itoa(v.cfg.ZIndex))
	d = d.Set("box-sizing", "content-box")
	return d
}

// handleStyle places a handle relative to the frame. Resize handles are
// squares centred on the frame's edges and stack above the move handle.
func (v *View) handleStyle(kind schemas.HandleKind) style.Declarations {
	var d style.Declarations
	d = d.Set("position", "absolute")
	d = d.Set("pointer-events", "all")
	if kind == schemas.HandleMove {
		d = d.Set("left", "0px")
		d = d.Set("top", "0px")
		d = d.Set("width", "100%")
		d = d.Set("height", "100%")
		d = d.Set("cursor", "move")
		d = d.Set("background", "transparent")
		return d.Set("z-index", strconv.Itoa(v.cfg.ZIndex))
	}

	size := style.Pixels(v.cfg.HandleSize)
	offset := style.Pixels(-v.cfg.HandleSize / 2)
	d = d.Set("width", size)
	d = d.Set("height", size)
	d = d.Set("background", v.cfg.BorderColor)
	d = d.Set("border", "1px solid white")
	d = d.Set("box-sizing", "border-box")
	d = d.Set("cursor", kind.String()+"-resize")

	var translate string
	switch {
	case kind.HasWest():
		d = d.Set("left", offset)
	case kind.HasEast():
		d = d.Set("right", offset)
	default:
		d = d.Set("left", "50%")
		translate = "translateX(-50%)"
	}
	switch {
	case kind.HasNorth():
		d = d.Set("top", offset)
	case kind.HasSouth():
		d = d.Set("bottom", offset)
	default:
		d = d.Set("top", "50%")
		translate = "translateY(-50%)"
	}
	if translate != "" {
		d = d.Set("transform", translate)
	}
	return d.Set("z-index", strconv.Itoa(v.cfg.ZIndex+1))
}

// SyncPosition re-reads the target's live rect and moves the frame onto it.
func (v *View) SyncPosition() {
	var rect schemas.Rect
	if v.observer != nil {
		rect = v.observer.GetRect(v.target)
	} else {
		rect = v.target.BoundingClientRect()
	}
	v.syncTo(rect)
}

func (v *View) syncTo(rect schemas.Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rect = rect
	if v.container == nil {
		return
	}
	for _, kv := range [][2]string{
		{"left", style.Pixels(rect.Left)},
		{"top", style.Pixels(rect.Top)},
		{"width", style.Pixels(rect.Width)},
		{"height", style.Pixels(rect.Height)},
	} {
		if err := v.container.SetStyle(kv[0], kv[1]); err != nil {
			v.logger.Debug("Overlay sync skipped.", zap.Error(err))
			return
		}
	}
}

// Show makes the overlay visible and re-syncs it.
func (v *View) Show() {
	v.setDisplay("block", true)
	v.SyncPosition()
}

// Hide hides the overlay without removing it.
func (v *View) Hide() {
	v.setDisplay("none", false)
}

func (v *View) setDisplay(display string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.container == nil {
		return
	}
	if err := v.container.SetStyle("display", display); err != nil {
		v.logger.Debug("Overlay display change skipped.", zap.Error(err))
		return
	}
	v.visible = visible
}

// Visible reports whether the overlay is created and shown.
func (v *View) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.container != nil && v.visible
}

// Destroy removes the overlay's elements and stops following the target.
func (v *View) Destroy() error {
	v.mu.Lock()
	container, unsubscribe := v.container, v.unsubscribe
	v.container, v.handles, v.byID, v.unsubscribe = nil, nil, nil, nil
	v.visible = false
	v.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if container == nil {
		return nil
	}
	if err := v.doc.RemoveElement(container); err != nil {
		return fmt.Errorf("overlay: removing container: %w", err)
	}
	v.logger.Debug("Overlay destroyed.")
	return nil
}

// Container returns the frame element, or nil before Create.
func (v *View) Container() schemas.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.container
}

// Handle returns the element of a handle.
func (v *View) Handle(kind schemas.HandleKind) (schemas.Element, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	el, ok := v.handles[kind]
	return el, ok
}

// HandleFor reports which handle el is. The lookup goes through the typed
// table built by Create, so elements that merely carry the attribute are
// not handles.
func (v *View) HandleFor(el schemas.Element) (schemas.HandleKind, bool) {
	if el == nil {
		return schemas.HandleInvalid, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	kind, ok := v.byID[el.ID()]
	return kind, ok
}

// HandleRect returns where a handle is drawn, in viewport pixels, for the
// last synced target rect.
func (v *View) HandleRect(kind schemas.HandleKind) (schemas.Rect, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return handleRect(v.rect, kind, v.cfg.HandleSize)
}

// HandleAt hit-tests the handles geometrically. Resize handles win over the
// move handle where they overlap.
func (v *View) HandleAt(x, y float64) (schemas.HandleKind, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.container == nil || !v.visible {
		return schemas.HandleInvalid, false
	}
	for _, kind := range schemas.ResizeHandles {
		if r, _ := handleRect(v.rect, kind, v.cfg.HandleSize); r.Contains(x, y) {
			return kind, true
		}
	}
	if v.rect.Contains(x, y) {
		return schemas.HandleMove, true
	}
	return schemas.HandleInvalid, false
}

// Rect returns the last target rect the overlay synced to.
func (v *View) Rect() schemas.Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rect
}

func handleRect(target schemas.Rect, kind schemas.HandleKind, size float64) (schemas.Rect, bool) {
	if !kind.Valid() {
		return schemas.Rect{}, false
	}
	if kind == schemas.HandleMove {
		return target, true
	}
	half := size / 2
	x := target.Left + target.Width/2 - half
	switch {
	case kind.HasWest():
		x = target.Left - half
	case kind.HasEast():
		x = target.Right() - half
	}
	y := target.Top + target.Height/2 - half
	switch {
	case kind.HasNorth():
		y = target.Top - half
	case kind.HasSouth():
		y = target.Bottom() - half
	}
	return schemas.Rect{Left: x, Top: y, Width: size, Height: size}, true
}
