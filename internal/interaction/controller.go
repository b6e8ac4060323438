// Package interaction turns pointer, touch and key events from a document
// into calls on an editable box and keeps its overlay in step.
package interaction

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
	"github.com/xkilldash9x/boxedit/internal/editbox"
)

// Box is the editable box the controller drives.
type Box interface {
	EnterEditing()
	StartDrag(p schemas.Point, handle schemas.HandleKind, mods schemas.KeyModifier) error
	UpdateDrag(p schemas.Point) (schemas.Bounds, error)
	SetModifiers(mods schemas.KeyModifier)
	EndDrag()
	ExitEditing() (schemas.PercentBounds, error)
	CancelEditing() error
	Mode() editbox.Mode
}

// Overlay is the view the controller consults for handles and refreshes.
type Overlay interface {
	HandleFor(el schemas.Element) (schemas.HandleKind, bool)
	SyncPosition()
	Show()
	Hide()
}

// Options configure a Controller.
type Options struct {
	// DragThreshold is how far, in px, a pressed pointer must travel before
	// moves are applied.
	DragThreshold float64
	Logger        *zap.Logger
	// Errors receives panics recovered from event handling.
	Errors boxerr.Handler
}

// press is the state of a pressed handle.
type press struct {
	pointerID int
	touch     bool
	origin    schemas.Point
	handle    schemas.HandleKind
	dragging  bool
	mods      schemas.KeyModifier
	// stop removes the document-level listeners added for this press.
	stop []func()
}

// Controller listens on a document for presses on the overlay's handles.
type Controller struct {
	logger    *zap.Logger
	box       Box
	overlay   Overlay
	target    schemas.EventTarget
	threshold float64
	errs      boxerr.Handler

	mu     sync.Mutex
	active *press
	detach []func()
}

// New creates a controller. Call Attach to start listening.
func New(box Box, overlay Overlay, target schemas.EventTarget, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("interaction")
	if opts.Errors == nil {
		opts.Errors = boxerr.NewLogHandler(logger)
	}
	return &Controller{
		logger:    logger,
		box:       box,
		overlay:   overlay,
		target:    target,
		threshold: math.Max(opts.DragThreshold, 0),
		errs:      opts.Errors,
	}
}

// Attach registers the press listeners. Move, release and key listeners
// are only registered while a handle is pressed.
func (c *Controller) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detach != nil {
		return
	}
	c.detach = []func(){
		c.target.AddEventListener(schemas.EventPointerDown, c.OnPointerDown),
		c.target.AddEventListener(schemas.EventTouchStart, c.onTouch(c.OnPointerDown)),
	}
}

// Detach removes every listener. A press in progress is released as if the
// pointer went up.
func (c *Controller) Detach() {
	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()
	for _, fn := range detach {
		fn()
	}
	c.release("interaction.Detach")
}

// Active reports whether a handle is currently pressed.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// OnPointerDown starts editing and a drag when ev targets a handle.
func (c *Controller) OnPointerDown(ev schemas.InputEvent) {
	defer boxerr.Recover(c.errs, "interaction.OnPointerDown")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return
	}
	handle, ok := c.overlay.HandleFor(ev.Target)
	if !ok {
		return
	}

	wasEditing := c.box.Mode() == editbox.ModeEditing
	c.box.EnterEditing()
	if err := c.box.StartDrag(ev.Point(), handle, ev.Modifiers); err != nil {
		c.logger.Debug("Press rejected.", zap.Error(err))
		if !wasEditing {
			_ = c.box.CancelEditing()
		}
		return
	}
	p := &press{
		pointerID: ev.PointerID,
		touch:     ev.Type == schemas.EventTouchStart,
		origin:    ev.Point(),
		handle:    handle,
		mods:      ev.Modifiers,
	}
	p.stop = []func(){
		c.target.AddEventListener(schemas.EventPointerMove, c.OnPointerMove),
		c.target.AddEventListener(schemas.EventPointerUp, c.OnPointerUp),
		c.target.AddEventListener(schemas.EventPointerCancel, c.OnPointerUp),
		c.target.AddEventListener(schemas.EventLostPointerCapture, c.OnPointerUp),
		c.target.AddEventListener(schemas.EventBlur, c.OnPointerUp),
		c.target.AddEventListener(schemas.EventTouchMove, c.onTouch(c.OnPointerMove)),
		c.target.AddEventListener(schemas.EventTouchEnd, c.onTouch(c.OnPointerUp)),
		c.target.AddEventListener(schemas.EventTouchCancel, c.onTouch(c.OnPointerUp)),
		c.target.AddEventListener(schemas.EventKeyDown, c.OnKey),
		c.target.AddEventListener(schemas.EventKeyUp, c.OnKey),
	}
	c.active = p
	c.logger.Debug("Handle pressed.", zap.String("drag_type", handle.DragType()), zap.Int("pointer_id", ev.PointerID))
}

// OnPointerMove applies the pointer position to the drag once it has moved
// past the drag threshold.
func (c *Controller) OnPointerMove(ev schemas.InputEvent) {
	defer boxerr.Recover(c.errs, "interaction.OnPointerMove")
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.active
	if p == nil || !c.owns(p, ev) {
		return
	}
	pos := ev.Point()
	if !p.dragging {
		d := pos.Sub(p.origin)
		if math.Hypot(d.X, d.Y) < c.threshold {
			return
		}
		p.dragging = true
	}
	if _, err := c.box.UpdateDrag(pos); err != nil {
		c.logger.Debug("Drag update rejected.", zap.Error(err))
		return
	}
	c.overlay.SyncPosition()
}

// OnPointerUp ends the drag and commits. Cancel, capture loss and blur are
// routed here too so the box never stays stuck in editing.
func (c *Controller) OnPointerUp(ev schemas.InputEvent) {
	defer boxerr.Recover(c.errs, "interaction.OnPointerUp")
	c.mu.Lock()
	p := c.active
	owned := p != nil && (ev.Type == schemas.EventBlur || c.owns(p, ev))
	c.mu.Unlock()
	if !owned {
		return
	}
	c.release("interaction.OnPointerUp")
}

// OnKey tracks modifier keys during a drag. Escape cancels the edit.
func (c *Controller) OnKey(ev schemas.InputEvent) {
	defer boxerr.Recover(c.errs, "interaction.OnKey")
	c.mu.Lock()
	p := c.active
	if p == nil {
		c.mu.Unlock()
		return
	}
	if ev.Type == schemas.EventKeyDown && ev.Key == "Escape" {
		c.active = nil
		c.mu.Unlock()
		stopAll(p.stop)
		if err := c.box.CancelEditing(); err != nil {
			c.logger.Debug("Cancel failed.", zap.Error(err))
		}
		c.overlay.SyncPosition()
		return
	}
	p.mods = ev.Modifiers
	c.box.SetModifiers(ev.Modifiers)
	c.mu.Unlock()
}

// Select shows the overlay.
func (c *Controller) Select() {
	c.overlay.Show()
}

// Deselect ends any press, commits an active edit and hides the overlay.
// The commit error, if any, is returned; the overlay is hidden regardless.
func (c *Controller) Deselect() error {
	released, err := c.release("interaction.Deselect")
	if !released && c.box.Mode() == editbox.ModeEditing {
		_, err = c.box.ExitEditing()
	}
	c.overlay.Hide()
	return err
}

// release ends the active press: EndDrag, then ExitEditing, then the
// document listeners are removed. It reports whether there was a press and
// the commit error.
func (c *Controller) release(op string) (bool, error) {
	c.mu.Lock()
	p := c.active
	c.active = nil
	c.mu.Unlock()
	if p == nil {
		return false, nil
	}
	c.box.EndDrag()
	_, err := c.box.ExitEditing()
	if err != nil {
		c.logger.Debug("Commit deferred.", zap.String("op", op), zap.Error(err))
	}
	stopAll(p.stop)
	c.overlay.SyncPosition()
	return true, err
}

// owns reports whether ev comes from the pointer that started the press.
func (c *Controller) owns(p *press, ev schemas.InputEvent) bool {
	isTouch := isTouchEvent(ev.Type)
	if isTouch != p.touch {
		return false
	}
	return ev.PointerID == p.pointerID
}

// onTouch adapts a touch event to the pointer handlers using its first
// touch point. Touch ends carry no remaining touches, so they inherit the
// active touch's id.
func (c *Controller) onTouch(fn func(schemas.InputEvent)) func(schemas.InputEvent) {
	return func(ev schemas.InputEvent) {
		if len(ev.Touches) > 0 {
			t := ev.Touches[0]
			ev.PointerID, ev.X, ev.Y = t.ID, t.X, t.Y
		} else if ev.Type == schemas.EventTouchEnd || ev.Type == schemas.EventTouchCancel {
			c.mu.Lock()
			if c.active != nil && c.active.touch {
				ev.PointerID = c.active.pointerID
			}
			c.mu.Unlock()
		}
		fn(ev)
	}
}

func isTouchEvent(t schemas.EventType) bool {
	switch t {
	case schemas.EventTouchStart, schemas.EventTouchMove, schemas.EventTouchEnd, schemas.EventTouchCancel:
		return true
	}
	return false
}

func stopAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
