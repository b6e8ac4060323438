// Package rectobserver tracks element rects and keeps a per-element cache of
// the last valid one, so coordinate conversion can proceed while an element
// briefly reports a zero-sized box.
package rectobserver

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/config"
)

// Callback receives the element's current rect and why it was re-read.
type Callback func(rect schemas.Rect, kind schemas.ChangeKind)

// SwapCheck is the verdict of IsSafeForSwap.
type SwapCheck struct {
	Safe bool `json:"safe"`
	// Reason explains an unsafe verdict; empty when Safe.
	Reason string `json:"reason,omitempty"`
}

type subscription struct {
	id int
	cb Callback
}

type entry struct {
	// last is the most recent rect read for the element.
	last    schemas.Rect
	hasLast bool
	// stable is the last rect that was Valid.
	stable    schemas.Rect
	hasStable bool

	subs   []subscription
	cancel func()
}

// Observer is a process-wide RectObserver. It is safe for concurrent use;
// callbacks run without the internal lock held.
type Observer struct {
	logger *zap.Logger
	cfg    config.ObserverConfig
	source schemas.ChangeSource

	mu      sync.Mutex
	nextID  int
	entries map[schemas.Element]*entry
}

// New creates an Observer. source may be nil, in which case rects are only
// re-read on Observe, GetRect and Poll.
func New(logger *zap.Logger, cfg config.ObserverConfig, source schemas.ChangeSource) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		logger:  logger.Named("rectobserver"),
		cfg:     cfg,
		source:  source,
		entries: make(map[schemas.Element]*entry),
	}
}

// Observe subscribes cb to rect changes of el and immediately delivers an
// "initial" notification. The returned function unsubscribes; once the last
// subscriber of an element leaves, its change-source watch is released.
// The stable-rect cache is kept for later GetStableRect calls.
func (o *Observer) Observe(el schemas.Element, cb Callback) func() {
	o.mu.Lock()
	e := o.entryLocked(el)
	o.nextID++
	id := o.nextID
	e.subs = append(e.subs, subscription{id: id, cb: cb})
	needWatch := e.cancel == nil && o.source != nil
	o.mu.Unlock()

	if needWatch {
		cancel := o.source.Watch(el, func(kind schemas.ChangeKind) { o.refresh(el, kind) })
		o.mu.Lock()
		if e.cancel == nil {
			e.cancel = cancel
			cancel = nil
		}
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	rect := o.read(el)
	o.store(el, rect)
	cb(rect, schemas.ChangeInitial)

	var once sync.Once
	return func() { once.Do(func() { o.unsubscribe(el, id) }) }
}

func (o *Observer) unsubscribe(el schemas.Element, id int) {
	o.mu.Lock()
	e, ok := o.entries[el]
	if !ok {
		o.mu.Unlock()
		return
	}
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			break
		}
	}
	var cancel func()
	if len(e.subs) == 0 {
		cancel, e.cancel = e.cancel, nil
	}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// GetRect reads the element's current rect, bypassing the cache. A valid
// read refreshes the stable cache.
func (o *Observer) GetRect(el schemas.Element) schemas.Rect {
	rect := o.read(el)
	o.store(el, rect)
	return rect
}

// GetStableRect returns the last valid rect seen for el. With no cached
// rect it falls back to a live read, and reports false when that is not
// valid either.
func (o *Observer) GetStableRect(el schemas.Element) (schemas.Rect, bool) {
	if el == nil {
		return schemas.Rect{}, false
	}
	o.mu.Lock()
	if e, ok := o.entries[el]; ok && e.hasStable {
		rect := e.stable
		o.mu.Unlock()
		return rect, true
	}
	o.mu.Unlock()

	rect := o.GetRect(el)
	if !rect.Valid() {
		return schemas.Rect{}, false
	}
	return rect, true
}

// StableParentRect is GetStableRect for el's parent.
func (o *Observer) StableParentRect(el schemas.Element) (schemas.Rect, bool) {
	if el == nil {
		return schemas.Rect{}, false
	}
	return o.GetStableRect(el.Parent())
}

// IsSafeForSwap reports whether converting el between pixel and percent
// coordinates is safe right now: both the parent and the element must be
// attached and currently have a non-zero size.
func (o *Observer) IsSafeForSwap(el schemas.Element) SwapCheck {
	if el == nil || !el.IsConnected() {
		return SwapCheck{Reason: "element is not attached to the document"}
	}
	parent := el.Parent()
	if parent == nil {
		return SwapCheck{Reason: "element has no parent"}
	}
	if pr := o.GetRect(parent); !pr.Valid() {
		return SwapCheck{Reason: "parent rect is zero-sized"}
	}
	if r := o.GetRect(el); !r.Valid() {
		return SwapCheck{Reason: "element rect is zero-sized"}
	}
	return SwapCheck{Safe: true}
}

// Poll re-reads every observed element and notifies subscribers of any
// change. Backends without push notifications call it after input events.
func (o *Observer) Poll() {
	o.mu.Lock()
	els := make([]schemas.Element, 0, len(o.entries))
	for el, e := range o.entries {
		if len(e.subs) > 0 {
			els = append(els, el)
		}
	}
	o.mu.Unlock()

	for _, el := range els {
		o.refresh(el, schemas.ChangePoll)
	}
}

// Forget drops everything known about el, including its stable rect.
func (o *Observer) Forget(el schemas.Element) {
	o.mu.Lock()
	e, ok := o.entries[el]
	delete(o.entries, el)
	o.mu.Unlock()
	if ok && e.cancel != nil {
		e.cancel()
	}
}

// refresh re-reads el and notifies subscribers when the rect moved by more
// than the duplicate threshold. Viewport changes always notify. A mutation
// that changed the size is reported as a resize.
func (o *Observer) refresh(el schemas.Element, kind schemas.ChangeKind) {
	rect := o.read(el)

	o.mu.Lock()
	e, ok := o.entries[el]
	if !ok {
		o.mu.Unlock()
		return
	}
	prev, hadPrev := e.last, e.hasLast
	o.storeLocked(e, rect)
	subs := append([]subscription(nil), e.subs...)
	o.mu.Unlock()

	changed := !hadPrev || !o.same(prev, rect)
	if !changed && kind != schemas.ChangeViewport {
		return
	}
	if kind == schemas.ChangeMutation && hadPrev && !o.sameSize(prev, rect) {
		kind = schemas.ChangeResize
	}
	o.logger.Debug("Rect changed.",
		zap.String("element", el.ID()),
		zap.String("kind", string(kind)),
		zap.Stringer("rect", rect))
	for _, s := range subs {
		s.cb(rect, kind)
	}
}

func (o *Observer) read(el schemas.Element) schemas.Rect {
	if el == nil {
		return schemas.Rect{}
	}
	return o.snap(el.BoundingClientRect())
}

// snap rounds to device pixels when a device pixel ratio is configured.
func (o *Observer) snap(r schemas.Rect) schemas.Rect {
	dpr := o.cfg.DevicePixelRatio
	if dpr <= 0 {
		return r
	}
	round := func(v float64) float64 { return math.Round(v*dpr) / dpr }
	return schemas.Rect{Left: round(r.Left), Top: round(r.Top), Width: round(r.Width), Height: round(r.Height)}
}

func (o *Observer) same(a, b schemas.Rect) bool {
	t := o.cfg.DuplicateThreshold
	return math.Abs(a.Left-b.Left) <= t && math.Abs(a.Top-b.Top) <= t &&
		math.Abs(a.Width-b.Width) <= t && math.Abs(a.Height-b.Height) <= t
}

func (o *Observer) sameSize(a, b schemas.Rect) bool {
	t := o.cfg.DuplicateThreshold
	return math.Abs(a.Width-b.Width) <= t && math.Abs(a.Height-b.Height) <= t
}

func (o *Observer) entryLocked(el schemas.Element) *entry {
	e, ok := o.entries[el]
	if !ok {
		e = &entry{}
		o.entries[el] = e
	}
	return e
}

func (o *Observer) store(el schemas.Element, rect schemas.Rect) {
	if el == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.storeLocked(o.entryLocked(el), rect)
}

func (o *Observer) storeLocked(e *entry, rect schemas.Rect) {
	e.last, e.hasLast = rect, true
	if rect.Valid() {
		e.stable, e.hasStable = rect, true
	}
}
