// Package eventtarget is a synchronous listener registry shared by the
// document backends.
package eventtarget

import (
	"sync"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

type listener struct {
	id int
	fn func(schemas.InputEvent)
}

// Target implements schemas.EventTarget. Listeners run on the dispatching
// goroutine, in registration order.
type Target struct {
	mu        sync.Mutex
	nextID    int
	listeners map[schemas.EventType][]listener
}

// New returns an empty Target.
func New() *Target {
	return &Target{listeners: make(map[schemas.EventType][]listener)}
}

var _ schemas.EventTarget = (*Target)(nil)

// AddEventListener registers fn for t. The returned function removes it and
// is safe to call more than once.
func (t *Target) AddEventListener(typ schemas.EventType, fn func(schemas.InputEvent)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners[typ] = append(t.listeners[typ], listener{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(typ, id) })
	}
}

func (t *Target) remove(typ schemas.EventType, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ls := t.listeners[typ]
	for i, l := range ls {
		if l.id == id {
			// Copy rather than splice in place: a dispatch may be iterating ls.
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			t.listeners[typ] = append(next, ls[i+1:]...)
			return
		}
	}
}

// Dispatch delivers ev to every listener registered for its type at the
// moment of the call. Listeners added or removed during dispatch take
// effect for the next event.
func (t *Target) Dispatch(ev schemas.InputEvent) int {
	t.mu.Lock()
	ls := t.listeners[ev.Type]
	t.mu.Unlock()

	for _, l := range ls {
		l.fn(ev)
	}
	return len(ls)
}

// ListenerCount returns how many listeners are registered for typ.
func (t *Target) ListenerCount(typ schemas.EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}
