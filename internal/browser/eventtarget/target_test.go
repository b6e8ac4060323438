package eventtarget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

func TestDispatchOrderAndRemoval(t *testing.T) {
	target := New()
	var got []string

	removeA := target.AddEventListener(schemas.EventPointerMove, func(schemas.InputEvent) { got = append(got, "a") })
	target.AddEventListener(schemas.EventPointerMove, func(schemas.InputEvent) { got = append(got, "b") })
	target.AddEventListener(schemas.EventPointerUp, func(schemas.InputEvent) { got = append(got, "up") })

	assert.Equal(t, 2, target.Dispatch(schemas.InputEvent{Type: schemas.EventPointerMove}))
	assert.Equal(t, []string{"a", "b"}, got)

	removeA()
	removeA()
	got = nil
	target.Dispatch(schemas.InputEvent{Type: schemas.EventPointerMove})
	assert.Equal(t, []string{"b"}, got)
	assert.Equal(t, 1, target.ListenerCount(schemas.EventPointerMove))
}

func TestRemoveDuringDispatch(t *testing.T) {
	target := New()
	calls := 0
	var remove func()
	remove = target.AddEventListener(schemas.EventPointerUp, func(schemas.InputEvent) {
		calls++
		remove()
	})
	target.AddEventListener(schemas.EventPointerUp, func(schemas.InputEvent) { calls++ })

	target.Dispatch(schemas.InputEvent{Type: schemas.EventPointerUp})
	assert.Equal(t, 2, calls, "a listener removed mid-dispatch does not skip its siblings")

	target.Dispatch(schemas.InputEvent{Type: schemas.EventPointerUp})
	assert.Equal(t, 3, calls)
}

func TestDispatchWithoutListeners(t *testing.T) {
	assert.Equal(t, 0, New().Dispatch(schemas.InputEvent{Type: schemas.EventBlur}))
}
