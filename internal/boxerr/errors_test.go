package boxerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindInvalidHandle, "invalid_handle"},
		{KindCoordinateConversion, "coordinate_conversion"},
		{KindConcurrentDrag, "concurrent_drag"},
		{KindDetachedElement, "detached_element"},
		{KindInvalidState, "invalid_state"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := New("editbox.ExitEditing", KindCoordinateConversion, "bb-1", "parent rect is zero-sized")
	wrapped := fmt.Errorf("commit: %w", err)

	assert.ErrorIs(t, wrapped, ErrCoordinateConversion)
	assert.NotErrorIs(t, wrapped, ErrConcurrentDrag)
	assert.Equal(t, KindCoordinateConversion, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	assert.Equal(t, "editbox.ExitEditing [coordinate_conversion] node=bb-1: parent rect is zero-sized", err.Error())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("element is detached")
	err := Wrap("editbox.UpdateDrag", KindDetachedElement, "", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDetachedElement)
	assert.Equal(t, "editbox.UpdateDrag [detached_element]: element is detached", err.Error())
}

func TestLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewLogHandler(zap.New(core))

	h.HandleError(New("op", KindConcurrentDrag, "bb-7", "drag already active"))
	h.HandleError(nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "concurrent_drag", entry.ContextMap()["kind"])
	assert.Equal(t, "bb-7", entry.ContextMap()["node_id"])
}

func TestRecoverReportsPanic(t *testing.T) {
	var got error
	h := HandlerFunc(func(err error) { got = err })

	func() {
		defer Recover(h, "host.callback")
		panic("boom")
	}()

	require.Error(t, got)
	assert.Contains(t, got.Error(), "host.callback")
	assert.Contains(t, got.Error(), "boom")
}
