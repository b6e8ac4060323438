package boxerr

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// Handler receives recoverable errors that are reported rather than returned,
// such as failures inside event callbacks.
type Handler interface {
	HandleError(err error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(err error)

func (f HandlerFunc) HandleError(err error) { f(err) }

// LogHandler logs reported errors through zap.
type LogHandler struct {
	Logger *zap.Logger
}

// NewLogHandler returns a LogHandler writing to logger.
func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{Logger: logger}
}

func (h *LogHandler) HandleError(err error) {
	if err == nil || h.Logger == nil {
		return
	}
	fields := []zap.Field{zap.Error(err), zap.String("kind", KindOf(err).String())}
	if e, ok := err.(*Error); ok && e.NodeID != "" {
		fields = append(fields, zap.String("node_id", e.NodeID))
	}
	h.Logger.Warn("Editor operation failed.", fields...)
}

// Recover reports a recovered panic to h. Use it deferred around callbacks
// into host code so a misbehaving callback cannot unwind the event loop.
func Recover(h Handler, op string) {
	r := recover()
	if r == nil || h == nil {
		return
	}
	h.HandleError(&Error{
		Op:     op,
		Kind:   KindUnknown,
		Reason: "recovered panic",
		Err:    fmt.Errorf("%v\n%s", r, debug.Stack()),
	})
}
