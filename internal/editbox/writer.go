package editbox

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

// StyleWriter performs every position and size write the box makes on its
// target element. It is the only path by which the target is restyled.
type StyleWriter interface {
	WriteStyle(el schemas.Element, property, value string) error
}

// StyleWriterFunc adapts a function to StyleWriter.
type StyleWriterFunc func(el schemas.Element, property, value string) error

func (f StyleWriterFunc) WriteStyle(el schemas.Element, property, value string) error {
	return f(el, property, value)
}

// DirectWriter writes straight to the element.
var DirectWriter StyleWriter = StyleWriterFunc(func(el schemas.Element, property, value string) error {
	return el.SetStyle(property, value)
})

// AuditingWriter logs each write, with the value it replaced, before
// delegating to Next.
type AuditingWriter struct {
	Next   StyleWriter
	Logger *zap.Logger
}

// NewAuditingWriter wraps next. A nil next means DirectWriter.
func NewAuditingWriter(next StyleWriter, logger *zap.Logger) *AuditingWriter {
	if next == nil {
		next = DirectWriter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditingWriter{Next: next, Logger: logger.Named("style_audit")}
}

func (w *AuditingWriter) WriteStyle(el schemas.Element, property, value string) error {
	previous := el.Style(property)
	err := w.Next.WriteStyle(el, property, value)
	fields := []zap.Field{
		zap.String("element", el.ID()),
		zap.String("property", property),
		zap.String("from", previous),
		zap.String("to", value),
	}
	if err != nil {
		w.Logger.Warn("Style write rejected.", append(fields, zap.Error(err))...)
		return err
	}
	w.Logger.Info("Style write.", fields...)
	return nil
}
