package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapAdapter routes watermill logs to zap.
type zapAdapter struct {
	l *zap.Logger
}

func newZapAdapter(l *zap.Logger) watermill.LoggerAdapter {
	return &zapAdapter{l: l}
}

func fieldsOf(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a *zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(msg, append(fieldsOf(fields), zap.Error(err))...)
}

func (a *zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(msg, fieldsOf(fields)...)
}

func (a *zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, fieldsOf(fields)...)
}

func (a *zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, fieldsOf(fields)...)
}

func (a *zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{l: a.l.With(fieldsOf(fields)...)}
}
