package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to watermill's LoggerAdapter
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger wraps log for use by watermill publishers and subscribers
func NewZapLogger(log *zap.Logger) watermill.LoggerAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapLogger{log: log}
}

func fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *ZapLogger) Error(msg string, err error, f watermill.LogFields) {
	l.log.Error(msg, append(fields(f), zap.Error(err))...)
}

func (l *ZapLogger) Info(msg string, f watermill.LogFields) {
	l.log.Info(msg, fields(f)...)
}

func (l *ZapLogger) Debug(msg string, f watermill.LogFields) {
	l.log.Debug(msg, fields(f)...)
}

func (l *ZapLogger) Trace(msg string, f watermill.LogFields) {
	l.log.Debug(msg, fields(f)...)
}

func (l *ZapLogger) With(f watermill.LogFields) watermill.LoggerAdapter {
	return &ZapLogger{log: l.log.With(fields(f)...)}
}
