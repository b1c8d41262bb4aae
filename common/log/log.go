// Package log defines the small leveled-logger interface used
// throughout this module, backed by go.uber.org/zap. Every call site
// passes structured tag.Field values rather than format strings.
package log

import (
	"go.uber.org/zap"

	"go.ivtree.dev/server/common/log/tag"
)

// Logger is the leveled logging interface every component depends on.
type Logger interface {
	Debug(msg string, fields ...tag.Field)
	Info(msg string, fields ...tag.Field)
	Warn(msg string, fields ...tag.Field)
	Error(msg string, fields ...tag.Field)
	Fatal(msg string, fields ...tag.Field)
	With(fields ...tag.Field) Logger
}

type zapLogger struct {
	z *zap.Logger
}

var _ Logger = (*zapLogger)(nil)

// NewZapLogger wraps an existing *zap.Logger.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{z: z}
}

// NewDevelopment returns a human-readable logger suitable for tests
// and local runs.
func NewDevelopment() Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// NewNop returns a logger that discards everything, for tests that
// don't care about log output.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...tag.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...tag.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...tag.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...tag.Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...tag.Field) { l.z.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...tag.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}
