package logger

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON records with the service, hostname, action and
// request id attached to every entry.
type Logger struct {
	service string
	zap     *zap.Logger
}

// New creates a production logger for the given service at info level.
func New(service string) *Logger {
	return NewWithLevel(service, "info")
}

// NewWithLevel creates a logger with the given minimum level (debug, info, warn, error).
func NewWithLevel(service, level string) *Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}

	return wrap(service, base)
}

// NewNop returns a logger that discards everything; used by tests.
func NewNop() *Logger {
	return wrap("test", zap.NewNop())
}

func wrap(service string, base *zap.Logger) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		service: service,
		zap:     base.With(zap.String("service", service), zap.String("hostname", hostname)),
	}
}

// GenerateRequestID returns a new random request id
func GenerateRequestID() string {
	return uuid.NewString()
}

func (l *Logger) Info(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Info(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Debug(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Debug(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Warn(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Warn(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Error(action, message, requestID string, err error, fields map[string]interface{}) {
	zf := l.fields(action, requestID, fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zap.Error(message, zf...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() {
	_ = l.zap.Sync()
}

func (l *Logger) fields(action, requestID string, fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.String("action", action))
	if requestID != "" {
		zf = append(zf, zap.String("request_id", requestID))
	}
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
