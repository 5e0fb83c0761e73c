package logging

import (
	"context"
	"log"
)

type requestIDKey struct{}

// WithRequestID stores the request id used to correlate log lines.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestID returns the request id carried by ctx, or "" when there is none.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// Logger provides structured logging for services
type Logger struct {
	requestID string
	component string
}

// NewLogger creates a logger with request context
func NewLogger(ctx context.Context) *Logger {
	requestID := "unknown"
	if rid := RequestID(ctx); rid != "" {
		requestID = rid
	}
	return &Logger{requestID: requestID}
}

// Named returns a copy of the logger that tags every line with a component name.
func (l *Logger) Named(component string) *Logger {
	cp := *l
	cp.component = component
	return &cp
}

func (l *Logger) prefix(level string) string {
	if l.component != "" {
		return "[" + level + "] request_id=" + l.requestID + " component=" + l.component
	}
	return "[" + level + "] request_id=" + l.requestID
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error) {
	log.Printf("%s operation=%s error=%v", l.prefix("error"), operation, err)
}

// LogErrorf logs a formatted error with context
func (l *Logger) LogErrorf(operation string, format string, args ...interface{}) {
	log.Printf("%s operation=%s "+format, append([]interface{}{l.prefix("error"), operation}, args...)...)
}

// LogInfo logs an info message with context
func (l *Logger) LogInfo(operation string, message string) {
	log.Printf("%s operation=%s message=%s", l.prefix("info"), operation, message)
}

// LogInfof logs a formatted info message with context
func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	log.Printf("%s operation=%s "+format, append([]interface{}{l.prefix("info"), operation}, args...)...)
}

// LogWarn logs a warning with context
func (l *Logger) LogWarn(operation string, message string) {
	log.Printf("%s operation=%s message=%s", l.prefix("warn"), operation, message)
}

// LogWarnf logs a formatted warning with context
func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	log.Printf("%s operation=%s "+format, append([]interface{}{l.prefix("warn"), operation}, args...)...)
}
