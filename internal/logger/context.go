package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(nil)
}

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the logger used when a context carries none. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext attaches l to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// WithRequest tags every line logged under ctx with the HTTP request ID.
func WithRequest(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, Fields{
		FieldRequestID: requestID,
		FieldComponent: "api",
	})
}

// WithDocument tags every line logged under ctx with the document being ingested
// and its owner. component names the stage doing the work.
func WithDocument(ctx context.Context, component string, documentID, ownerID uint) context.Context {
	return WithFields(ctx, Fields{
		FieldDocumentID: documentID,
		FieldOwnerID:    ownerID,
		FieldComponent:  component,
	})
}

// RequestID returns the request ID carried by ctx's logger, if any.
func RequestID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRequestID].(string)
	return id
}

// DocumentID returns the document ID carried by ctx's logger.
func DocumentID(ctx context.Context) (uint, bool) {
	id, ok := FromContext(ctx).Data[FieldDocumentID].(uint)
	return id, ok
}
