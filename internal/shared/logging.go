package shared

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// RequestIDHeader carries the request id to the backend so client and server
// logs can be joined.
const RequestIDHeader = "X-Request-ID"

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// EnsureCorrelationID returns ctx unchanged when it already carries an id,
// otherwise a derived context holding a fresh one.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := requestID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// GetCorrelationID returns the id carried by ctx, or a fresh one for
// contexts that never went through EnsureCorrelationID.
func GetCorrelationID(ctx context.Context) string {
	if id := requestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogWithContext logs at info level tagged with the request id.
func LogWithContext(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	logger.Info(msg, append(fields, zap.String("correlation_id", GetCorrelationID(ctx)))...)
}

func LogErrorWithContext(ctx context.Context, logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	if logger == nil {
		return
	}
	logger.Error(msg, append(fields, zap.String("correlation_id", GetCorrelationID(ctx)), zap.Error(err))...)
}
