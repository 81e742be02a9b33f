// Package context stores request-scoped identifiers used by logs and spans.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type documentIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func WithDocumentID(ctx context.Context, documentID string) context.Context {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return ctx
	}
	return context.WithValue(ctx, documentIDKey{}, documentID)
}

func DocumentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(documentIDKey{}).(string)
	return value
}
