// Package tenantctx carries the active tenant through request contexts.
package tenantctx

import (
	"context"
	"strings"
)

type keyType string

const (
	TenantIDKey keyType = "tenant_id"
)

// WithTenantID scopes ctx to a tenant. Blank IDs leave ctx untouched.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

func TenantID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(TenantIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
