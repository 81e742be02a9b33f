package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	"github.com/smallbiznis/docflow/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	HeaderTenant     = "X-Tenant-ID"
	HeaderUser       = "X-User-ID"
	contextUserIDKey = "user_id"
)

// TenantContext scopes the request context to the X-Tenant-ID header.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(HeaderTenant))
		if tenantID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(tenantctx.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUser))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

const (
	scopeUpload = "upload"
	scopeEmail  = "email"
)

func tenantKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderTenant))
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// IngestRateLimit rejects callers that exhausted their ingestion bucket.
// Limiter failures let the request through.
func (s *Server) IngestRateLimit(scope string, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.ingestLimiter.Allow(c.Request.Context(), scope, key(c))
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("ingest rate limit check failed", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
