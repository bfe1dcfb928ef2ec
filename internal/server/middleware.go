package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/progresspay/internal/auditcontext"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	"github.com/smallbiznis/progresspay/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderOrg   = "X-Org-Id"
	HeaderActor = "X-Actor-Id"
)

// OrgContext resolves the tenant and acting user from request headers.
// Identity is asserted by an upstream gateway.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := snowflake.ParseString(strings.TrimSpace(c.GetHeader(HeaderOrg)))
		if err != nil || orgID == 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_organization", "missing or invalid "+HeaderOrg+" header"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeUser, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimitWrites throttles mutating requests per organization. Limiter
// failures let the request through.
func RateLimitWrites(limiter *ratelimit.WriteLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		res, err := limiter.AllowOrg(c.Request.Context(), orgID.String())
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("org_id", orgID.String()), zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfterSeconds())
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
