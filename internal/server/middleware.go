package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/fundops/internal/auditcontext"
	"github.com/smallbiznis/fundops/internal/config"
	"github.com/smallbiznis/fundops/internal/orgcontext"
)

const (
	HeaderOrg       = "X-Org-ID"
	HeaderRequestID = "X-Request-ID"
	HeaderActor     = "X-Actor-ID"
)

// OrgContext resolves the tenant from the X-Org-ID header and injects
// it into the request context. Services reject requests that arrive
// without a resolvable org.
func OrgContext(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := cfg.DefaultOrgID
		if header := strings.TrimSpace(c.GetHeader(HeaderOrg)); header != "" {
			if id, err := snowflake.ParseString(header); err == nil {
				orgID = int64(id)
			}
		}
		if orgID != 0 {
			ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequestMetadata propagates the request id and caller identity into
// the context consumed by the audit trail.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := auditcontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = auditcontext.WithActor(ctx, "api_key", actor)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
