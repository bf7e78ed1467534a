package httpserver

import (
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
)

const (
	ctxUserID    = "userID"
	ctxSessionID = "sessionID"
)

// resolveIdentity attaches the caller's identity to the request: a bearer
// token resolving to a user wins, otherwise the guest session header is
// used. Resolution failures fall through to the guest path; routes that
// need an identity reject later.
func resolveIdentity(tokens TokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			raw := strings.TrimPrefix(auth, "Bearer ")
			if t, err := tokens.Get(c.Request.Context(), raw); err == nil {
				c.Set(ctxUserID, t.UserID)
				c.Next()
				return
			}
		}
		if sid := strings.TrimSpace(c.GetHeader("X-Session-Id")); sid != "" {
			c.Set(ctxSessionID, sid)
		}
		c.Next()
	}
}

func callerIdentity(c *gin.Context) domain.Identity {
	return domain.Identity{
		UserID:    c.GetString(ctxUserID),
		SessionID: c.GetString(ctxSessionID),
	}
}

func callerUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// requireAdmin guards the admin surface with a shared secret. Full RBAC is
// handled upstream.
func requireAdmin(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || c.GetHeader("X-Admin-Token") != adminToken {
			respondError(c, domain.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
