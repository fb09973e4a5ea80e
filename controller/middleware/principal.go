package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"media-vault/controller/respond"
)

const (
	// HeaderUserId set by the authenticating proxy in front of the service
	HeaderUserId = "X-User-Id"

	principalKey = "principal"
)

// RequirePrincipal rejects requests without an authenticated user id
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := strings.TrimSpace(c.GetHeader(HeaderUserId))
		if userId == "" {
			respond.Unauthorized(c, "missing "+HeaderUserId+" header")
			return
		}
		c.Set(principalKey, userId)
		c.Next()
	}
}

// Principal returns the user id stored by RequirePrincipal
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}
