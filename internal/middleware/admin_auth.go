package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorKey is the context key holding the authenticated admin name.
const ActorKey = "actor"

// AdminAuth accepts "Authorization: Bearer <token>" for any configured token.
// tokens maps token to admin name.
func AdminAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "missing bearer token",
			})
			return
		}

		name, ok := lookupToken(tokens, strings.TrimSpace(token))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid token",
			})
			return
		}

		c.Set(ActorKey, name)
		c.Next()
	}
}

func lookupToken(tokens map[string]string, token string) (string, bool) {
	for candidate, name := range tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return name, true
		}
	}
	return "", false
}

// Actor returns the admin name set by AdminAuth.
func Actor(c *gin.Context) string {
	return c.GetString(ActorKey)
}
