package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulldiary/backend/internal/auth"
)

const ActorKey = "actor"

// AuthRequired guards the admin surface with a bearer JWT and exposes the
// authenticated username as the moderation actor.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    40101,
				"message": "unauthorized",
				"data":    nil,
			})
			return
		}

		claims, err := auth.ParseJWT(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    40102,
				"message": "invalid token",
				"data":    nil,
			})
			return
		}

		c.Set(ActorKey, claims.Username)
		c.Next()
	}
}

// Actor returns the authenticated admin username, empty when unauthenticated.
func Actor(c *gin.Context) string {
	v, ok := c.Get(ActorKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
