package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plantkeeper/internal/auth"
	"plantkeeper/internal/core"
)

const (
	userIDKey = "userID"
	tokenKey  = "token"
)

// bearerAuth resolves the Authorization header to a user id and attaches it to
// the request context as the acting user.
func bearerAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is missing"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header format must be Bearer {token}"})
			return
		}
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token verifier configured"})
			return
		}
		uid, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userIDKey, uid)
		c.Set(tokenKey, parts[1])
		c.Request = c.Request.WithContext(core.WithActor(c.Request.Context(), uid))
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
