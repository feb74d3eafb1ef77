package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-admin-service/internal/clients"
)

// ForwardToken puts the admin's bearer token on the request context so the
// commerce API clients can act on their behalf. Requests without a token are
// rejected.
func ForwardToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TOKEN_REQUIRED",
					"message": "Authorization header with a Bearer token is required",
				},
			})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(clients.WithToken(c.Request.Context(), token))
		c.Next()
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
