package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulse-engage/backend/internal/auth"
	"github.com/pulse-engage/backend/pkg/response"
)

// Context keys for the validated claims, shared with the auth package.
const (
	ContextUserID    = auth.ContextUserID
	ContextUserRole  = auth.ContextUserRole
	ContextUserEmail = auth.ContextUserEmail
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
