package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/jwt"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
)

const (
	ContextSubjectKey = "subject"
	ContextRoleKey    = "role"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after JWTAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != role {
			response.Error(c, errcode.ErrForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}
