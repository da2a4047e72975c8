package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalayaone/profile-api/internal/models"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
	"github.com/vidyalayaone/profile-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Record-level checks,
// such as a student reading their own profile, live with the handlers that
// have the record in hand.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		for _, a := range allowed {
			if models.UserRole(a) == claims.Role {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
