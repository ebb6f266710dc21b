package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Per-row scoping
// (which specific students a teacher may touch) lives in the access
// service; this only gates whole endpoints by role.
func RBAC(roles ...models.TeacherRole) gin.HandlerFunc {
	allowed := make(map[models.TeacherRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
