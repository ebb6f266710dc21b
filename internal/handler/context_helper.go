package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/middleware"
	"github.com/noah-isme/homeroom-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the caller's teacher id for audit entries, nil when the
// route is somehow unauthenticated.
func actorID(c *gin.Context) *string {
	claims := claimsFromContext(c)
	if claims == nil || claims.TeacherID == "" {
		return nil
	}
	id := claims.TeacherID
	return &id
}
