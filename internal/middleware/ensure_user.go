package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

// ContextProfileKey stores the local user row of the caller.
const ContextProfileKey = "currentProfile"

// UserProvisioner creates or refreshes the local user for a set of claims.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// EnsureUser makes sure the authenticated caller has a users row. It must run
// after JWT.
func EnsureUser(users UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.EnsureUser(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextProfileKey, user)
		if claims.Role == "" {
			claims.Role = user.Role
		}
		c.Next()
	}
}

// Profile returns the user row attached by EnsureUser.
func Profile(c *gin.Context) *models.User {
	value, exists := c.Get(ContextProfileKey)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
