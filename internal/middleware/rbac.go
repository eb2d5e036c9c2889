package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

// SelfStudent admits a student whose linked student record matches the :id route parameter.
const SelfStudent models.UserRole = "SELF"

// RBAC admits callers holding one of the listed roles. Include SelfStudent to also admit
// students acting on their own record.
func RBAC(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	selfAllowed := allowed[SelfStudent]

	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
		case allowed[claims.Role]:
			c.Next()
		case selfAllowed && claims.Role == models.RoleStudent:
			if claims.StudentID == "" || c.Param("id") != claims.StudentID {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only access their own records"))
				c.Abort()
				return
			}
			c.Next()
		default:
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
		}
	}
}
