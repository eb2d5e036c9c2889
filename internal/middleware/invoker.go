package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

// InvokerTokenHeader carries the shared secret used by scheduled callers.
const InvokerTokenHeader = "X-Invoker-Token"

// InvokerOrRoles admits a scheduled caller presenting the shared token, or an
// authenticated user holding one of roles. An empty token disables the token path.
func InvokerOrRoles(token string, validator TokenValidator, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if presented := c.GetHeader(InvokerTokenHeader); token != "" && presented != "" {
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
				c.Next()
				return
			}
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid invoker token"))
			c.Abort()
			return
		}

		bearer, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			c.Abort()
			return
		}
		claims, err := validator.ValidateToken(bearer)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, claims)
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
