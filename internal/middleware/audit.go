package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// AuditRecorder accepts best-effort audit entries.
type AuditRecorder interface {
	Record(actor models.Actor, action, resource, resourceID string, values interface{})
}

// ActorFrom builds the acting principal from JWT claims and request metadata.
func ActorFrom(c *gin.Context) models.Actor {
	actor := models.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := Claims(c); claims != nil {
		actor.UserID = claims.UserID
		actor.Role = claims.Role
	} else {
		actor.Role = models.RoleSystem
	}
	return actor
}

// Audit records an entry after successful read-only requests that services do not audit themselves.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}
		recorder.Record(ActorFrom(c), action, resource, c.Param("id"), map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"query":      c.Request.URL.RawQuery,
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}
