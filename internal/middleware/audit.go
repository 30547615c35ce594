package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
)

const auditValuesKey = "audit_values"

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditValues attaches handler-specific values to the audit entry of the
// current request.
func SetAuditValues(c *gin.Context, values map[string]interface{}) {
	c.Set(auditValuesKey, values)
}

// Audit records an entry after every successful request. The :id route
// parameter, when present, becomes the resource id.
func Audit(recorder AuditRecorder, action, resource string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if identity, ok := CurrentIdentity(c); ok {
			entry.UserID = &identity.ID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}

		values := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if extra, ok := c.Get(auditValuesKey); ok {
			if typed, ok := extra.(map[string]interface{}); ok {
				for k, v := range typed {
					values[k] = v
				}
			}
		}
		entry.NewValues, _ = json.Marshal(values)

		if err := recorder.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
