package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/response"
)

const (
	apiKeyHeader    = "apikey"
	apiKeyAltHeader = "X-API-Key"
)

// APIKey requires the public API key on every request. The key may come from
// the apikey or X-API-Key header, or the apikey query parameter.
func APIKey(expected string) gin.HandlerFunc {
	want := []byte(expected)
	return func(c *gin.Context) {
		got := c.GetHeader(apiKeyHeader)
		if got == "" {
			got = c.GetHeader(apiKeyAltHeader)
		}
		if got == "" {
			got = c.Query(apiKeyHeader)
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid API key"))
			return
		}
		c.Next()
	}
}

// RequireBackend answers 503 BACKEND_UNAVAILABLE when the service was started
// without its connection parameters.
func RequireBackend(configured bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !configured {
			response.Abort(c, appErrors.ErrBackendUnavailable)
			return
		}
		c.Next()
	}
}
