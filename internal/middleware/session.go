package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/logger"
	"github.com/noah-isme/civic-report-api/pkg/response"
)

// ContextIdentityKey is the gin context key storing the caller's identity.
const ContextIdentityKey = "identity"

// accessTokenQuery lets browser WebSocket clients, which cannot set headers,
// pass the bearer token.
const accessTokenQuery = "access_token"

// Identifier resolves an access token into an identity with its role derived.
type Identifier interface {
	Identify(ctx context.Context, accessToken string) (*models.Identity, error)
}

// Session requires a valid bearer token and stores the resolved identity.
func Session(identifier Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Abort(c, err)
			return
		}

		identity, err := identifier.Identify(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ContextIdentityKey, *identity)
		c.Set(logger.UserIDKey, identity.ID)
		c.Next()
	}
}

// RequireAdmin lets only administrators through. It must run after Session.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !identity.IsAdmin {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "administrator access required"))
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Session.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query(accessTokenQuery); token != "" {
			return token, nil
		}
		return "", appErrors.ErrUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
