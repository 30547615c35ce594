package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

func identityFromContext(c *gin.Context) (models.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok || identity.ID == "" {
		return models.Identity{}, appErrors.ErrUnauthorized
	}
	return identity, nil
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
