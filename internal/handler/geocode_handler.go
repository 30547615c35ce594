package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-report-api/internal/dto"
	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/response"
)

type reverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// GeocodeHandler previews the address a report will be stored with.
type GeocodeHandler struct {
	geocoder reverseGeocoder
}

// NewGeocodeHandler constructs the handler.
func NewGeocodeHandler(geocoder reverseGeocoder) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder}
}

// Reverse godoc
// @Summary Reverse geocode
// @Description Resolves coordinates to an address. When the lookup fails the coordinate label is returned with resolved=false and the location error code in meta.
// @Tags Geocoding
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /api/v1/geocode [get]
func (h *GeocodeHandler) Reverse(c *gin.Context) {
	var query dto.GeocodeQuery
	if err := c.ShouldBindQuery(&query); err != nil || query.Latitude == nil || query.Longitude == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lat and lng are required"))
		return
	}
	location := models.Location{Latitude: *query.Latitude, Longitude: *query.Longitude}
	if !location.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "coordinates out of range"))
		return
	}

	result := dto.GeocodeResponse{Latitude: location.Latitude, Longitude: location.Longitude}
	address, err := h.geocoder.Reverse(c.Request.Context(), location.Latitude, location.Longitude)
	if err != nil {
		result.Address = location.CoordinateLabel()
		middleware.SetMeta(c, "location_error", appErrors.FromError(err).Code)
	} else {
		result.Address = address
		result.Resolved = true
	}

	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}
