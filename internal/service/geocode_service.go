package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/pkg/config"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

// GeocodeService turns coordinates into a display address using a
// Nominatim-compatible reverse geocoding endpoint.
type GeocodeService struct {
	client    *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
	cacheTTL  time.Duration
	enabled   bool
	cache     *CacheService
	logger    *zap.Logger
}

// NewGeocodeService constructs the geocoder. A nil client uses http.DefaultClient.
func NewGeocodeService(cfg config.GeocodeConfig, client *http.Client, cache *CacheService, logger *zap.Logger) *GeocodeService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GeocodeService{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   timeout,
		cacheTTL:  cfg.CacheTTL,
		enabled:   cfg.Enabled && cfg.BaseURL != "",
		cache:     cache,
		logger:    logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse returns the display name for the coordinates. Failures are
// location errors.
func (s *GeocodeService) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	if !s.enabled {
		return "", appErrors.Clone(appErrors.ErrLocationUnknown, "reverse geocoding is disabled")
	}
	if !(models.Location{Latitude: lat, Longitude: lng}).Valid() {
		return "", appErrors.Clone(appErrors.ErrLocationUnknown, "coordinates out of range")
	}

	key := fmt.Sprintf("geocode:%.5f,%.5f", lat, lng)
	var cached string
	if s.cache.Get(ctx, key, &cached) && cached != "" {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrLocationUnknown.Code, appErrors.ErrLocationUnknown.Status, "failed to build geocoding request")
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", appErrors.Wrap(err, appErrors.ErrLocationTimeout.Code, appErrors.ErrLocationTimeout.Status, appErrors.ErrLocationTimeout.Message)
		}
		return "", appErrors.Wrap(err, appErrors.ErrLocationUnknown.Code, appErrors.ErrLocationUnknown.Status, appErrors.ErrLocationUnknown.Message)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", appErrors.Wrap(fmt.Errorf("geocoder returned %d", resp.StatusCode), appErrors.ErrLocationUnknown.Code, appErrors.ErrLocationUnknown.Status, "geocoding failed")
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrLocationUnknown.Code, appErrors.ErrLocationUnknown.Status, "geocoding failed")
	}
	if body.DisplayName == "" {
		return "", appErrors.Clone(appErrors.ErrLocationUnknown, "no address found for coordinates")
	}

	s.cache.Set(ctx, key, body.DisplayName, s.cacheTTL)
	return body.DisplayName, nil
}

// Describe fills in the address when it is missing, falling back to the
// coordinate label when the geocoder cannot help.
func (s *GeocodeService) Describe(ctx context.Context, loc models.Location) models.Location {
	if strings.TrimSpace(loc.Address) != "" {
		return loc
	}
	address, err := s.Reverse(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		if s.enabled {
			s.logger.Warn("reverse geocoding failed", zap.Float64("lat", loc.Latitude), zap.Float64("lng", loc.Longitude), zap.Error(err))
		}
		loc.Address = loc.CoordinateLabel()
		return loc
	}
	loc.Address = address
	return loc
}
