package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/internal/service"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

type tokenIdentifier map[string]models.Identity

func (t tokenIdentifier) Identify(_ context.Context, token string) (*models.Identity, error) {
	identity, ok := t[token]
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return &identity, nil
}

type recordingAuditLog struct {
	actions []string
}

func (r *recordingAuditLog) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.actions = append(r.actions, log.Action)
	return nil
}

func buildRouter(configured bool, audit *recordingAuditLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	issues := &fakeIssues{issues: sampleIssues()}
	routes := Routes{
		BackendConfigured: configured,
		APIKey:            "public-key",
		Identifier: tokenIdentifier{
			"admin":   {ID: "a1", IsAdmin: true},
			"citizen": {ID: "u1"},
		},
		Auth:      NewAuthHandler(&fakeSessions{}),
		Issues:    NewIssueHandler(issues, nil, 1024),
		Dashboard: NewDashboardHandler(issues, nil, nil, nil, nil),
		Geocode:   NewGeocodeHandler(stubGeocoder{address: "somewhere"}),
		Metrics:   NewMetricsHandler(service.NewMetricsService()),
	}
	if audit != nil {
		routes.AuditRecorder = audit
	}
	engine := gin.New()
	routes.Register(engine)
	return engine
}

func call(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("apikey", "public-key")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRootRedirectsToDashboard(t *testing.T) {
	rec := call(buildRouter(true, nil), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestRoutesWithoutBackend(t *testing.T) {
	router := buildRouter(false, nil)

	rec := call(router, http.MethodGet, "/dashboard", "citizen")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "BACKEND_UNAVAILABLE")

	assert.Equal(t, http.StatusServiceUnavailable, call(router, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/metrics", "").Code)
}

func TestRoutesRequireAPIKeyAndSession(t *testing.T) {
	router := buildRouter(true, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid API key")

	assert.Equal(t, http.StatusUnauthorized, call(router, http.MethodGet, "/dashboard", "").Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/dashboard", "citizen").Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/v1/geocode?lat=1&lng=2", "citizen").Code)
}

func TestRoutesAdminOnly(t *testing.T) {
	audit := &recordingAuditLog{}
	router := buildRouter(true, audit)

	assert.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/api/v1/issues/export", "citizen").Code)
	assert.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/api/v1/system/metrics", "citizen").Code)

	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/v1/issues/export", "admin").Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/v1/system/metrics", "admin").Code)
	assert.Equal(t, []string{models.AuditActionExport}, audit.actions)

	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/v1/issues/i2", "citizen").Code)
}
