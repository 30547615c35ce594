package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-report-api/internal/models"
)

type recordingAudit struct {
	entries []*models.AuditLog
	err     error
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return r.err
}

func newAuditRouter(recorder AuditRecorder, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PATCH("/issues/:id/status",
		func(c *gin.Context) {
			c.Set(ContextIdentityKey, models.Identity{ID: "admin-1", IsAdmin: true})
			c.Next()
		},
		Audit(recorder, models.AuditActionStatusUpdate, "issue", nil),
		func(c *gin.Context) {
			SetAuditValues(c, map[string]interface{}{"to": "resolved"})
			c.Status(status)
		},
	)
	return router
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &recordingAudit{}
	router := newAuditRouter(recorder, http.StatusNoContent)

	req := httptest.NewRequest(http.MethodPatch, "/issues/i1/status", nil)
	req.Header.Set("User-Agent", "test-agent")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.AuditActionStatusUpdate, entry.Action)
	assert.Equal(t, "issue", entry.Resource)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "i1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Equal(t, "test-agent", entry.UserAgent)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &values))
	assert.Equal(t, "resolved", values["to"])
	assert.Equal(t, http.MethodPatch, values["method"])
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	recorder := &recordingAudit{}
	router := newAuditRouter(recorder, http.StatusBadGateway)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/issues/i1/status", nil))

	assert.Empty(t, recorder.entries)
}

func TestAuditRecorderFailureDoesNotChangeResponse(t *testing.T) {
	recorder := &recordingAudit{err: errors.New("db down")}
	router := newAuditRouter(recorder, http.StatusNoContent)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/issues/i1/status", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, recorder.entries, 1)
}
