package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

func newIssueRouter(issues *fakeIssues, identity models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewIssueHandler(issues, nil, 1024)
	router := gin.New()
	router.Use(withIdentity(identity))
	router.POST("/report", h.Submit)
	router.GET("/issues", h.List)
	router.GET("/issues/export", h.Export)
	router.GET("/issues/:id", h.Get)
	router.PATCH("/issues/:id/status", h.UpdateStatus)
	return router
}

func multipartReport(t *testing.T, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if photo != nil {
		part, err := writer.CreateFormFile("photo", "pothole.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/report", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestIssueHandlerSubmit(t *testing.T) {
	issues := &fakeIssues{}
	router := newIssueRouter(issues, models.Identity{ID: "u1"})

	req := multipartReport(t, map[string]string{
		"category":    "pothole",
		"description": "deep crater",
		"latitude":    "12.9716",
		"longitude":   "77.5946",
	}, []byte("photo-bytes"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"new-issue"`)

	require.Len(t, issues.submitted, 1)
	form := issues.submitted[0]
	assert.Equal(t, models.CategoryPothole, form.Category)
	assert.Equal(t, "deep crater", form.Description)
	assert.Equal(t, 12.9716, form.Location.Latitude)
	assert.Equal(t, 77.5946, form.Location.Longitude)
	require.NotNil(t, form.Photo)
	assert.Equal(t, []byte("photo-bytes"), form.Photo.Data)
	assert.Equal(t, "pothole.png", form.Photo.Filename)
}

func TestIssueHandlerSubmitCapsPhotoRead(t *testing.T) {
	issues := &fakeIssues{}
	router := newIssueRouter(issues, models.Identity{ID: "u1"})

	req := multipartReport(t, map[string]string{"category": "garbage"}, bytes.Repeat([]byte{1}, 4096))
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, issues.submitted, 1)
	assert.Len(t, issues.submitted[0].Photo.Data, 1025)
}

func TestIssueHandlerSubmitWithoutPhoto(t *testing.T) {
	router := newIssueRouter(&fakeIssues{}, models.Identity{ID: "u1"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartReport(t, map[string]string{"category": "pothole"}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please upload a photo of the issue")
}

func TestIssueHandlerListAndGet(t *testing.T) {
	issues := &fakeIssues{issues: sampleIssues()}
	router := newIssueRouter(issues, models.Identity{ID: "u1"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues?scope=all", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues/i1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues/i3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueHandlerUpdateStatus(t *testing.T) {
	issues := &fakeIssues{issues: sampleIssues()}
	router := newIssueRouter(issues, models.Identity{ID: "a1", IsAdmin: true})

	patch := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/issues/i1/status", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, patch(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(`not json`).Code)

	rec := patch(`{"status":"resolved","adminNotes":"filled"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, issues.updates, 1)
	assert.Equal(t, "i1", issues.updates[0].id)
	assert.Equal(t, models.StatusResolved, issues.updates[0].status)
	require.NotNil(t, issues.updates[0].notes)
	assert.Equal(t, "filled", *issues.updates[0].notes)

	issues.updateErr = appErrors.Persistence(assert.AnError, "issue not found")
	rec = patch(`{"status":"pending"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestIssueHandlerExport(t *testing.T) {
	router := newIssueRouter(&fakeIssues{}, models.Identity{ID: "a1", IsAdmin: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "issues-20240501-100000.csv")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues/export?format=xlsx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseCoordinate(t *testing.T) {
	assert.Equal(t, 12.5, parseCoordinate(" 12.5 "))
	assert.Equal(t, 0.0, parseCoordinate(""))
	assert.Equal(t, 0.0, parseCoordinate("north"))
}
