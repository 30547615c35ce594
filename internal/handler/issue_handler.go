package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/civic-report-api/internal/dto"
	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/export"
	"github.com/noah-isme/civic-report-api/pkg/response"
)

type issueService interface {
	Submit(ctx context.Context, reporter models.Identity, form models.IssueFormData) (string, error)
	List(ctx context.Context, viewer models.Identity, all bool) ([]models.Issue, error)
	Get(ctx context.Context, viewer models.Identity, id string) (*models.Issue, error)
	UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error
	Export(ctx context.Context, viewer models.Identity, format export.Format) ([]byte, string, error)
}

// IssueHandler exposes issue reporting and administration endpoints.
type IssueHandler struct {
	service       issueService
	validate      *validator.Validate
	maxPhotoBytes int64
}

// NewIssueHandler constructs the handler. maxPhotoBytes caps how much of an
// uploaded photo is read; the service enforces the exact limit.
func NewIssueHandler(service issueService, validate *validator.Validate, maxPhotoBytes int64) *IssueHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &IssueHandler{service: service, validate: validate, maxPhotoBytes: maxPhotoBytes}
}

// Submit godoc
// @Summary Report an issue
// @Description Multipart submission with a photo, category, description and coordinates
// @Tags Issues
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo of the issue"
// @Param category formData string true "pothole, garbage, sewage, streetlight or others"
// @Param description formData string true "Description"
// @Param latitude formData number true "Latitude"
// @Param longitude formData number true "Longitude"
// @Param address formData string false "Address label"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /report [post]
func (h *IssueHandler) Submit(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	form := models.IssueFormData{
		Category:    models.IssueCategory(strings.TrimSpace(c.PostForm("category"))),
		Description: c.PostForm("description"),
		Location: models.Location{
			Latitude:  parseCoordinate(c.PostForm("latitude")),
			Longitude: parseCoordinate(c.PostForm("longitude")),
			Address:   strings.TrimSpace(c.PostForm("address")),
		},
	}

	photo, err := h.readPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	form.Photo = photo

	id, err := h.service.Submit(c.Request.Context(), identity, form)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.SubmitIssueResponse{ID: id, Message: "Issue reported successfully"})
}

// readPhoto returns nil when no photo was attached.
func (h *IssueHandler) readPhoto(c *gin.Context) (*models.PhotoUpload, error) {
	header, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read photo")
	}
	defer file.Close()

	var reader io.Reader = file
	if h.maxPhotoBytes > 0 {
		reader = io.LimitReader(file, h.maxPhotoBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read photo")
	}
	return &models.PhotoUpload{Filename: header.Filename, Data: data}, nil
}

// List godoc
// @Summary List issues
// @Description Own issues, or every issue for administrators with scope=all
// @Tags Issues
// @Produce json
// @Param scope query string false "own (default) or all"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /api/v1/issues [get]
func (h *IssueHandler) List(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.IssueListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	issues, err := h.service.List(c.Request.Context(), identity, strings.EqualFold(query.Scope, "all"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issues, map[string]interface{}{
		"total": len(issues),
		"stats": models.CountIssues(issues),
	})
}

// Get godoc
// @Summary Get issue
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	issue, err := h.service.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issue)
}

// UpdateStatus godoc
// @Summary Change issue status
// @Description Administrators move an issue between pending, in-progress and resolved
// @Tags Issues
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body dto.UpdateIssueStatusRequest true "New status"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /api/v1/issues/{id}/status [patch]
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateIssueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}

	id := c.Param("id")
	if err := h.service.UpdateStatus(c.Request.Context(), id, req.Status, req.AdminNotes); err != nil {
		response.Error(c, err)
		return
	}

	values := map[string]interface{}{"to": req.Status}
	if req.AdminNotes != nil {
		values["admin_notes"] = *req.AdminNotes
	}
	middleware.SetAuditValues(c, values)
	response.NoContent(c)
}

// Export godoc
// @Summary Export issues
// @Description Download every issue as CSV or PDF
// @Tags Issues
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /api/v1/issues/export [get]
func (h *IssueHandler) Export(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	body, filename, err := h.service.Export(c.Request.Context(), identity, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditValues(c, map[string]interface{}{"format": string(format), "filename": filename})
	response.File(c, filename, format.ContentType(), body)
}

// parseCoordinate treats a missing or malformed value as zero, which the
// service reports as missing location access.
func parseCoordinate(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}
