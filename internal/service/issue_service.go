package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/export"
	"github.com/noah-isme/civic-report-api/pkg/imageenc"
)

type issueRepository interface {
	Create(ctx context.Context, form models.IssueFormData, reporterID, reporterEmail string) (string, error)
	ListByOwner(ctx context.Context, reporterID string) ([]models.Issue, error)
	ListAll(ctx context.Context) ([]models.Issue, error)
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error
}

type locationDescriber interface {
	Describe(ctx context.Context, loc models.Location) models.Location
}

// IssueService validates submissions, enforces the transition policy and
// renders exports on top of the issue repository.
type IssueService struct {
	repo     issueRepository
	geocoder locationDescriber
	encoder  *imageenc.Encoder
	policy   models.TransitionPolicy
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewIssueService constructs an IssueService. geocoder may be nil.
func NewIssueService(repo issueRepository, geocoder locationDescriber, encoder *imageenc.Encoder, policy models.TransitionPolicy, metrics *MetricsService, logger *zap.Logger) *IssueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		repo:     repo,
		geocoder: geocoder,
		encoder:  encoder,
		policy:   models.ParseTransitionPolicy(string(policy)),
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the active transition policy.
func (s *IssueService) Policy() models.TransitionPolicy {
	return s.policy
}

// Submit validates the report and stores it as a pending issue owned by reporter.
func (s *IssueService) Submit(ctx context.Context, reporter models.Identity, form models.IssueFormData) (string, error) {
	if reporter.ID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "You must be logged in to report issues")
	}
	if err := s.validateForm(&form); err != nil {
		return "", err
	}

	if s.geocoder != nil {
		form.Location = s.geocoder.Describe(ctx, form.Location)
	}

	start := time.Now()
	id, err := s.repo.Create(ctx, form, reporter.ID, reporter.Email)
	s.metrics.ObserveDBQuery("issues.create", time.Since(start))
	if err != nil {
		return "", err
	}

	s.metrics.RecordIssueSubmitted(form.Category)
	s.logger.Info("issue reported", zap.String("issue_id", id), zap.String("reporter_id", reporter.ID), zap.String("category", string(form.Category)))
	return id, nil
}

func (s *IssueService) validateForm(form *models.IssueFormData) error {
	if form.Photo == nil || len(form.Photo.Data) == 0 {
		return appErrors.Validation("Please upload a photo of the issue")
	}
	if _, err := s.encoder.Validate(form.Photo.Data); err != nil {
		switch {
		case errors.Is(err, imageenc.ErrTooLarge):
			return appErrors.Validation("Image is too large")
		case errors.Is(err, imageenc.ErrNotImage):
			return appErrors.Validation("Invalid image file")
		default:
			return appErrors.Validation("Please upload a photo of the issue")
		}
	}
	if (form.Location.Latitude == 0 && form.Location.Longitude == 0) || !form.Location.Valid() {
		return appErrors.Validation("Please enable location access to report the issue")
	}
	form.Description = strings.TrimSpace(form.Description)
	if form.Description == "" {
		return appErrors.Validation("Please provide a description of the issue")
	}
	if form.Category == "" {
		return appErrors.Validation("Please select a category")
	}
	if !form.Category.Valid() {
		return appErrors.Validation("Unknown category: " + string(form.Category))
	}
	return nil
}

// ListByOwner returns the reporter's issues, newest first.
func (s *IssueService) ListByOwner(ctx context.Context, reporterID string) ([]models.Issue, error) {
	start := time.Now()
	issues, err := s.repo.ListByOwner(ctx, reporterID)
	s.metrics.ObserveDBQuery("issues.list_by_owner", time.Since(start))
	return issues, err
}

// ListAll returns every issue, newest first.
func (s *IssueService) ListAll(ctx context.Context) ([]models.Issue, error) {
	start := time.Now()
	issues, err := s.repo.ListAll(ctx)
	s.metrics.ObserveDBQuery("issues.list_all", time.Since(start))
	return issues, err
}

// List returns the viewer's own issues, or every issue when an administrator
// asks for all of them.
func (s *IssueService) List(ctx context.Context, viewer models.Identity, all bool) ([]models.Issue, error) {
	if all {
		if !viewer.IsAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can list all issues")
		}
		return s.ListAll(ctx)
	}
	return s.ListByOwner(ctx, viewer.ID)
}

// Get returns an issue visible to viewer.
func (s *IssueService) Get(ctx context.Context, viewer models.Identity, id string) (*models.Issue, error) {
	start := time.Now()
	issue, err := s.repo.GetByID(ctx, id)
	s.metrics.ObserveDBQuery("issues.get", time.Since(start))
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin && issue.ReporterID != viewer.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
	}
	return issue, nil
}

// UpdateStatus checks the transition against the configured policy and
// persists it. Callers are responsible for the administrator check.
func (s *IssueService) UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) (err error) {
	defer func() { s.metrics.RecordStatusUpdate(status, err) }()

	if !status.Valid() {
		return appErrors.Validation("unknown status: " + string(status))
	}

	if s.policy != models.TransitionAny {
		current, err := s.repo.GetByID(ctx, issueID)
		if err != nil {
			return err
		}
		if !s.policy.Allows(current.Status, status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move issue from %s to %s", current.Status, status))
		}
	}

	start := time.Now()
	err = s.repo.UpdateStatus(ctx, issueID, status, adminNotes)
	s.metrics.ObserveDBQuery("issues.update_status", time.Since(start))
	if err != nil {
		return err
	}
	s.logger.Info("issue status updated", zap.String("issue_id", issueID), zap.String("status", string(status)))
	return nil
}

// Export renders every issue for an administrator.
func (s *IssueService) Export(ctx context.Context, viewer models.Identity, format export.Format) ([]byte, string, error) {
	if !viewer.IsAdmin {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "only administrators can export issues")
	}
	issues, err := s.ListAll(ctx)
	if err != nil {
		return nil, "", err
	}

	generatedAt := s.now()
	body, err := export.Render(format, issueTable(issues, generatedAt))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("issues-%s.%s", generatedAt.Format("20060102-150405"), format)
	return body, filename, nil
}

func issueTable(issues []models.Issue, generatedAt time.Time) export.Table {
	col := func(key, title string, width float64, value func(models.Issue) string) export.Column {
		return export.Column{Key: key, Title: title, Width: width, Values: func(i int) string { return value(issues[i]) }}
	}
	return export.Table{
		Title:       "Reported issues",
		GeneratedAt: generatedAt,
		Rows:        len(issues),
		Columns: []export.Column{
			col("id", "ID", 2.2, func(i models.Issue) string { return i.ID }),
			col("category", "Category", 1.1, func(i models.Issue) string { return string(i.Category) }),
			col("status", "Status", 1, func(i models.Issue) string { return string(i.Status) }),
			col("description", "Description", 3, func(i models.Issue) string { return i.Description }),
			col("address", "Address", 2.5, func(i models.Issue) string {
				if i.Location.Address != "" {
					return i.Location.Address
				}
				return i.Location.CoordinateLabel()
			}),
			col("reporter_email", "Reporter", 1.8, func(i models.Issue) string { return i.ReporterEmail }),
			col("created_at", "Reported", 1.4, func(i models.Issue) string { return i.Timestamp.Format(time.RFC3339) }),
			col("updated_at", "Updated", 1.4, func(i models.Issue) string { return i.UpdatedAt.Format(time.RFC3339) }),
			col("admin_notes", "Notes", 2, func(i models.Issue) string { return i.AdminNotes }),
		},
	}
}
