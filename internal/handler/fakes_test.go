package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/export"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func withIdentity(identity models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextIdentityKey, identity)
		c.Next()
	}
}

type fakeSessions struct {
	session       *models.AuthSession
	err           error
	loggedOut     string
	lastRegister  models.RegisterRequest
	lastLoginIP   string
	refreshCalled bool
}

func (f *fakeSessions) Login(_ context.Context, req models.LoginRequest) (*models.AuthSession, error) {
	f.lastLoginIP = req.IP
	return f.session, f.err
}

func (f *fakeSessions) Register(_ context.Context, req models.RegisterRequest) (*models.AuthSession, error) {
	f.lastRegister = req
	return f.session, f.err
}

func (f *fakeSessions) Logout(_ context.Context, refreshToken string, _ models.Identity, _ models.RequestMeta) error {
	f.loggedOut = refreshToken
	return f.err
}

func (f *fakeSessions) Refresh(_ context.Context, _ models.RefreshTokenRequest) (*models.AuthSession, error) {
	f.refreshCalled = true
	return f.session, f.err
}

type statusCall struct {
	id     string
	status models.IssueStatus
	notes  *string
}

// fakeIssues backs both the issue handler and the dashboard handler.
type fakeIssues struct {
	mu        sync.Mutex
	issues    []models.Issue
	listErr   error
	updateErr error
	submitted []models.IssueFormData
	updates   []statusCall
	listedAll bool
}

func (f *fakeIssues) Submit(_ context.Context, reporter models.Identity, form models.IssueFormData) (string, error) {
	if form.Photo == nil {
		return "", appErrors.Validation("Please upload a photo of the issue")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, form)
	return "new-issue", nil
}

func (f *fakeIssues) List(ctx context.Context, viewer models.Identity, all bool) ([]models.Issue, error) {
	if all {
		if !viewer.IsAdmin {
			return nil, appErrors.ErrForbidden
		}
		return f.ListAll(ctx)
	}
	return f.ListByOwner(ctx, viewer.ID)
}

func (f *fakeIssues) ListAll(context.Context) ([]models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedAll = true
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Issue(nil), f.issues...), nil
}

func (f *fakeIssues) ListByOwner(_ context.Context, reporterID string) ([]models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.Issue{}
	for _, issue := range f.issues {
		if issue.ReporterID == reporterID {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (f *fakeIssues) Get(_ context.Context, viewer models.Identity, id string) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, issue := range f.issues {
		if issue.ID == id && (viewer.IsAdmin || issue.ReporterID == viewer.ID) {
			found := issue
			return &found, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeIssues) UpdateStatus(_ context.Context, issueID string, status models.IssueStatus, notes *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusCall{id: issueID, status: status, notes: notes})
	return f.updateErr
}

func (f *fakeIssues) Export(_ context.Context, viewer models.Identity, format export.Format) ([]byte, string, error) {
	if !viewer.IsAdmin {
		return nil, "", appErrors.ErrForbidden
	}
	return []byte("id,status\n"), "issues-20240501-100000." + string(format), nil
}

func sampleIssues() []models.Issue {
	return []models.Issue{
		{ID: "i3", Category: models.CategorySewage, Status: models.StatusResolved, ReporterID: "u2", Timestamp: baseTime.Add(2 * time.Hour)},
		{ID: "i2", Category: models.CategoryGarbage, Status: models.StatusInProgress, ReporterID: "u1", Timestamp: baseTime.Add(time.Hour)},
		{ID: "i1", Category: models.CategoryPothole, Status: models.StatusPending, ReporterID: "u1", Timestamp: baseTime, PhotoURL: "data:image/png;base64,AAAA"},
	}
}
