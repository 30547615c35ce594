package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/export"
	"github.com/noah-isme/civic-report-api/pkg/imageenc"
)

var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

type memoryIssueRepo struct {
	issues    map[string]*models.Issue
	order     []string
	createErr error
	clock     time.Time
}

func newMemoryIssueRepo() *memoryIssueRepo {
	return &memoryIssueRepo{issues: map[string]*models.Issue{}, clock: baseTime}
}

func (m *memoryIssueRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryIssueRepo) Create(ctx context.Context, form models.IssueFormData, reporterID, reporterEmail string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	id := "i" + string(rune('a'+len(m.order)))
	now := m.tick()
	m.issues[id] = &models.Issue{
		ID: id, PhotoURL: "data:image/png;base64,x", Location: form.Location, Category: form.Category,
		Description: form.Description, Status: models.StatusPending, Timestamp: now, UpdatedAt: now,
		ReporterID: reporterID, ReporterEmail: reporterEmail,
	}
	m.order = append([]string{id}, m.order...)
	return id, nil
}

func (m *memoryIssueRepo) list(match func(*models.Issue) bool) []models.Issue {
	out := []models.Issue{}
	for _, id := range m.order {
		if issue := m.issues[id]; match(issue) {
			out = append(out, *issue)
		}
	}
	return out
}

func (m *memoryIssueRepo) ListByOwner(ctx context.Context, reporterID string) ([]models.Issue, error) {
	return m.list(func(i *models.Issue) bool { return i.ReporterID == reporterID }), nil
}

func (m *memoryIssueRepo) ListAll(ctx context.Context) ([]models.Issue, error) {
	return m.list(func(*models.Issue) bool { return true }), nil
}

func (m *memoryIssueRepo) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	issue, ok := m.issues[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
	}
	dup := *issue
	return &dup, nil
}

func (m *memoryIssueRepo) UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error {
	issue, ok := m.issues[issueID]
	if !ok {
		return appErrors.Persistence(errors.New("no rows"), "issue not found")
	}
	issue.Status = status
	issue.UpdatedAt = m.tick()
	if adminNotes != nil {
		issue.AdminNotes = *adminNotes
	}
	return nil
}

type fixedDescriber struct{ address string }

func (f fixedDescriber) Describe(ctx context.Context, loc models.Location) models.Location {
	if loc.Address == "" {
		loc.Address = f.address
	}
	return loc
}

func validForm() models.IssueFormData {
	return models.IssueFormData{
		Photo:       &models.PhotoUpload{Filename: "crater.png", Data: pngBytes},
		Category:    models.CategoryPothole,
		Description: "Large crater on Main St",
		Location:    models.Location{Latitude: 12.9716, Longitude: 77.5946},
	}
}

func newIssueService(repo *memoryIssueRepo, policy models.TransitionPolicy) *IssueService {
	return NewIssueService(repo, fixedDescriber{address: "Main St"}, imageenc.New(1024), policy, nil, nil)
}

func TestIssueServiceSubmitScenario(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionAny)
	reporter := models.Identity{ID: "u1", Email: "u1@example.com"}

	id, err := svc.Submit(context.Background(), reporter, validForm())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	issues, err := svc.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, models.StatusPending, issues[0].Status)
	assert.Equal(t, models.CategoryPothole, issues[0].Category)
	assert.Equal(t, "Large crater on Main St", issues[0].Description)
	assert.Equal(t, "Main St", issues[0].Location.Address)
	assert.Equal(t, issues[0].Timestamp, issues[0].UpdatedAt)
}

func TestIssueServiceSubmitValidation(t *testing.T) {
	svc := newIssueService(newMemoryIssueRepo(), models.TransitionAny)
	reporter := models.Identity{ID: "u1"}

	cases := map[string]func(*models.IssueFormData){
		"Please upload a photo of the issue": func(f *models.IssueFormData) { f.Photo = nil },
		"Invalid image file":                 func(f *models.IssueFormData) { f.Photo.Data = []byte("plain text, not an image") },
		"Image is too large": func(f *models.IssueFormData) {
			f.Photo.Data = append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
		},
		"Please enable location access to report the issue": func(f *models.IssueFormData) { f.Location = models.Location{} },
		"Please provide a description of the issue":         func(f *models.IssueFormData) { f.Description = "   " },
		"Please select a category":                          func(f *models.IssueFormData) { f.Category = "" },
		"Unknown category: graffiti":                        func(f *models.IssueFormData) { f.Category = "graffiti" },
	}
	for message, mutate := range cases {
		form := validForm()
		mutate(&form)
		_, err := svc.Submit(context.Background(), reporter, form)
		require.ErrorIs(t, err, appErrors.ErrValidation, message)
		assert.Equal(t, message, appErrors.FromError(err).Message)
	}

	_, err := svc.Submit(context.Background(), models.Identity{}, validForm())
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestIssueServiceSubmitPersistenceFailure(t *testing.T) {
	repo := newMemoryIssueRepo()
	repo.createErr = appErrors.Persistence(errors.New("denied"), "failed to create issue")
	svc := newIssueService(repo, models.TransitionAny)

	_, err := svc.Submit(context.Background(), models.Identity{ID: "u1"}, validForm())
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
}

func TestIssueServiceAcceptsLongFreeText(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionAny)

	form := validForm()
	form.Description = strings.Repeat("Sewage overflowing onto the footpath. ", 250)
	id, err := svc.Submit(context.Background(), models.Identity{ID: "u1"}, form)
	require.NoError(t, err)

	notes := strings.Repeat("Inspection scheduled with the utility. ", 250)
	require.NoError(t, svc.UpdateStatus(context.Background(), id, models.StatusInProgress, &notes))

	issues, err := svc.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Greater(t, len(issues[0].Description), 9000)
	assert.Equal(t, strings.TrimSpace(form.Description), issues[0].Description)
	assert.Equal(t, notes, issues[0].AdminNotes)
}

func TestIssueServiceAdminTransitionScenario(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionAny)
	id, err := svc.Submit(context.Background(), models.Identity{ID: "u1"}, validForm())
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, models.StatusInProgress, nil))

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusInProgress, all[0].Status)
	assert.True(t, all[0].UpdatedAt.After(all[0].Timestamp))

	require.NoError(t, svc.UpdateStatus(context.Background(), id, models.StatusPending, nil))
	assert.ErrorIs(t, svc.UpdateStatus(context.Background(), id, "archived", nil), appErrors.ErrValidation)
}

func TestIssueServiceForwardPolicy(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionForward)
	assert.Equal(t, models.TransitionForward, svc.Policy())
	id, err := svc.Submit(context.Background(), models.Identity{ID: "u1"}, validForm())
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), id, models.StatusResolved, nil))
	err = svc.UpdateStatus(context.Background(), id, models.StatusPending, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	err = svc.UpdateStatus(context.Background(), "missing", models.StatusResolved, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestIssueServiceListAndGetVisibility(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionAny)
	id, err := svc.Submit(context.Background(), models.Identity{ID: "u1"}, validForm())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), models.Identity{ID: "u2"}, validForm())
	require.NoError(t, err)

	_, err = svc.List(context.Background(), models.Identity{ID: "u1"}, true)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	own, err := svc.List(context.Background(), models.Identity{ID: "u1"}, false)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := svc.List(context.Background(), models.Identity{ID: "a1", IsAdmin: true}, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Get(context.Background(), models.Identity{ID: "u2"}, id)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	issue, err := svc.Get(context.Background(), models.Identity{ID: "u1"}, id)
	require.NoError(t, err)
	assert.Equal(t, id, issue.ID)
}

func TestIssueServiceExport(t *testing.T) {
	repo := newMemoryIssueRepo()
	svc := newIssueService(repo, models.TransitionAny)
	svc.now = func() time.Time { return baseTime }
	_, err := svc.Submit(context.Background(), models.Identity{ID: "u1", Email: "u1@example.com"}, validForm())
	require.NoError(t, err)

	_, _, err = svc.Export(context.Background(), models.Identity{ID: "u1"}, export.FormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	body, filename, err := svc.Export(context.Background(), models.Identity{ID: "a1", IsAdmin: true}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "issues-20240501-100000.csv", filename)

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "pothole", records[1][1])
	assert.Equal(t, "Main St", records[1][4])
	assert.Equal(t, "u1@example.com", records[1][5])
}
