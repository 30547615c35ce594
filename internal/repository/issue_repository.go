package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/imageenc"
)

const issueColumns = `id, photo_base64, photo_url, latitude, longitude, address, category, description, status, created_at, updated_at, reporter_id, reporter_email, admin_notes`

// IssueRepository persists issues in the issues table.
type IssueRepository struct {
	db      *sqlx.DB
	encoder *imageenc.Encoder
	now     func() time.Time
}

// NewIssueRepository constructs an issue repository.
func NewIssueRepository(db *sqlx.DB, encoder *imageenc.Encoder) *IssueRepository {
	return &IssueRepository{db: db, encoder: encoder, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source.
func (r *IssueRepository) WithClock(now func() time.Time) *IssueRepository {
	r.now = now
	return r
}

// Create stores a new pending issue and returns its identifier. The form is
// persisted as given; callers validate beforehand.
func (r *IssueRepository) Create(ctx context.Context, form models.IssueFormData, reporterID, reporterEmail string) (string, error) {
	var photo *string
	if form.Photo != nil && len(form.Photo.Data) > 0 {
		encoded, err := r.encoder.DataURL(form.Photo.Data)
		if err != nil {
			return "", appErrors.Persistence(fmt.Errorf("encode photo: %w", err), "failed to store issue photo")
		}
		photo = &encoded
	}

	id := uuid.NewString()
	now := r.now()
	const query = `INSERT INTO issues (id, photo_base64, latitude, longitude, address, category, description, status, created_at, updated_at, reporter_id, reporter_email) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		id, photo,
		form.Location.Latitude, form.Location.Longitude, nullable(form.Location.Address),
		form.Category, form.Description, models.StatusPending,
		now, now,
		reporterID, nullable(reporterEmail),
	)
	if err != nil {
		return "", appErrors.Persistence(fmt.Errorf("create issue: %w", err), "failed to create issue")
	}
	return id, nil
}

// ListByOwner returns the reporter's issues, newest first.
func (r *IssueRepository) ListByOwner(ctx context.Context, reporterID string) ([]models.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE reporter_id = $1 ORDER BY created_at DESC`, issueColumns)
	var rows []models.IssueRow
	if err := r.db.SelectContext(ctx, &rows, query, reporterID); err != nil {
		return nil, appErrors.Persistence(fmt.Errorf("list issues by owner: %w", err), "failed to load issues")
	}
	return toIssues(rows), nil
}

// ListAll returns every issue, newest first.
func (r *IssueRepository) ListAll(ctx context.Context) ([]models.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues ORDER BY created_at DESC`, issueColumns)
	var rows []models.IssueRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, appErrors.Persistence(fmt.Errorf("list issues: %w", err), "failed to load issues")
	}
	return toIssues(rows), nil
}

// GetByID returns a single issue.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id = $1 LIMIT 1`, issueColumns)
	var row models.IssueRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Persistence(fmt.Errorf("get issue: %w", err), "failed to load issue")
	}
	issue := row.ToIssue()
	return &issue, nil
}

// UpdateStatus sets the status and stamps updated_at. Admin notes are only
// written when provided. No transition rule is enforced here.
func (r *IssueRepository) UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error {
	now := r.now()
	var (
		res sql.Result
		err error
	)
	if adminNotes != nil {
		const query = `UPDATE issues SET status = $2, updated_at = $3, admin_notes = $4 WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, issueID, status, now, *adminNotes)
	} else {
		const query = `UPDATE issues SET status = $2, updated_at = $3 WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, issueID, status, now)
	}
	if err != nil {
		return appErrors.Persistence(fmt.Errorf("update issue status: %w", err), "failed to update issue status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return appErrors.Persistence(fmt.Errorf("update issue status rows: %w", err), "failed to update issue status")
	}
	if affected == 0 {
		return appErrors.Persistence(sql.ErrNoRows, "issue not found")
	}
	return nil
}

func toIssues(rows []models.IssueRow) []models.Issue {
	issues := make([]models.Issue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, row.ToIssue())
	}
	return issues
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
