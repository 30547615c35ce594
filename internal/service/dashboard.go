package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

// IssueLister loads issue collections.
type IssueLister interface {
	ListAll(ctx context.Context) ([]models.Issue, error)
	ListByOwner(ctx context.Context, reporterID string) ([]models.Issue, error)
}

// StatusUpdater persists a status change.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error
}

// Dashboard holds one viewer's issue collection and filters. Status updates
// are applied locally first and rolled back when the store rejects them.
type Dashboard struct {
	viewer  models.Identity
	issues  IssueLister
	updater StatusUpdater
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	items   []models.Issue
	filter  models.IssueFilter
	lastErr string
}

// NewDashboard creates an empty dashboard for viewer with both filters at "all".
func NewDashboard(viewer models.Identity, issues IssueLister, updater StatusUpdater, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		viewer:  viewer,
		issues:  issues,
		updater: updater,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		filter:  models.IssueFilter{}.Normalize(),
	}
}

// Viewer returns the identity the dashboard was built for.
func (d *Dashboard) Viewer() models.Identity {
	return d.viewer
}

// Scope returns the change feed scope matching what Load fetches.
func (d *Dashboard) Scope() models.FeedScope {
	if d.viewer.IsAdmin {
		return models.FeedScope{}
	}
	return models.FeedScope{ReporterID: d.viewer.ID}
}

// Load replaces the collection. On failure the previous collection is kept
// and the error message is recorded.
func (d *Dashboard) Load(ctx context.Context) error {
	var (
		items []models.Issue
		err   error
	)
	if d.viewer.IsAdmin {
		items, err = d.issues.ListAll(ctx)
	} else {
		items, err = d.issues.ListByOwner(ctx, d.viewer.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lastErr = appErrors.FromError(err).Message
		d.logger.Warn("dashboard load failed", zap.String("viewer", d.viewer.ID), zap.Error(err))
		return err
	}
	d.items = items
	d.lastErr = ""
	return nil
}

// Issues returns a copy of the full collection.
func (d *Dashboard) Issues() []models.Issue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Issue(nil), d.items...)
}

// Filtered returns the issues matching both filters, computed on each call.
func (d *Dashboard) Filtered() []models.Issue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filteredLocked()
}

func (d *Dashboard) filteredLocked() []models.Issue {
	out := make([]models.Issue, 0, len(d.items))
	for _, issue := range d.items {
		if d.filter.Match(issue) {
			out = append(out, issue)
		}
	}
	return out
}

// Filter returns the active filters.
func (d *Dashboard) Filter() models.IssueFilter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter
}

// SetStatusFilter accepts "all" or a known status.
func (d *Dashboard) SetStatusFilter(status string) error {
	next := models.IssueFilter{Status: status}
	if !next.Valid() {
		return appErrors.Validation("unknown status filter: " + status)
	}
	d.mu.Lock()
	d.filter.Status = next.Normalize().Status
	d.mu.Unlock()
	return nil
}

// SetCategoryFilter accepts "all" or a known category.
func (d *Dashboard) SetCategoryFilter(category string) error {
	next := models.IssueFilter{Category: category}
	if !next.Valid() {
		return appErrors.Validation("unknown category filter: " + category)
	}
	d.mu.Lock()
	d.filter.Category = next.Normalize().Category
	d.mu.Unlock()
	return nil
}

// ApplyFilter sets both filters, leaving the dashboard untouched when either
// value is invalid.
func (d *Dashboard) ApplyFilter(filter models.IssueFilter) error {
	if !filter.Valid() {
		return appErrors.Validation("unknown filter value")
	}
	d.mu.Lock()
	d.filter = filter.Normalize()
	d.mu.Unlock()
	return nil
}

// Error returns the message of the last failed load or update.
func (d *Dashboard) Error() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// ApplyStatusUpdate rewrites the local entry, then persists the change. When
// the store rejects it the local entry is restored and the error returned.
func (d *Dashboard) ApplyStatusUpdate(ctx context.Context, issueID string, status models.IssueStatus, adminNotes *string) error {
	if !d.viewer.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can change issue status")
	}
	if !status.Valid() {
		return appErrors.Validation("unknown status: " + string(status))
	}

	d.mu.Lock()
	var (
		previous models.Issue
		applied  *models.Issue
	)
	for i := range d.items {
		if d.items[i].ID == issueID {
			previous = d.items[i]
			d.items[i].Status = status
			d.items[i].UpdatedAt = d.now()
			if adminNotes != nil {
				d.items[i].AdminNotes = *adminNotes
			}
			snapshot := d.items[i]
			applied = &snapshot
			break
		}
	}
	d.mu.Unlock()

	err := d.updater.UpdateStatus(ctx, issueID, status, adminNotes)
	if err == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = appErrors.FromError(err).Message
	if applied != nil {
		for i := range d.items {
			// Leave entries a change event has rewritten since.
			if d.items[i].ID == issueID && d.items[i].UpdatedAt.Equal(applied.UpdatedAt) && d.items[i].Status == applied.Status {
				d.items[i] = previous
				break
			}
		}
	}
	d.logger.Warn("status update rolled back", zap.String("issue_id", issueID), zap.Error(err))
	return err
}

// ApplyChange folds a change feed event into the collection. Change events
// carry no photo, so an update keeps the photo already held. Partial events
// keep the held text as well.
func (d *Dashboard) ApplyChange(kind models.ChangeKind, issue models.Issue) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i := range d.items {
		if d.items[i].ID == issue.ID {
			idx = i
			break
		}
	}

	switch kind {
	case models.ChangeInserted:
		if idx >= 0 {
			return
		}
		d.insertLocked(issue)
	case models.ChangeUpdated:
		if idx < 0 {
			d.insertLocked(issue)
			return
		}
		if issue.PhotoURL == "" {
			issue.PhotoURL = d.items[idx].PhotoURL
		}
		if issue.TextOmitted {
			issue.KeepTextFrom(d.items[idx])
		}
		d.items[idx] = issue
	case models.ChangeDeleted:
		if idx >= 0 {
			d.items = append(d.items[:idx], d.items[idx+1:]...)
		}
	}
}

// insertLocked keeps the collection ordered newest first.
func (d *Dashboard) insertLocked(issue models.Issue) {
	pos := sort.Search(len(d.items), func(i int) bool {
		return !d.items[i].Timestamp.After(issue.Timestamp)
	})
	d.items = append(d.items, models.Issue{})
	copy(d.items[pos+1:], d.items[pos:])
	d.items[pos] = issue
}

// Stats counts the held collection per status, ignoring filters.
func (d *Dashboard) Stats() models.IssueStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return models.CountIssues(d.items)
}

// Snapshot bundles everything a view needs in one consistent read.
func (d *Dashboard) Snapshot() models.DashboardSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return models.DashboardSnapshot{
		Issues: d.filteredLocked(),
		Total:  len(d.items),
		Stats:  models.CountIssues(d.items),
		Filter: d.filter,
		Error:  d.lastErr,
	}
}
