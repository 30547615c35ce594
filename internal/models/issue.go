package models

import (
	"strconv"
	"time"
)

// IssueCategory classifies a reported civic problem.
type IssueCategory string

const (
	CategoryPothole     IssueCategory = "pothole"
	CategoryGarbage     IssueCategory = "garbage"
	CategorySewage      IssueCategory = "sewage"
	CategoryStreetlight IssueCategory = "streetlight"
	CategoryOthers      IssueCategory = "others"
)

// IssueCategories lists every accepted category in display order.
var IssueCategories = []IssueCategory{CategoryPothole, CategoryGarbage, CategorySewage, CategoryStreetlight, CategoryOthers}

// Valid reports whether c is one of the known categories.
func (c IssueCategory) Valid() bool {
	for _, known := range IssueCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
)

// IssueStatuses lists the statuses in lifecycle order.
var IssueStatuses = []IssueStatus{StatusPending, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	return s.rank() >= 0
}

func (s IssueStatus) rank() int {
	for i, known := range IssueStatuses {
		if s == known {
			return i
		}
	}
	return -1
}

// Location is the coordinate pair an issue was reported at.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Valid reports whether both coordinates are inside their ranges.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// CoordinateLabel renders the pair the way it is shown when no address is known.
func (l Location) CoordinateLabel() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + ", " + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// Issue is a single reported civic problem.
type Issue struct {
	ID            string        `json:"id"`
	PhotoURL      string        `json:"photoURL"`
	Location      Location      `json:"location"`
	Category      IssueCategory `json:"category"`
	Description   string        `json:"description"`
	Status        IssueStatus   `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	ReporterID    string        `json:"reporterId"`
	ReporterEmail string        `json:"reporterEmail,omitempty"`
	AdminNotes    string        `json:"adminNotes,omitempty"`

	// TextOmitted marks a change event whose free-text fields were not sent.
	TextOmitted bool `json:"-"`
}

// KeepTextFrom copies the free-text fields of held into i.
func (i *Issue) KeepTextFrom(held Issue) {
	i.Description = held.Description
	i.AdminNotes = held.AdminNotes
	i.Location.Address = held.Location.Address
	i.ReporterEmail = held.ReporterEmail
	i.TextOmitted = false
}

// IssueRow mirrors the issues table column for column. The json tags match
// the column names so change feed payloads decode into the same struct.
type IssueRow struct {
	ID            string        `db:"id" json:"id"`
	PhotoBase64   *string       `db:"photo_base64" json:"photo_base64"`
	PhotoURL      *string       `db:"photo_url" json:"photo_url"`
	Latitude      float64       `db:"latitude" json:"latitude"`
	Longitude     float64       `db:"longitude" json:"longitude"`
	Address       *string       `db:"address" json:"address"`
	Category      IssueCategory `db:"category" json:"category"`
	Description   string        `db:"description" json:"description"`
	Status        IssueStatus   `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	ReporterID    string        `db:"reporter_id" json:"reporter_id"`
	ReporterEmail *string       `db:"reporter_email" json:"reporter_email"`
	AdminNotes    *string       `db:"admin_notes" json:"admin_notes"`
}

// ToIssue renames the row into the domain shape. No values are derived.
func (r IssueRow) ToIssue() Issue {
	photo := deref(r.PhotoBase64)
	if photo == "" {
		photo = deref(r.PhotoURL)
	}
	return Issue{
		ID:       r.ID,
		PhotoURL: photo,
		Location: Location{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Address:   deref(r.Address),
		},
		Category:      r.Category,
		Description:   r.Description,
		Status:        r.Status,
		Timestamp:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ReporterID:    r.ReporterID,
		ReporterEmail: deref(r.ReporterEmail),
		AdminNotes:    deref(r.AdminNotes),
	}
}

// PhotoUpload is a raw image attached to a report.
type PhotoUpload struct {
	Filename string
	Data     []byte
}

// IssueFormData is the submission captured by the report form.
type IssueFormData struct {
	Photo       *PhotoUpload
	Category    IssueCategory
	Description string
	Location    Location
}

// IssueStats counts issues per status.
type IssueStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
}

// CountIssues tallies issues per status.
func CountIssues(issues []Issue) IssueStats {
	stats := IssueStats{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusResolved:
			stats.Resolved++
		}
	}
	return stats
}

// FilterAll disables a dashboard filter.
const FilterAll = "all"

// IssueFilter restricts a collection by status and category. Empty or "all"
// values match everything.
type IssueFilter struct {
	Status   string `json:"status"`
	Category string `json:"category"`
}

// Normalize replaces empty values with "all".
func (f IssueFilter) Normalize() IssueFilter {
	if f.Status == "" {
		f.Status = FilterAll
	}
	if f.Category == "" {
		f.Category = FilterAll
	}
	return f
}

// Valid reports whether both filter values are "all" or known enum members.
func (f IssueFilter) Valid() bool {
	f = f.Normalize()
	statusOK := f.Status == FilterAll || IssueStatus(f.Status).Valid()
	categoryOK := f.Category == FilterAll || IssueCategory(f.Category).Valid()
	return statusOK && categoryOK
}

// Match reports whether issue passes both filters.
func (f IssueFilter) Match(issue Issue) bool {
	f = f.Normalize()
	if f.Status != FilterAll && string(issue.Status) != f.Status {
		return false
	}
	if f.Category != FilterAll && string(issue.Category) != f.Category {
		return false
	}
	return true
}

// TransitionPolicy names the rule governing which status may follow which.
type TransitionPolicy string

const (
	// TransitionAny lets any status follow any other, including resolved -> pending.
	TransitionAny TransitionPolicy = "any"
	// TransitionForward only allows staying put or moving along pending -> in-progress -> resolved.
	TransitionForward TransitionPolicy = "forward"
)

// ParseTransitionPolicy falls back to TransitionAny for unknown values.
func ParseTransitionPolicy(raw string) TransitionPolicy {
	if TransitionPolicy(raw) == TransitionForward {
		return TransitionForward
	}
	return TransitionAny
}

// Allows reports whether moving from -> to is permitted.
func (p TransitionPolicy) Allows(from, to IssueStatus) bool {
	if !to.Valid() {
		return false
	}
	if p != TransitionForward {
		return true
	}
	return to.rank() >= from.rank()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
