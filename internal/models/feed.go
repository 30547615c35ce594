package models

import "time"

// ChangeKind is the kind of row change delivered by the change feed.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
)

// FeedScope narrows a subscription. An empty ReporterID means all rows.
type FeedScope struct {
	ReporterID string
}

// Includes reports whether the row belongs to the scope.
func (s FeedScope) Includes(reporterID string) bool {
	return s.ReporterID == "" || s.ReporterID == reporterID
}

// ChangePayload is the notification body emitted by the issues trigger.
// Partial bodies leave out description, admin notes, address and reporter
// email to fit the NOTIFY size cap.
type ChangePayload struct {
	Type            string    `json:"type"`
	Table           string    `json:"table"`
	Schema          string    `json:"schema"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
	Partial         bool      `json:"partial"`
	Record          *IssueRow `json:"record"`
	OldRecord       *IssueRow `json:"old_record"`
}

// Kind maps the trigger operation onto a ChangeKind and picks the row that
// describes it. Deletions carry the pre-deletion row.
func (p ChangePayload) Kind() (ChangeKind, *IssueRow, bool) {
	switch p.Type {
	case "INSERT":
		return ChangeInserted, p.Record, p.Record != nil
	case "UPDATE":
		return ChangeUpdated, p.Record, p.Record != nil
	case "DELETE":
		return ChangeDeleted, p.OldRecord, p.OldRecord != nil
	default:
		return "", nil, false
	}
}

// FeedStatus is the display-only connection state of a change feed.
type FeedStatus struct {
	Connected  bool       `json:"connected"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
}
