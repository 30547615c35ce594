package dto

import "github.com/noah-isme/civic-report-api/internal/models"

// DashboardQuery holds the dashboard filters.
type DashboardQuery struct {
	Status   string `form:"status"`
	Category string `form:"category"`
}

// Filter converts the query into a models.IssueFilter.
func (q DashboardQuery) Filter() models.IssueFilter {
	return models.IssueFilter{Status: q.Status, Category: q.Category}.Normalize()
}

// Live dashboard message types sent by the server.
const (
	LiveSnapshot = "snapshot"
	LiveChange   = "change"
	LiveError    = "error"
	LiveAck      = "ack"
)

// Live dashboard actions sent by the client.
const (
	ActionFilter       = "filter"
	ActionReload       = "reload"
	ActionUpdateStatus = "update-status"
)

// LiveCommand is a client message on the live dashboard socket.
type LiveCommand struct {
	Action     string             `json:"action"`
	Status     string             `json:"status,omitempty"`
	Category   string             `json:"category,omitempty"`
	ID         string             `json:"id,omitempty"`
	AdminNotes *string            `json:"adminNotes,omitempty"`
	NewStatus  models.IssueStatus `json:"newStatus,omitempty"`
}

// TargetStatus returns the status an update-status command asks for. Clients
// may send it either as status or newStatus.
func (c LiveCommand) TargetStatus() models.IssueStatus {
	if c.NewStatus != "" {
		return c.NewStatus
	}
	return models.IssueStatus(c.Status)
}

// LiveMessage is a server message on the live dashboard socket.
type LiveMessage struct {
	Type     string                    `json:"type"`
	Snapshot *models.DashboardSnapshot `json:"snapshot,omitempty"`
	Kind     models.ChangeKind         `json:"kind,omitempty"`
	Issue    *models.Issue             `json:"issue,omitempty"`
	Action   string                    `json:"action,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Code     string                    `json:"code,omitempty"`
}
