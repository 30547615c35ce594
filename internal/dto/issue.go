package dto

import "github.com/noah-isme/civic-report-api/internal/models"

// SubmitIssueResponse is returned after a report is stored.
type SubmitIssueResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// UpdateIssueStatusRequest moves an issue to a new status.
type UpdateIssueStatusRequest struct {
	Status     models.IssueStatus `json:"status" validate:"required"`
	AdminNotes *string            `json:"adminNotes"`
}

// IssueListQuery mirrors the issue listing query string.
type IssueListQuery struct {
	Scope string `form:"scope"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format"`
}

// GeocodeQuery carries the coordinates of a reverse geocode preview.
type GeocodeQuery struct {
	Latitude  *float64 `form:"lat"`
	Longitude *float64 `form:"lng"`
}

// GeocodeResponse is the resolved label for a coordinate pair.
type GeocodeResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Resolved  bool    `json:"resolved"`
}
