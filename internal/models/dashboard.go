package models

// DashboardSnapshot is the state a dashboard renders from.
type DashboardSnapshot struct {
	Issues []Issue     `json:"issues"`
	Total  int         `json:"total"`
	Stats  IssueStats  `json:"stats"`
	Filter IssueFilter `json:"filter"`
	Error  string      `json:"error,omitempty"`
	Feed   FeedStatus  `json:"feed"`
}
