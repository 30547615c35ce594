package database

// IssueChangeChannel is the NOTIFY channel the issues trigger publishes on.
// The name is fixed by migration 000002.
const IssueChangeChannel = "issues_changes"

const (
	// NotifyPayloadLimit is the Postgres cap on a NOTIFY body, in bytes.
	NotifyPayloadLimit = 8000
	// NotifyCompactThreshold is the body size above which the trigger drops
	// the free-text columns from the payload.
	NotifyCompactThreshold = 7900
)
