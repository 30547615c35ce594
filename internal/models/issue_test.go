package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRowToIssuePrefersEmbeddedPhoto(t *testing.T) {
	embedded := "data:image/png;base64,AAAA"
	legacy := "https://cdn.example/photo.png"
	now := time.Now().UTC()

	row := IssueRow{ID: "i1", PhotoBase64: &embedded, PhotoURL: &legacy, Latitude: 1, Longitude: 2, CreatedAt: now, UpdatedAt: now, ReporterID: "u1"}
	assert.Equal(t, embedded, row.ToIssue().PhotoURL)

	row.PhotoBase64 = nil
	assert.Equal(t, legacy, row.ToIssue().PhotoURL)

	row.PhotoURL = nil
	issue := row.ToIssue()
	assert.Empty(t, issue.PhotoURL)
	assert.Equal(t, "u1", issue.ReporterID)
	assert.Equal(t, now, issue.Timestamp)
}

func TestIssueFilterMatch(t *testing.T) {
	issue := Issue{Status: StatusPending, Category: CategoryPothole}

	assert.True(t, IssueFilter{}.Match(issue))
	assert.True(t, IssueFilter{Status: "pending", Category: "all"}.Match(issue))
	assert.False(t, IssueFilter{Status: "resolved"}.Match(issue))
	assert.False(t, IssueFilter{Category: "garbage"}.Match(issue))

	assert.True(t, IssueFilter{Status: "in-progress", Category: "sewage"}.Valid())
	assert.False(t, IssueFilter{Status: "closed"}.Valid())
	assert.False(t, IssueFilter{Category: "graffiti"}.Valid())
}

func TestTransitionPolicy(t *testing.T) {
	assert.Equal(t, TransitionAny, ParseTransitionPolicy(""))
	assert.Equal(t, TransitionForward, ParseTransitionPolicy("forward"))

	assert.True(t, TransitionAny.Allows(StatusResolved, StatusPending))
	assert.False(t, TransitionAny.Allows(StatusResolved, IssueStatus("archived")))

	assert.True(t, TransitionForward.Allows(StatusPending, StatusResolved))
	assert.True(t, TransitionForward.Allows(StatusInProgress, StatusInProgress))
	assert.False(t, TransitionForward.Allows(StatusResolved, StatusPending))
}

func TestCountIssues(t *testing.T) {
	stats := CountIssues([]Issue{{Status: StatusPending}, {Status: StatusPending}, {Status: StatusResolved}, {Status: StatusInProgress}})
	assert.Equal(t, IssueStats{Total: 4, Pending: 2, InProgress: 1, Resolved: 1}, stats)
}

func TestChangePayloadKind(t *testing.T) {
	raw := `{"type":"DELETE","table":"issues","schema":"public","record":null,
"old_record":{"id":"i1","latitude":12.9716,"longitude":77.5946,"category":"pothole","description":"crater",
"status":"resolved","created_at":"2024-05-01T10:00:00.123456+00:00","updated_at":"2024-05-02T10:00:00+00:00","reporter_id":"u1"}}`

	var payload ChangePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	kind, row, ok := payload.Kind()
	require.True(t, ok)
	assert.Equal(t, ChangeDeleted, kind)
	assert.Equal(t, "i1", row.ID)
	assert.Equal(t, StatusResolved, row.Status)

	_, _, ok = ChangePayload{Type: "TRUNCATE"}.Kind()
	assert.False(t, ok)
}

func TestLocationCoordinateLabel(t *testing.T) {
	assert.Equal(t, "12.9716, 77.5946", Location{Latitude: 12.9716, Longitude: 77.5946}.CoordinateLabel())
	assert.Equal(t, "0.00001, -3", Location{Latitude: 0.00001, Longitude: -3}.CoordinateLabel())
	assert.False(t, Location{Latitude: 91}.Valid())
	assert.True(t, Location{Latitude: -90, Longitude: 180}.Valid())
}

func TestChangePayloadPartialKeepsHeldText(t *testing.T) {
	raw := `{"type":"UPDATE","table":"issues","schema":"public","partial":true,
"commit_timestamp":"2024-05-02T10:00:00.5+00:00",
"record":{"id":"i1","latitude":1,"longitude":2,"category":"pothole","status":"resolved",
"created_at":"2024-05-01T10:00:00+00:00","updated_at":"2024-05-02T10:00:00+00:00","reporter_id":"u1"},
"old_record":{"id":"i1","latitude":1,"longitude":2,"category":"pothole","status":"pending",
"created_at":"2024-05-01T10:00:00+00:00","updated_at":"2024-05-01T10:00:00+00:00","reporter_id":"u1"}}`

	var payload ChangePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.True(t, payload.Partial)

	_, row, ok := payload.Kind()
	require.True(t, ok)
	issue := row.ToIssue()
	issue.TextOmitted = payload.Partial

	held := Issue{ID: "i1", Description: "crater", AdminNotes: "queued", ReporterEmail: "u1@example.com", Location: Location{Address: "Main St"}}
	issue.KeepTextFrom(held)
	assert.Equal(t, "crater", issue.Description)
	assert.Equal(t, "queued", issue.AdminNotes)
	assert.Equal(t, "u1@example.com", issue.ReporterEmail)
	assert.Equal(t, "Main St", issue.Location.Address)
	assert.Equal(t, 1.0, issue.Location.Latitude)
	assert.Equal(t, StatusResolved, issue.Status)
	assert.False(t, issue.TextOmitted)
}
