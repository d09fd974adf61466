package consistency

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/community-events/pkg/db"
)

func activeRSVPs(eventID string, n int) []db.RSVP {
	rsvps := make([]db.RSVP, n)
	for i := range rsvps {
		rsvps[i] = db.RSVP{
			EventID: eventID,
			Email:   fmt.Sprintf("volunteer%d@example.org", i),
			Status:  db.RSVPActive,
		}
	}
	return rsvps
}

func TestCheckEventRSVPConsistency_Clean(t *testing.T) {
	event := &db.Event{EventID: "e1", AttendanceCap: 10}
	findings := CheckEventRSVPConsistency(event, activeRSVPs("e1", 10))
	assert.Empty(t, findings, "a full event at exactly the cap is consistent")
}

func TestCheckEventRSVPConsistency_OverCapacity(t *testing.T) {
	event := &db.Event{EventID: "e1", AttendanceCap: 5}
	findings := CheckEventRSVPConsistency(event, activeRSVPs("e1", 12))

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "12 active RSVPs")
	assert.Contains(t, findings[0].Message, "cap is 5")
	assert.Len(t, findings[0].AffectedRecords, 12)
}

func TestCheckEventRSVPConsistency_CancelledRSVPsDontCount(t *testing.T) {
	event := &db.Event{EventID: "e1", AttendanceCap: 2}
	rsvps := []db.RSVP{
		{EventID: "e1", Email: "a@example.org", Status: db.RSVPActive},
		{EventID: "e1", Email: "b@example.org", Status: db.RSVPCancelled},
		{EventID: "e1", Email: "c@example.org", Status: db.RSVPCancelled},
		{EventID: "e1", Email: "d@example.org", Status: db.RSVPActive},
	}
	assert.Empty(t, CheckEventRSVPConsistency(event, rsvps))
}

func TestCheckEventRSVPConsistency_Duplicates(t *testing.T) {
	event := &db.Event{EventID: "e1", AttendanceCap: 10}
	rsvps := []db.RSVP{
		{EventID: "e1", Email: "dupe@example.org", Status: db.RSVPActive},
		{EventID: "e1", Email: "other@example.org", Status: db.RSVPActive},
		{EventID: "e1", Email: "dupe@example.org", Status: db.RSVPCancelled},
		{EventID: "e1", Email: "also@example.org", Status: db.RSVPActive},
		{EventID: "e1", Email: "also@example.org", Status: db.RSVPActive},
	}

	findings := CheckEventRSVPConsistency(event, rsvps)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"also@example.org", "dupe@example.org"}, findings[0].AffectedRecords,
		"duplicates are reported in sorted order")
}

func TestCheckVolunteerMetricsConsistency_NoDrift(t *testing.T) {
	history := []db.RSVP{
		{EventID: "e1", Status: db.RSVPAttended, CreatedAt: "2026-01-01T10:00:00Z"},
		{EventID: "e2", Status: db.RSVPCancelled, CreatedAt: "2026-02-01T10:00:00Z"},
		{EventID: "e3", Status: db.RSVPActive, CreatedAt: "2026-03-01T10:00:00Z"},
	}
	volunteer := &db.Volunteer{
		Email: "jane@example.org",
		Metrics: db.VolunteerMetrics{
			TotalRSVPs:         3,
			TotalCancellations: 1,
			TotalAttended:      1,
		},
	}

	assert.Empty(t, CheckVolunteerMetricsConsistency(volunteer, history))
}

func TestCheckVolunteerMetricsConsistency_EachCounterReportedSeparately(t *testing.T) {
	history := []db.RSVP{
		{EventID: "e1", Status: db.RSVPNoShow, CreatedAt: "2026-01-01T10:00:00Z"},
		{EventID: "e2", Status: db.RSVPNoShow, CreatedAt: "2026-02-01T10:00:00Z"},
	}
	volunteer := &db.Volunteer{
		Email: "jane@example.org",
		Metrics: db.VolunteerMetrics{
			TotalRSVPs:   5, // actual 2
			TotalNoShows: 0, // actual 2
		},
	}

	findings := CheckVolunteerMetricsConsistency(volunteer, history)
	require.Len(t, findings, 2)
	assert.Contains(t, findings[0].Message, "total_rsvps shows 5 but actual count is 2")
	assert.Contains(t, findings[1].Message, "total_no_shows shows 0 but actual count is 2")
	for _, f := range findings {
		assert.Equal(t, []string{"jane@example.org"}, f.AffectedRecords)
	}
}

func TestCheckVolunteerMetricsConsistency_EmptyHistory(t *testing.T) {
	volunteer := &db.Volunteer{
		Email:   "new@example.org",
		Metrics: db.VolunteerMetrics{},
	}
	assert.Empty(t, CheckVolunteerMetricsConsistency(volunteer, nil))
}
