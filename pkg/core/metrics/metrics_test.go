package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/community-events/pkg/db"
)

func TestCompute_EmptyHistory(t *testing.T) {
	m := Compute(nil)
	assert.Equal(t, db.VolunteerMetrics{}, m)
	assert.Empty(t, m.FirstEventDate)
	assert.Empty(t, m.LastEventDate)
}

func TestCompute_CountsByStatus(t *testing.T) {
	history := []db.RSVP{
		{EventID: "e1", Status: db.RSVPActive, CreatedAt: "2026-03-01T10:00:00Z"},
		{EventID: "e2", Status: db.RSVPCancelled, CreatedAt: "2026-04-01T10:00:00Z"},
		{EventID: "e3", Status: db.RSVPNoShow, CreatedAt: "2026-05-01T10:00:00Z"},
		{EventID: "e4", Status: db.RSVPAttended, CreatedAt: "2026-06-01T10:00:00Z"},
		{EventID: "e5", Status: db.RSVPAttended, CreatedAt: "2026-02-01T10:00:00Z"},
	}

	m := Compute(history)

	assert.Equal(t, 5, m.TotalRSVPs, "every RSVP counts regardless of status")
	assert.Equal(t, 1, m.TotalCancellations)
	assert.Equal(t, 1, m.TotalNoShows)
	assert.Equal(t, 2, m.TotalAttended)
	assert.Equal(t, "2026-02-01T10:00:00Z", m.FirstEventDate)
	assert.Equal(t, "2026-06-01T10:00:00Z", m.LastEventDate)
}

func TestCompute_SkipsBlankTimestamps(t *testing.T) {
	history := []db.RSVP{
		{EventID: "e1", Status: db.RSVPActive},
		{EventID: "e2", Status: db.RSVPActive, CreatedAt: "2026-03-01T10:00:00Z"},
	}

	m := Compute(history)
	assert.Equal(t, 2, m.TotalRSVPs)
	assert.Equal(t, "2026-03-01T10:00:00Z", m.FirstEventDate)
	assert.Equal(t, "2026-03-01T10:00:00Z", m.LastEventDate)
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name      string
		oldStatus db.RSVPStatus
		newStatus db.RSVPStatus
		expected  db.MetricsDelta
	}{
		{
			name:      "active to no_show touches only the no-show counter",
			oldStatus: db.RSVPActive,
			newStatus: db.RSVPNoShow,
			expected:  db.MetricsDelta{TotalNoShows: 1},
		},
		{
			name:      "active to cancelled",
			oldStatus: db.RSVPActive,
			newStatus: db.RSVPCancelled,
			expected:  db.MetricsDelta{TotalCancellations: 1},
		},
		{
			name:      "no_show to attended moves between counters",
			oldStatus: db.RSVPNoShow,
			newStatus: db.RSVPAttended,
			expected:  db.MetricsDelta{TotalNoShows: -1, TotalAttended: 1},
		},
		{
			name:      "cancelled back to active decrements only",
			oldStatus: db.RSVPCancelled,
			newStatus: db.RSVPActive,
			expected:  db.MetricsDelta{TotalCancellations: -1},
		},
		{
			name:      "no change",
			oldStatus: db.RSVPActive,
			newStatus: db.RSVPActive,
			expected:  db.MetricsDelta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Delta(tt.oldStatus, tt.newStatus))
		})
	}
}

func TestDelta_IsZeroForIdenticalStatuses(t *testing.T) {
	for _, s := range db.RSVPStatuses {
		assert.True(t, Delta(s, s).IsZero())
	}
}
