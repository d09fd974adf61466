package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/core/metrics"
	"github.com/jakechorley/community-events/pkg/db"
)

func submitReq(eventID, email string) SubmitRSVPRequest {
	return SubmitRSVPRequest{
		EventID:   eventID,
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Phone:     "020 7946 0958",
	}
}

func TestSubmitRSVP_FirstTimeVolunteer(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)

	result, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "Jane.Doe@Example.ORG"))
	require.NoError(t, err)

	assert.True(t, result.VolunteerCreated)
	assert.Equal(t, 1, result.RSVPCount)
	assert.Equal(t, 10, result.AttendanceCap)
	assert.Equal(t, "jane.doe@example.org", result.RSVP.Email, "email is normalized")
	assert.Equal(t, db.RSVPActive, result.RSVP.Status)

	volunteer := database.volunteers["jane.doe@example.org"]
	require.NotNil(t, volunteer)
	assert.Equal(t, 1, volunteer.Metrics.TotalRSVPs)
	assert.NotEmpty(t, volunteer.Metrics.FirstEventDate)
	assert.True(t, volunteer.Preferences.EmailNotifications)
}

func TestSubmitRSVP_ExistingVolunteerCounterBumped(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)
	database.volunteers["jane@example.org"] = &db.Volunteer{
		Email:   "jane@example.org",
		Metrics: db.VolunteerMetrics{TotalRSVPs: 4},
	}

	result, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "jane@example.org"))
	require.NoError(t, err)

	assert.False(t, result.VolunteerCreated)
	require.Len(t, database.deltas, 1)
	assert.Equal(t, 1, database.deltas[0].TotalRSVPs)
	assert.NotEmpty(t, database.deltas[0].EventDate)
	assert.Equal(t, 5, database.volunteers["jane@example.org"].Metrics.TotalRSVPs)
}

func TestSubmitRSVP_ExistingVolunteerDatesKeptInStep(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "past", Email: "jane@example.org", Status: db.RSVPActive,
		CreatedAt: "2026-01-10T10:00:00Z",
	})
	database.volunteers["jane@example.org"] = &db.Volunteer{
		Email: "jane@example.org",
		Metrics: db.VolunteerMetrics{
			TotalRSVPs:     1,
			FirstEventDate: "2026-01-10T10:00:00Z",
			LastEventDate:  "2026-01-10T10:00:00Z",
		},
	}

	_, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "jane@example.org"))
	require.NoError(t, err)

	// The stored snapshot must stay equal to the aggregation of RSVP history
	history, err := database.ListVolunteerRSVPs(context.Background(), "jane@example.org")
	require.NoError(t, err)
	derived := metrics.Compute(history)
	stored := database.volunteers["jane@example.org"].Metrics

	assert.Equal(t, derived, stored)
	assert.Equal(t, "2026-01-10T10:00:00Z", stored.FirstEventDate)
	assert.Greater(t, stored.LastEventDate, "2026-01-10T10:00:00Z",
		"last_event_date advances to the new submission")
}

func TestSubmitRSVP_DuplicateRejected(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "jane@example.org", Status: db.RSVPActive,
	})

	_, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "jane@example.org"))

	var uerr *cascade.UnsupportedOperationError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "ALREADY_REGISTERED", uerr.Code)
}

func TestSubmitRSVP_FullEventRejected(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 2)
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "a@example.org", Status: db.RSVPActive,
	})
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "b@example.org", Status: db.RSVPActive,
	})

	_, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "late@example.org"))

	var uerr *cascade.UnsupportedOperationError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "EVENT_AT_CAPACITY", uerr.Code)
	assert.Nil(t, database.volunteers["late@example.org"], "no volunteer profile on rejection")
}

func TestSubmitRSVP_CancelledSlotFreesCapacity(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 2)
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "a@example.org", Status: db.RSVPActive,
	})
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "b@example.org", Status: db.RSVPCancelled,
	})

	result, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "c@example.org"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.RSVPCount)
}

func TestSubmitRSVP_InactiveEventRejected(t *testing.T) {
	for _, status := range []db.EventStatus{db.EventCancelled, db.EventCompleted, db.EventArchived} {
		t.Run(string(status), func(t *testing.T) {
			database := newMockDatabase()
			event := activeEvent("e1", 10)
			event.Status = status
			database.events["e1"] = event

			_, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
				submitReq("e1", "jane@example.org"))

			var uerr *cascade.UnsupportedOperationError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, "EVENT_NOT_ACTIVE", uerr.Code)
		})
	}
}

func TestSubmitRSVP_UnknownEvent(t *testing.T) {
	database := newMockDatabase()

	_, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("nope", "jane@example.org"))

	var nferr *cascade.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "event", nferr.Kind)
}

func TestSubmitRSVP_InvalidInput(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)

	req := submitReq("e1", "not-an-email")
	req.FirstName = "Jane99"

	_, err := SubmitRSVP(context.Background(), database, zap.NewNop(), req)

	var verr *cascade.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["first_name"])
}

func TestSubmitRSVP_TimestampsAreRFC3339(t *testing.T) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)

	result, err := SubmitRSVP(context.Background(), database, zap.NewNop(),
		submitReq("e1", "jane@example.org"))
	require.NoError(t, err)

	_, err = time.Parse(time.RFC3339, result.RSVP.CreatedAt)
	assert.NoError(t, err)
}
