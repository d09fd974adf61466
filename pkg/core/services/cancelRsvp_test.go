package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/db"
)

func cancelFixture() (*mockDatabase, *cascade.Manager) {
	database := newMockDatabase()
	database.events["e1"] = activeEvent("e1", 10)
	database.volunteers["jane@example.org"] = &db.Volunteer{
		Email:   "jane@example.org",
		Metrics: db.VolunteerMetrics{TotalRSVPs: 1},
	}
	database.PutRSVP(context.Background(), &db.RSVP{
		EventID: "e1", Email: "jane@example.org", Status: db.RSVPActive,
	})
	manager := cascade.NewManager(database, database, database, zap.NewNop())
	return database, manager
}

func TestCancelRSVP_ByOwner(t *testing.T) {
	database, manager := cancelFixture()
	user := cascade.UserContext{Email: "jane@example.org"}

	result, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "", user)
	require.NoError(t, err)

	assert.Equal(t, db.RSVPCancelled, result.RSVP.Status)
	assert.Equal(t, "Cancelled by volunteer", result.RSVP.CancellationReason)
	assert.NotEmpty(t, result.RSVP.CancelledAt)

	require.NotNil(t, result.HoursBeforeEvent)
	assert.InDelta(t, 72, *result.HoursBeforeEvent, 1, "event is about 72 hours away")

	// The status change flows through the cascade manager's counter delta
	require.Len(t, database.deltas, 1)
	assert.Equal(t, db.MetricsDelta{TotalCancellations: 1}, database.deltas[0])
}

func TestCancelRSVP_OwnershipCaseInsensitive(t *testing.T) {
	database, manager := cancelFixture()
	user := cascade.UserContext{Email: "Jane@Example.ORG"}

	_, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "", user)
	assert.NoError(t, err)
}

func TestCancelRSVP_OtherVolunteerRejected(t *testing.T) {
	database, manager := cancelFixture()
	user := cascade.UserContext{Email: "intruder@example.org"}

	_, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "", user)

	var perr *cascade.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, db.RSVPActive, database.rsvps[rsvpKey("e1", "jane@example.org")].Status)
}

func TestCancelRSVP_AdminMayCancelForAnyone(t *testing.T) {
	database, manager := cancelFixture()
	admin := cascade.UserContext{Email: "organizer@example.org", IsAdmin: true}

	result, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "Volunteer phoned in", admin)
	require.NoError(t, err)
	assert.Equal(t, "Volunteer phoned in", result.RSVP.CancellationReason)
}

func TestCancelRSVP_AlreadyCancelled(t *testing.T) {
	database, manager := cancelFixture()
	database.rsvps[rsvpKey("e1", "jane@example.org")].Status = db.RSVPCancelled

	_, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "", cascade.UserContext{Email: "jane@example.org"})

	var uerr *cascade.UnsupportedOperationError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "ALREADY_CANCELLED", uerr.Code)
}

func TestCancelRSVP_UnknownRSVP(t *testing.T) {
	database, manager := cancelFixture()

	_, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "nobody@example.org", "", cascade.UserContext{IsAdmin: true})

	var nferr *cascade.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "rsvp", nferr.Kind)
}

func TestCancelRSVP_MissingEventDegradesNoticeWindow(t *testing.T) {
	database, manager := cancelFixture()
	delete(database.events, "e1")

	result, err := CancelRSVP(context.Background(), manager, database, database,
		zap.NewNop(), "e1", "jane@example.org", "", cascade.UserContext{Email: "jane@example.org"})
	require.NoError(t, err, "a missing event never blocks the cancellation itself")

	assert.Nil(t, result.HoursBeforeEvent)
	assert.Equal(t, db.RSVPCancelled, result.RSVP.Status)
}
