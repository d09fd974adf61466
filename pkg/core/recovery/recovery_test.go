package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/db"
)

// mockVolunteerStore implements db.VolunteerStore with keyset paging over a
// sorted email list
type mockVolunteerStore struct {
	volunteers map[string]*db.Volunteer
	setCalls   int
	getErr     map[string]error
	listPages  int
}

func (m *mockVolunteerStore) GetVolunteer(ctx context.Context, email string) (*db.Volunteer, error) {
	if err := m.getErr[email]; err != nil {
		return nil, err
	}
	v, ok := m.volunteers[email]
	if !ok {
		return nil, nil
	}
	copied := *v
	return &copied, nil
}

func (m *mockVolunteerStore) PutVolunteer(ctx context.Context, volunteer *db.Volunteer) error {
	m.volunteers[volunteer.Email] = volunteer
	return nil
}

func (m *mockVolunteerStore) UpdateVolunteer(ctx context.Context, email string, update db.VolunteerUpdate) (*db.Volunteer, error) {
	return nil, errors.New("not used")
}

func (m *mockVolunteerStore) SetVolunteerMetrics(ctx context.Context, email string, metrics db.VolunteerMetrics) error {
	m.setCalls++
	v, ok := m.volunteers[email]
	if !ok {
		return fmt.Errorf("volunteer %s not found", email)
	}
	v.Metrics = metrics
	return nil
}

func (m *mockVolunteerStore) AddVolunteerMetrics(ctx context.Context, email string, delta db.MetricsDelta) error {
	return errors.New("not used")
}

func (m *mockVolunteerStore) ListVolunteerEmails(ctx context.Context, afterEmail string, limit int) ([]string, error) {
	m.listPages++
	var all []string
	for email := range m.volunteers {
		if email > afterEmail {
			all = append(all, email)
		}
	}
	sort.Strings(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// mockRSVPStore implements db.RSVPStore returning canned per-volunteer history
type mockRSVPStore struct {
	history map[string][]db.RSVP
	listErr map[string]error
}

func (m *mockRSVPStore) GetRSVP(ctx context.Context, eventID, email string) (*db.RSVP, error) {
	return nil, errors.New("not used")
}

func (m *mockRSVPStore) PutRSVP(ctx context.Context, rsvp *db.RSVP) error {
	return errors.New("not used")
}

func (m *mockRSVPStore) UpdateRSVP(ctx context.Context, eventID, email string, update db.RSVPUpdate) (*db.RSVP, error) {
	return nil, errors.New("not used")
}

func (m *mockRSVPStore) ListEventRSVPs(ctx context.Context, eventID string) ([]db.RSVP, error) {
	return nil, errors.New("not used")
}

func (m *mockRSVPStore) ListVolunteerRSVPs(ctx context.Context, email string) ([]db.RSVP, error) {
	if err := m.listErr[email]; err != nil {
		return nil, err
	}
	return m.history[email], nil
}

func newMocks() (*mockVolunteerStore, *mockRSVPStore) {
	return &mockVolunteerStore{
			volunteers: map[string]*db.Volunteer{},
			getErr:     map[string]error{},
		}, &mockRSVPStore{
			history: map[string][]db.RSVP{},
			listErr: map[string]error{},
		}
}

func TestRepairVolunteerMetrics_SingleVolunteerDrift(t *testing.T) {
	volunteers, rsvps := newMocks()
	volunteers.volunteers["jane@example.org"] = &db.Volunteer{
		Email:   "jane@example.org",
		Metrics: db.VolunteerMetrics{TotalRSVPs: 40, TotalNoShows: 12},
	}
	rsvps.history["jane@example.org"] = []db.RSVP{
		{EventID: "e1", Status: db.RSVPAttended, CreatedAt: "2026-01-05T10:00:00Z"},
		{EventID: "e2", Status: db.RSVPCancelled, CreatedAt: "2026-02-05T10:00:00Z"},
	}

	svc := NewService(volunteers, rsvps, zap.NewNop())
	result, err := svc.RepairVolunteerMetrics(context.Background(), "jane@example.org")
	require.NoError(t, err)

	assert.Equal(t, 1, result.VolunteersProcessed)
	assert.Equal(t, 1, result.VolunteersCorrected)
	assert.Empty(t, result.Errors)

	corrected := volunteers.volunteers["jane@example.org"].Metrics
	assert.Equal(t, db.VolunteerMetrics{
		TotalRSVPs:         2,
		TotalCancellations: 1,
		TotalAttended:      1,
		FirstEventDate:     "2026-01-05T10:00:00Z",
		LastEventDate:      "2026-02-05T10:00:00Z",
	}, corrected)
}

func TestRepairVolunteerMetrics_Idempotent(t *testing.T) {
	volunteers, rsvps := newMocks()
	volunteers.volunteers["jane@example.org"] = &db.Volunteer{
		Email:   "jane@example.org",
		Metrics: db.VolunteerMetrics{TotalRSVPs: 7},
	}
	rsvps.history["jane@example.org"] = []db.RSVP{
		{EventID: "e1", Status: db.RSVPActive, CreatedAt: "2026-01-05T10:00:00Z"},
	}

	svc := NewService(volunteers, rsvps, zap.NewNop())

	first, err := svc.RepairVolunteerMetrics(context.Background(), "jane@example.org")
	require.NoError(t, err)
	assert.Equal(t, 1, first.VolunteersCorrected)
	assert.Equal(t, 1, volunteers.setCalls)

	// A second run with no intervening RSVP changes writes nothing
	second, err := svc.RepairVolunteerMetrics(context.Background(), "jane@example.org")
	require.NoError(t, err)
	assert.Equal(t, 1, second.VolunteersProcessed)
	assert.Zero(t, second.VolunteersCorrected)
	assert.Equal(t, 1, volunteers.setCalls, "no additional write on the second run")
}

func TestRepairVolunteerMetrics_BatchContinuesPastFailures(t *testing.T) {
	volunteers, rsvps := newMocks()
	for _, email := range []string{"a@example.org", "b@example.org", "c@example.org"} {
		volunteers.volunteers[email] = &db.Volunteer{
			Email:   email,
			Metrics: db.VolunteerMetrics{TotalRSVPs: 99},
		}
		rsvps.history[email] = []db.RSVP{
			{EventID: "e1", Status: db.RSVPActive, CreatedAt: "2026-01-05T10:00:00Z"},
		}
	}
	rsvps.listErr["b@example.org"] = errors.New("read timeout")

	svc := NewService(volunteers, rsvps, zap.NewNop())
	result, err := svc.RepairVolunteerMetrics(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.VolunteersProcessed)
	assert.Equal(t, 2, result.VolunteersCorrected)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "b@example.org")

	// The failed volunteer's snapshot is untouched
	assert.Equal(t, 99, volunteers.volunteers["b@example.org"].Metrics.TotalRSVPs)
	assert.Equal(t, 1, volunteers.volunteers["a@example.org"].Metrics.TotalRSVPs)
	assert.Equal(t, 1, volunteers.volunteers["c@example.org"].Metrics.TotalRSVPs)
}

func TestRepairVolunteerMetrics_EmptyHistoryZeroesSnapshot(t *testing.T) {
	volunteers, rsvps := newMocks()
	volunteers.volunteers["ghost@example.org"] = &db.Volunteer{
		Email: "ghost@example.org",
		Metrics: db.VolunteerMetrics{
			TotalRSVPs:     3,
			FirstEventDate: "2025-01-01T10:00:00Z",
			LastEventDate:  "2025-06-01T10:00:00Z",
		},
	}

	svc := NewService(volunteers, rsvps, zap.NewNop())
	result, err := svc.RepairVolunteerMetrics(context.Background(), "ghost@example.org")
	require.NoError(t, err)

	assert.Equal(t, 1, result.VolunteersCorrected)
	assert.Equal(t, db.VolunteerMetrics{}, volunteers.volunteers["ghost@example.org"].Metrics)
}

func TestRepairVolunteerMetrics_UnknownVolunteer(t *testing.T) {
	volunteers, rsvps := newMocks()
	svc := NewService(volunteers, rsvps, zap.NewNop())

	result, err := svc.RepairVolunteerMetrics(context.Background(), "nobody@example.org")
	require.NoError(t, err, "a missing volunteer is a per-item error, not a batch failure")

	assert.Zero(t, result.VolunteersProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "volunteer not found")
}

func TestScanAllVolunteerEmails_Pages(t *testing.T) {
	volunteers, rsvps := newMocks()
	for i := 0; i < 250; i++ {
		email := fmt.Sprintf("v%03d@example.org", i)
		volunteers.volunteers[email] = &db.Volunteer{Email: email}
		rsvps.history[email] = nil
	}

	svc := NewService(volunteers, rsvps, zap.NewNop())
	emails, err := svc.scanAllVolunteerEmails(context.Background())
	require.NoError(t, err)

	assert.Len(t, emails, 250)
	assert.True(t, sort.StringsAreSorted(emails))
	assert.Equal(t, 3, volunteers.listPages, "250 volunteers at page size 100 is three pages")
}
