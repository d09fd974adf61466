package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/community-events/pkg/db"
)

// mockDatabase implements db.Database over in-memory maps
type mockDatabase struct {
	events     map[string]*db.Event
	volunteers map[string]*db.Volunteer
	rsvps      map[string]*db.RSVP
	rsvpOrder  []string

	deltas []db.MetricsDelta

	getEventErr error
	putRSVPErr  error
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{
		events:     map[string]*db.Event{},
		volunteers: map[string]*db.Volunteer{},
		rsvps:      map[string]*db.RSVP{},
	}
}

func rsvpKey(eventID, email string) string { return eventID + "/" + email }

func (m *mockDatabase) GetEvent(ctx context.Context, eventID string) (*db.Event, error) {
	if m.getEventErr != nil {
		return nil, m.getEventErr
	}
	e, ok := m.events[eventID]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (m *mockDatabase) PutEvent(ctx context.Context, event *db.Event) error {
	m.events[event.EventID] = event
	return nil
}

func (m *mockDatabase) UpdateEvent(ctx context.Context, eventID string, update db.EventUpdate) (*db.Event, error) {
	e, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	update.ApplyTo(e)
	copied := *e
	return &copied, nil
}

func (m *mockDatabase) ListEventsByStatus(ctx context.Context, status db.EventStatus) ([]db.Event, error) {
	var out []db.Event
	for _, e := range m.events {
		if e.Status == status {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockDatabase) GetVolunteer(ctx context.Context, email string) (*db.Volunteer, error) {
	v, ok := m.volunteers[email]
	if !ok {
		return nil, nil
	}
	copied := *v
	return &copied, nil
}

func (m *mockDatabase) PutVolunteer(ctx context.Context, volunteer *db.Volunteer) error {
	m.volunteers[volunteer.Email] = volunteer
	return nil
}

func (m *mockDatabase) UpdateVolunteer(ctx context.Context, email string, update db.VolunteerUpdate) (*db.Volunteer, error) {
	v, ok := m.volunteers[email]
	if !ok {
		return nil, fmt.Errorf("volunteer %s not found", email)
	}
	update.ApplyTo(v)
	copied := *v
	return &copied, nil
}

func (m *mockDatabase) SetVolunteerMetrics(ctx context.Context, email string, metrics db.VolunteerMetrics) error {
	v, ok := m.volunteers[email]
	if !ok {
		return fmt.Errorf("volunteer %s not found", email)
	}
	v.Metrics = metrics
	return nil
}

func (m *mockDatabase) AddVolunteerMetrics(ctx context.Context, email string, delta db.MetricsDelta) error {
	m.deltas = append(m.deltas, delta)
	v, ok := m.volunteers[email]
	if !ok {
		return fmt.Errorf("volunteer %s not found", email)
	}
	v.Metrics.TotalRSVPs += delta.TotalRSVPs
	v.Metrics.TotalCancellations += delta.TotalCancellations
	v.Metrics.TotalNoShows += delta.TotalNoShows
	v.Metrics.TotalAttended += delta.TotalAttended
	if delta.EventDate != "" {
		if v.Metrics.FirstEventDate == "" || delta.EventDate < v.Metrics.FirstEventDate {
			v.Metrics.FirstEventDate = delta.EventDate
		}
		if delta.EventDate > v.Metrics.LastEventDate {
			v.Metrics.LastEventDate = delta.EventDate
		}
	}
	return nil
}

func (m *mockDatabase) ListVolunteerEmails(ctx context.Context, afterEmail string, limit int) ([]string, error) {
	var out []string
	for email := range m.volunteers {
		if email > afterEmail {
			out = append(out, email)
		}
	}
	return out, nil
}

func (m *mockDatabase) GetRSVP(ctx context.Context, eventID, email string) (*db.RSVP, error) {
	r, ok := m.rsvps[rsvpKey(eventID, email)]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockDatabase) PutRSVP(ctx context.Context, rsvp *db.RSVP) error {
	if m.putRSVPErr != nil {
		return m.putRSVPErr
	}
	key := rsvpKey(rsvp.EventID, rsvp.Email)
	if _, exists := m.rsvps[key]; !exists {
		m.rsvpOrder = append(m.rsvpOrder, key)
	}
	m.rsvps[key] = rsvp
	return nil
}

func (m *mockDatabase) UpdateRSVP(ctx context.Context, eventID, email string, update db.RSVPUpdate) (*db.RSVP, error) {
	r, ok := m.rsvps[rsvpKey(eventID, email)]
	if !ok {
		return nil, fmt.Errorf("RSVP %s/%s not found", eventID, email)
	}
	update.ApplyTo(r)
	copied := *r
	return &copied, nil
}

func (m *mockDatabase) ListEventRSVPs(ctx context.Context, eventID string) ([]db.RSVP, error) {
	var out []db.RSVP
	for _, key := range m.rsvpOrder {
		r := m.rsvps[key]
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockDatabase) ListVolunteerRSVPs(ctx context.Context, email string) ([]db.RSVP, error) {
	var out []db.RSVP
	for _, key := range m.rsvpOrder {
		r := m.rsvps[key]
		if r.Email == email {
			out = append(out, *r)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// activeEvent seeds a valid upcoming event
func activeEvent(id string, cap int) *db.Event {
	start := time.Now().UTC().Add(72 * time.Hour)
	return &db.Event{
		EventID:     id,
		Title:       "Park Cleanup",
		Description: "Litter picking and planting around the lake.",
		StartTime:   start.Format(time.RFC3339),
		EndTime:     start.Add(3 * time.Hour).Format(time.RFC3339),
		Location: db.Location{
			Name:    "Valentines Park",
			Address: "Emerson Road, Ilford IG1 4XA",
		},
		AttendanceCap: cap,
		Status:        db.EventActive,
	}
}
