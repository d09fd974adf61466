package db

import "context"

// Get operations return (nil, nil) when the record does not exist; callers
// decide whether that is an error.

// EventStore defines the database operations for event records
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	PutEvent(ctx context.Context, event *Event) error
	UpdateEvent(ctx context.Context, eventID string, update EventUpdate) (*Event, error)
	ListEventsByStatus(ctx context.Context, status EventStatus) ([]Event, error)
}

// VolunteerStore defines the database operations for volunteer records
type VolunteerStore interface {
	GetVolunteer(ctx context.Context, email string) (*Volunteer, error)
	PutVolunteer(ctx context.Context, volunteer *Volunteer) error
	UpdateVolunteer(ctx context.Context, email string, update VolunteerUpdate) (*Volunteer, error)

	// SetVolunteerMetrics overwrites the whole metrics snapshot
	SetVolunteerMetrics(ctx context.Context, email string, metrics VolunteerMetrics) error

	// AddVolunteerMetrics applies a signed counter delta atomically
	AddVolunteerMetrics(ctx context.Context, email string, delta MetricsDelta) error

	// ListVolunteerEmails pages through all volunteer emails in key order.
	// afterEmail is the exclusive cursor; pass "" for the first page.
	ListVolunteerEmails(ctx context.Context, afterEmail string, limit int) ([]string, error)
}

// RSVPStore defines the database operations for RSVP records
type RSVPStore interface {
	GetRSVP(ctx context.Context, eventID, email string) (*RSVP, error)
	PutRSVP(ctx context.Context, rsvp *RSVP) error
	UpdateRSVP(ctx context.Context, eventID, email string, update RSVPUpdate) (*RSVP, error)
	ListEventRSVPs(ctx context.Context, eventID string) ([]RSVP, error)
	ListVolunteerRSVPs(ctx context.Context, email string) ([]RSVP, error)
}

// Database defines the interface for all database operations.
// The postgres-backed DB implements this interface.
type Database interface {
	EventStore
	VolunteerStore
	RSVPStore
}
