package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/core/validation"
	"github.com/jakechorley/community-events/pkg/db"
)

// SubmitRSVPRequest carries the parsed fields of an RSVP submission
type SubmitRSVPRequest struct {
	EventID            string
	Email              string
	FirstName          string
	LastName           string
	Phone              string
	AdditionalComments string
}

// SubmitRSVPResult is returned by SubmitRSVP
type SubmitRSVPResult struct {
	RSVP             *db.RSVP `json:"rsvp"`
	RSVPCount        int      `json:"rsvp_count"`
	AttendanceCap    int      `json:"attendance_cap"`
	VolunteerCreated bool     `json:"volunteer_created"`
}

// SubmitRSVP registers a volunteer for an event. Duplicate registrations and
// submissions against a full or non-active event are rejected. The volunteer
// profile is created on first RSVP; for an existing profile only the RSVP
// counter is adjusted, through the store's atomic add.
func SubmitRSVP(ctx context.Context, database db.Database, logger *zap.Logger, req SubmitRSVPRequest) (*SubmitRSVPResult, error) {
	email := validation.NormalizeEmail(req.Email)

	rsvpInput := db.RSVPUpdate{EventID: &req.EventID, Email: &email}
	errs := validation.ValidateRSVP(rsvpInput, false)
	errs = append(errs, validation.ValidateVolunteer(db.VolunteerUpdate{
		Email:     &email,
		FirstName: &req.FirstName,
		LastName:  &req.LastName,
	}, false)...)
	if len(errs) > 0 {
		return nil, &cascade.ValidationError{Entity: "rsvp", Errors: errs}
	}

	event, err := database.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, &cascade.DependencyError{Op: fmt.Sprintf("fetch event %s", req.EventID), Err: err}
	}
	if event == nil {
		return nil, &cascade.NotFoundError{Kind: "event", Key: req.EventID}
	}
	if event.Status != db.EventActive {
		return nil, &cascade.UnsupportedOperationError{
			Code:    "EVENT_NOT_ACTIVE",
			Message: fmt.Sprintf("event %s is %s and not accepting RSVPs", req.EventID, event.Status),
		}
	}

	existing, err := database.GetRSVP(ctx, req.EventID, email)
	if err != nil {
		return nil, &cascade.DependencyError{Op: "check existing RSVP", Err: err}
	}
	if existing != nil {
		return nil, &cascade.UnsupportedOperationError{
			Code:    "ALREADY_REGISTERED",
			Message: "you have already registered for this event",
		}
	}

	// Capacity is enforced at submit time only. Two concurrent submissions
	// can both pass this check; the overflow is later surfaced as a
	// consistency warning, not rolled back.
	rsvps, err := database.ListEventRSVPs(ctx, req.EventID)
	if err != nil {
		return nil, &cascade.DependencyError{Op: "count event RSVPs", Err: err}
	}
	active := 0
	for _, r := range rsvps {
		if r.Status == db.RSVPActive {
			active++
		}
	}
	if active >= event.AttendanceCap {
		return nil, &cascade.UnsupportedOperationError{
			Code:    "EVENT_AT_CAPACITY",
			Message: fmt.Sprintf("this event has reached its maximum capacity (%d)", event.AttendanceCap),
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	volunteerCreated := false
	volunteer, err := database.GetVolunteer(ctx, email)
	if err != nil {
		return nil, &cascade.DependencyError{Op: fmt.Sprintf("fetch volunteer %s", email), Err: err}
	}
	if volunteer == nil {
		volunteer = &db.Volunteer{
			Email:     email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Preferences: db.CommunicationPreferences{
				EmailNotifications: true,
			},
			Metrics: db.VolunteerMetrics{
				TotalRSVPs:     1,
				FirstEventDate: now,
				LastEventDate:  now,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := database.PutVolunteer(ctx, volunteer); err != nil {
			return nil, &cascade.DependencyError{Op: fmt.Sprintf("create volunteer %s", email), Err: err}
		}
		volunteerCreated = true
		logger.Info("Volunteer created on first RSVP", zap.String("email", email))
	} else {
		// EventDate keeps the first/last event date window in step with the
		// counter, so repeat submissions never drift the snapshot
		delta := db.MetricsDelta{TotalRSVPs: 1, EventDate: now}
		if err := database.AddVolunteerMetrics(ctx, email, delta); err != nil {
			// Counter drift is healed by the recovery service
			logger.Warn("Failed to increment total_rsvps",
				zap.String("email", email), zap.Error(err))
		}
	}

	rsvp := &db.RSVP{
		EventID:            req.EventID,
		Email:              email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Status:             db.RSVPActive,
		AdditionalComments: req.AdditionalComments,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := database.PutRSVP(ctx, rsvp); err != nil {
		return nil, &cascade.DependencyError{Op: "create RSVP", Err: err}
	}

	logger.Info("RSVP submitted",
		zap.String("event_id", req.EventID),
		zap.String("email", email),
		zap.Int("rsvp_count", active+1),
		zap.Int("attendance_cap", event.AttendanceCap))

	return &SubmitRSVPResult{
		RSVP:             rsvp,
		RSVPCount:        active + 1,
		AttendanceCap:    event.AttendanceCap,
		VolunteerCreated: volunteerCreated,
	}, nil
}
