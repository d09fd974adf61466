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

// CancelRSVPResult is returned by CancelRSVP
type CancelRSVPResult struct {
	RSVP             *db.RSVP `json:"rsvp"`
	HoursBeforeEvent *float64 `json:"hours_before_event,omitempty"`
	UpdateLog        []string `json:"update_log"`
}

// CancelRSVP cancels a volunteer's registration. Only the volunteer
// themselves or an administrator may cancel; the ownership check happens
// here, not in the cascade manager. The status transition is delegated to
// the cascade manager so the volunteer's cancellation counter is adjusted
// atomically alongside it.
func CancelRSVP(ctx context.Context, manager *cascade.Manager, events db.EventStore, rsvps db.RSVPStore,
	logger *zap.Logger, eventID, email, reason string, user cascade.UserContext) (*CancelRSVPResult, error) {

	email = validation.NormalizeEmail(email)

	current, err := rsvps.GetRSVP(ctx, eventID, email)
	if err != nil {
		return nil, &cascade.DependencyError{Op: fmt.Sprintf("fetch RSVP %s/%s", eventID, email), Err: err}
	}
	if current == nil {
		return nil, &cascade.NotFoundError{Kind: "rsvp", Key: fmt.Sprintf("%s/%s", eventID, email)}
	}

	if !user.IsAdmin && validation.NormalizeEmail(user.Email) != email {
		return nil, &cascade.PermissionError{Message: "you can only cancel your own RSVP"}
	}

	if current.Status == db.RSVPCancelled {
		return nil, &cascade.UnsupportedOperationError{
			Code:    "ALREADY_CANCELLED",
			Message: "this RSVP has already been cancelled",
		}
	}

	now := time.Now().UTC()

	// The notice window is kept for cancellation-pattern reporting. A
	// missing or malformed event record degrades to no value, never a
	// failed cancellation.
	var hoursBefore *float64
	event, err := events.GetEvent(ctx, eventID)
	if err != nil || event == nil {
		logger.Warn("Could not fetch event for notice window",
			zap.String("event_id", eventID), zap.Error(err))
	} else if start, perr := validation.ParseTimestamp(event.StartTime); perr == nil {
		hours := start.Sub(now).Hours()
		if hours < 0 {
			hours = 0
		}
		hoursBefore = &hours
	}

	if reason == "" {
		reason = "Cancelled by volunteer"
	}
	cancelled := db.RSVPCancelled
	cancelledAt := now.Format(time.RFC3339)

	result, err := manager.UpdateRSVP(ctx, eventID, email, db.RSVPUpdate{
		Status:             &cancelled,
		CancellationReason: &reason,
		CancelledAt:        &cancelledAt,
		HoursBeforeEvent:   hoursBefore,
	}, user)
	if err != nil {
		return nil, err
	}

	logger.Info("RSVP cancelled",
		zap.String("event_id", eventID),
		zap.String("email", email),
		zap.Float64p("hours_before_event", hoursBefore))

	return &CancelRSVPResult{
		RSVP:             result.RSVP,
		HoursBeforeEvent: hoursBefore,
		UpdateLog:        result.UpdateLog,
	}, nil
}
