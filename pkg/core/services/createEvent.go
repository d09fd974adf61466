package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/core/validation"
	"github.com/jakechorley/community-events/pkg/db"
)

const defaultAttendanceCap = 15

// CreateEvent validates a full event payload and writes a new event record.
// Only administrators may create events. Status defaults to active and the
// attendance cap to 15 when not supplied.
func CreateEvent(ctx context.Context, events db.EventStore, logger *zap.Logger, input db.EventUpdate, user cascade.UserContext) (*db.Event, error) {
	if !user.IsAdmin {
		return nil, &cascade.PermissionError{Message: "only administrators can create events"}
	}

	if errs := validation.ValidateEvent(input, false); len(errs) > 0 {
		return nil, &cascade.ValidationError{Entity: "event", Errors: errs}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	event := &db.Event{
		EventID:       uuid.New().String(),
		Status:        db.EventActive,
		AttendanceCap: defaultAttendanceCap,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	input.ApplyTo(event)

	logger.Debug("Creating event",
		zap.String("event_id", event.EventID),
		zap.String("title", event.Title),
		zap.String("start_time", event.StartTime))

	if err := events.PutEvent(ctx, event); err != nil {
		return nil, &cascade.DependencyError{Op: fmt.Sprintf("create event %s", event.EventID), Err: err}
	}

	logger.Info("Event created",
		zap.String("event_id", event.EventID),
		zap.String("title", event.Title))

	return event, nil
}
