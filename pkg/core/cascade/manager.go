// Package cascade is the single point of entry for mutating Event, Volunteer
// and RSVP state. Every update runs validation first, then determines which
// dependent records must change with it, so cross-entity effects are never
// missed by individual request handlers.
package cascade

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/consistency"
	"github.com/jakechorley/community-events/pkg/core/metrics"
	"github.com/jakechorley/community-events/pkg/core/validation"
	"github.com/jakechorley/community-events/pkg/db"
)

// CancellationReasonEventCancelled is stamped on RSVPs swept up by an event
// cancellation cascade.
const CancellationReasonEventCancelled = "Event cancelled by organizer"

// Critical event fields whose change triggers cascade evaluation
const (
	FieldStartTime     = "start_time"
	FieldEndTime       = "end_time"
	FieldLocation      = "location"
	FieldStatus        = "status"
	FieldAttendanceCap = "attendance_cap"
)

// UserContext identifies the caller on whose behalf an update runs
type UserContext struct {
	Email   string
	IsAdmin bool
}

// CascadeResult summarises the dependent-record effects of an event update
type CascadeResult struct {
	RSVPsUpdated       int      `json:"rsvps_updated"`
	VolunteersNotified int      `json:"volunteers_notified"`
	ActionsTaken       []string `json:"actions_taken"`

	// NotifyEmails and ChangedFields identify who should be told about a
	// details change and why. Dispatch itself is the caller's concern.
	NotifyEmails  []string `json:"notify_emails,omitempty"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}

// EventUpdateResult is returned by UpdateEvent
type EventUpdateResult struct {
	Event     *db.Event     `json:"event"`
	Cascades  CascadeResult `json:"cascading_updates"`
	Warnings  []string      `json:"warnings"`
	UpdateLog []string      `json:"update_log"`
}

// VolunteerUpdateResult is returned by UpdateVolunteer
type VolunteerUpdateResult struct {
	Volunteer        *db.Volunteer `json:"volunteer"`
	MetricsCorrected bool          `json:"metrics_corrected"`
	Warnings         []string      `json:"warnings"`
	UpdateLog        []string      `json:"update_log"`
}

// RSVPUpdateResult is returned by UpdateRSVP
type RSVPUpdateResult struct {
	RSVP      *db.RSVP        `json:"rsvp"`
	Delta     db.MetricsDelta `json:"-"`
	UpdateLog []string        `json:"update_log"`
}

// actionLog is the per-call ordered record of actions taken. It is a local
// value threaded through one call and returned in the result, never manager
// state, so a single Manager is safe to share across concurrent requests.
type actionLog []string

func (l *actionLog) addf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// Manager orchestrates cascading updates across the three entity stores
type Manager struct {
	events     db.EventStore
	volunteers db.VolunteerStore
	rsvps      db.RSVPStore
	logger     *zap.Logger
}

// NewManager creates a cascade manager over the given stores
func NewManager(events db.EventStore, volunteers db.VolunteerStore, rsvps db.RSVPStore, logger *zap.Logger) *Manager {
	return &Manager{
		events:     events,
		volunteers: volunteers,
		rsvps:      rsvps,
		logger:     logger,
	}
}

// UpdateEvent applies a partial event update and cascades the effects of
// critical field changes to the event's RSVPs. Consistency findings are
// returned as warnings and never block the write.
func (m *Manager) UpdateEvent(ctx context.Context, eventID string, updates db.EventUpdate, user UserContext) (*EventUpdateResult, error) {
	log := actionLog{}
	var warnings []string

	if errs := validation.ValidateEvent(updates, true); len(errs) > 0 {
		return nil, &ValidationError{Entity: "event", Errors: errs}
	}

	current, err := m.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, &DependencyError{Op: fmt.Sprintf("fetch event %s", eventID), Err: err}
	}
	if current == nil {
		return nil, &NotFoundError{Kind: "event", Key: eventID}
	}

	if updates.IsZero() {
		log.addf("no changes requested for event %s", eventID)
		return &EventUpdateResult{
			Event:     current,
			Cascades:  CascadeResult{ActionsTaken: []string{}},
			UpdateLog: log,
		}, nil
	}

	criticalChanges := identifyCriticalChanges(current, updates)

	// Dependent fetch is conditional: cosmetic updates (description edits
	// and the like) never pay for an RSVP query.
	var affectedRSVPs []db.RSVP
	if len(criticalChanges) > 0 {
		affectedRSVPs, err = m.rsvps.ListEventRSVPs(ctx, eventID)
		if err != nil {
			// Dependent read failures degrade to an empty set; the primary
			// update still proceeds.
			log.addf("failed to fetch RSVPs for event %s: %v", eventID, err)
			m.logger.Warn("Dependent RSVP fetch failed, proceeding without cascade set",
				zap.String("event_id", eventID), zap.Error(err))
			affectedRSVPs = nil
		}
	}

	if len(affectedRSVPs) > 0 {
		proposed := *current
		updates.ApplyTo(&proposed)
		for _, f := range consistency.CheckEventRSVPConsistency(&proposed, affectedRSVPs) {
			warnings = append(warnings, f.Message)
		}
	}

	updatedEvent, err := m.events.UpdateEvent(ctx, eventID, updates)
	if err != nil {
		m.attemptRollback(eventID, current, &log)
		return nil, &DependencyError{Op: fmt.Sprintf("update event %s", eventID), Err: err}
	}
	log.addf("updated event %s", eventID)
	m.logger.Info("Event updated",
		zap.String("event_id", eventID),
		zap.Strings("critical_changes", criticalChanges))

	cascades := m.performCascades(ctx, eventID, current, updatedEvent, affectedRSVPs, criticalChanges, &log, &warnings)

	return &EventUpdateResult{
		Event:     updatedEvent,
		Cascades:  cascades,
		Warnings:  warnings,
		UpdateLog: log,
	}, nil
}

// UpdateVolunteer applies a partial volunteer update. Attempts to change the
// email identifier are rejected outright: email is the partition key and
// moving it would require migrating every dependent RSVP atomically, which
// this system does not support. When the caller sets ValidateMetrics the
// stored snapshot is checked against RSVP history and overwritten on drift.
func (m *Manager) UpdateVolunteer(ctx context.Context, email string, updates db.VolunteerUpdate, user UserContext) (*VolunteerUpdateResult, error) {
	log := actionLog{}
	var warnings []string

	if errs := validation.ValidateVolunteer(updates, true); len(errs) > 0 {
		return nil, &ValidationError{Entity: "volunteer", Errors: errs}
	}

	if updates.Email != nil && validation.NormalizeEmail(*updates.Email) != validation.NormalizeEmail(email) {
		return nil, &UnsupportedOperationError{
			Code:    "EMAIL_CHANGE_NOT_SUPPORTED",
			Message: "email changes are not supported through this API; contact support",
		}
	}

	current, err := m.volunteers.GetVolunteer(ctx, email)
	if err != nil {
		return nil, &DependencyError{Op: fmt.Sprintf("fetch volunteer %s", email), Err: err}
	}
	if current == nil {
		return nil, &NotFoundError{Kind: "volunteer", Key: email}
	}

	updatedVolunteer, err := m.volunteers.UpdateVolunteer(ctx, email, updates)
	if err != nil {
		return nil, &DependencyError{Op: fmt.Sprintf("update volunteer %s", email), Err: err}
	}
	log.addf("updated volunteer %s", email)

	result := &VolunteerUpdateResult{Volunteer: updatedVolunteer}

	if updates.ValidateMetrics {
		history, err := m.rsvps.ListVolunteerRSVPs(ctx, email)
		if err != nil {
			log.addf("failed to fetch RSVP history for %s: %v", email, err)
			m.logger.Warn("Skipping metrics validation, RSVP history fetch failed",
				zap.String("email", email), zap.Error(err))
		} else {
			findings := consistency.CheckVolunteerMetricsConsistency(updatedVolunteer, history)
			if len(findings) > 0 {
				for _, f := range findings {
					warnings = append(warnings, f.Message)
				}
				corrected := metrics.Compute(history)
				if err := m.volunteers.SetVolunteerMetrics(ctx, email, corrected); err != nil {
					log.addf("failed to correct metrics for %s: %v", email, err)
					m.logger.Warn("Metrics correction write failed",
						zap.String("email", email), zap.Error(err))
				} else {
					updatedVolunteer.Metrics = corrected
					result.MetricsCorrected = true
					log.addf("corrected metrics for volunteer %s", email)
					m.logger.Info("Corrected drifted volunteer metrics", zap.String("email", email))
				}
			}
		}
	}

	result.Warnings = warnings
	result.UpdateLog = log
	return result, nil
}

// UpdateRSVP applies a partial RSVP update. A status change also applies the
// signed counter delta to the volunteer's metrics snapshot through the
// store's atomic add, so concurrent transitions for the same volunteer
// commute without lost updates.
func (m *Manager) UpdateRSVP(ctx context.Context, eventID, email string, updates db.RSVPUpdate, user UserContext) (*RSVPUpdateResult, error) {
	log := actionLog{}

	if errs := validation.ValidateRSVP(updates, true); len(errs) > 0 {
		return nil, &ValidationError{Entity: "rsvp", Errors: errs}
	}

	current, err := m.rsvps.GetRSVP(ctx, eventID, email)
	if err != nil {
		return nil, &DependencyError{Op: fmt.Sprintf("fetch RSVP %s/%s", eventID, email), Err: err}
	}
	if current == nil {
		return nil, &NotFoundError{Kind: "rsvp", Key: fmt.Sprintf("%s/%s", eventID, email)}
	}

	oldStatus := current.Status

	updatedRSVP, err := m.rsvps.UpdateRSVP(ctx, eventID, email, updates)
	if err != nil {
		return nil, &DependencyError{Op: fmt.Sprintf("update RSVP %s/%s", eventID, email), Err: err}
	}
	log.addf("updated RSVP for %s at event %s", email, eventID)

	var delta db.MetricsDelta
	if updates.Status != nil && *updates.Status != oldStatus {
		delta = metrics.Delta(oldStatus, *updates.Status)
		if !delta.IsZero() {
			if err := m.volunteers.AddVolunteerMetrics(ctx, email, delta); err != nil {
				// Counter drift is healed by the recovery service; the RSVP
				// write itself already succeeded.
				log.addf("failed to update metrics for %s: %v", email, err)
				m.logger.Warn("Metrics delta write failed",
					zap.String("email", email), zap.Error(err))
			} else {
				log.addf("updated volunteer metrics for %s due to status change", email)
			}
		}
		m.logger.Info("RSVP status changed",
			zap.String("event_id", eventID),
			zap.String("email", email),
			zap.String("old_status", string(oldStatus)),
			zap.String("new_status", string(*updates.Status)))
	}

	return &RSVPUpdateResult{RSVP: updatedRSVP, Delta: delta, UpdateLog: log}, nil
}

// identifyCriticalChanges returns the critical fields whose proposed value
// differs from the stored one. Non-critical changes never trigger a cascade.
func identifyCriticalChanges(current *db.Event, updates db.EventUpdate) []string {
	var changes []string

	if updates.StartTime != nil && *updates.StartTime != current.StartTime {
		changes = append(changes, FieldStartTime)
	}
	if updates.EndTime != nil && *updates.EndTime != current.EndTime {
		changes = append(changes, FieldEndTime)
	}
	if updates.Location != nil && !reflect.DeepEqual(*updates.Location, current.Location) {
		changes = append(changes, FieldLocation)
	}
	if updates.Status != nil && *updates.Status != current.Status {
		changes = append(changes, FieldStatus)
	}
	if updates.AttendanceCap != nil && *updates.AttendanceCap != current.AttendanceCap {
		changes = append(changes, FieldAttendanceCap)
	}

	return changes
}

// performCascades evaluates each triggered cascade independently; a single
// update can trigger several.
func (m *Manager) performCascades(ctx context.Context, eventID string, oldEvent, newEvent *db.Event,
	affectedRSVPs []db.RSVP, criticalChanges []string, log *actionLog, warnings *[]string) CascadeResult {

	result := CascadeResult{ActionsTaken: []string{}}

	if len(criticalChanges) == 0 || len(affectedRSVPs) == 0 {
		return result
	}

	if containsField(criticalChanges, FieldStatus) {
		switch newEvent.Status {
		case db.EventCancelled:
			result.ActionsTaken = append(result.ActionsTaken, "event_cancelled")
			result.RSVPsUpdated = m.cancelActiveRSVPs(ctx, eventID, affectedRSVPs, log)
		case db.EventCompleted:
			result.ActionsTaken = append(result.ActionsTaken, "event_completed")
			active := countActive(affectedRSVPs)
			if active > 0 {
				// No-show determination needs human judgment; the cascade
				// only flags the candidates.
				result.ActionsTaken = append(result.ActionsTaken,
					fmt.Sprintf("identified_%d_potential_no_shows", active))
				log.addf("event completed with %d active RSVPs - manual attendance tracking may be needed", active)
			}
		}
	}

	if containsField(criticalChanges, FieldAttendanceCap) {
		active := countActive(affectedRSVPs)
		if active > newEvent.AttendanceCap {
			excess := active - newEvent.AttendanceCap
			result.ActionsTaken = append(result.ActionsTaken,
				fmt.Sprintf("attendance_cap_exceeded_by_%d", excess))
			*warnings = append(*warnings, fmt.Sprintf(
				"event has %d active RSVPs but cap is now %d (%d over)",
				active, newEvent.AttendanceCap, excess))
			log.addf("warning: event has %d active RSVPs but cap is now %d", active, newEvent.AttendanceCap)
		}
	}

	detailFields := changedDetailFields(criticalChanges)
	if len(detailFields) > 0 {
		result.ActionsTaken = append(result.ActionsTaken, "details_changed")
		result.VolunteersNotified = len(affectedRSVPs)
		result.ChangedFields = detailFields
		for _, r := range affectedRSVPs {
			result.NotifyEmails = append(result.NotifyEmails, r.Email)
		}
		log.addf("event details changed (%s) - %d volunteers should be notified",
			strings.Join(detailFields, ", "), len(affectedRSVPs))
	}

	return result
}

// cancelActiveRSVPs transitions every active RSVP for the event to cancelled.
// Each write failure is caught individually and logged; the sweep continues.
func (m *Manager) cancelActiveRSVPs(ctx context.Context, eventID string, rsvps []db.RSVP, log *actionLog) int {
	cancelled := db.RSVPCancelled
	reason := CancellationReasonEventCancelled
	now := time.Now().UTC().Format(time.RFC3339)

	updated := 0
	for _, r := range rsvps {
		if r.Status != db.RSVPActive {
			continue
		}
		_, err := m.rsvps.UpdateRSVP(ctx, eventID, r.Email, db.RSVPUpdate{
			Status:             &cancelled,
			CancellationReason: &reason,
			CancelledAt:        &now,
		})
		if err != nil {
			log.addf("failed to cancel RSVP for %s: %v", r.Email, err)
			m.logger.Warn("Cascade RSVP cancellation failed",
				zap.String("event_id", eventID),
				zap.String("email", r.Email),
				zap.Error(err))
			continue
		}
		updated++
		log.addf("cancelled RSVP for %s due to event cancellation", r.Email)
	}
	return updated
}

// attemptRollback is a best-effort, logged-only hook. Full transactional
// rollback across three independently updated tables is out of scope; the
// recovery service is the real drift-healing mechanism.
func (m *Manager) attemptRollback(eventID string, originalEvent *db.Event, log *actionLog) {
	if originalEvent == nil {
		return
	}
	log.addf("attempting rollback for event %s", eventID)
	m.logger.Warn("Update failed mid-sequence, rollback recorded for repair",
		zap.String("event_id", eventID))
}

func countActive(rsvps []db.RSVP) int {
	n := 0
	for _, r := range rsvps {
		if r.Status == db.RSVPActive {
			n++
		}
	}
	return n
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func changedDetailFields(criticalChanges []string) []string {
	var out []string
	for _, f := range []string{FieldStartTime, FieldEndTime, FieldLocation} {
		if containsField(criticalChanges, f) {
			out = append(out, f)
		}
	}
	return out
}
