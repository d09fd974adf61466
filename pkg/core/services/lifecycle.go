package services

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/internal/config"
	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/core/validation"
	"github.com/jakechorley/community-events/pkg/db"
)

// LifecycleResult summarises one lifecycle sweep
type LifecycleResult struct {
	EventsCompleted []string   `json:"events_completed"`
	EventsArchived  []string   `json:"events_archived"`
	Warnings        []string   `json:"warnings"`
	NextSweep       *time.Time `json:"next_sweep,omitempty"`
}

// RunLifecycle performs the scheduled event maintenance sweep: active events
// past their end time are completed (which also flags potential no-shows via
// the cascade), and completed events past the archive horizon are archived.
// Per-event failures are recorded as warnings and the sweep continues.
func RunLifecycle(ctx context.Context, manager *cascade.Manager, events db.EventStore, cfg *config.Config, logger *zap.Logger) (*LifecycleResult, error) {
	now := time.Now().UTC()
	system := cascade.UserContext{Email: "system", IsAdmin: true}
	result := &LifecycleResult{
		EventsCompleted: []string{},
		EventsArchived:  []string{},
		Warnings:        []string{},
	}

	logger.Debug("Starting lifecycle sweep", zap.Time("now", now))

	// Sweep 1: complete events that have ended
	active, err := events.ListEventsByStatus(ctx, db.EventActive)
	if err != nil {
		return nil, &cascade.DependencyError{Op: "list active events", Err: err}
	}

	completed := db.EventCompleted
	for _, e := range active {
		end, perr := validation.ParseTimestamp(e.EndTime)
		if perr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("event %s has unparseable end_time %q", e.EventID, e.EndTime))
			continue
		}
		if !end.Before(now) {
			continue
		}

		res, uerr := manager.UpdateEvent(ctx, e.EventID, db.EventUpdate{Status: &completed}, system)
		if uerr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("failed to complete event %s: %v", e.EventID, uerr))
			continue
		}
		result.EventsCompleted = append(result.EventsCompleted, e.EventID)
		result.Warnings = append(result.Warnings, res.Warnings...)
	}

	// Sweep 2: archive completed events past the horizon
	horizon := now.AddDate(0, 0, -cfg.ArchiveAfterDays)
	completedEvents, err := events.ListEventsByStatus(ctx, db.EventCompleted)
	if err != nil {
		return nil, &cascade.DependencyError{Op: "list completed events", Err: err}
	}

	archived := db.EventArchived
	for _, e := range completedEvents {
		end, perr := validation.ParseTimestamp(e.EndTime)
		if perr != nil || !end.Before(horizon) {
			continue
		}
		if _, uerr := manager.UpdateEvent(ctx, e.EventID, db.EventUpdate{Status: &archived}, system); uerr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("failed to archive event %s: %v", e.EventID, uerr))
			continue
		}
		result.EventsArchived = append(result.EventsArchived, e.EventID)
	}

	if cfg.LifecycleSchedule != "" {
		rule, rerr := rrule.StrToRRule(cfg.LifecycleSchedule)
		if rerr == nil {
			next := rule.After(now, false)
			if !next.IsZero() {
				result.NextSweep = &next
			}
		}
	}

	logger.Info("Lifecycle sweep finished",
		zap.Int("completed", len(result.EventsCompleted)),
		zap.Int("archived", len(result.EventsArchived)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
