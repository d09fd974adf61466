// Package recovery rebuilds volunteer metric snapshots from authoritative
// RSVP history. It is the repair half of the cascade manager's eventual
// consistency model: whole-record writes are last-writer-wins and cascades
// have no transactional rollback, so drift is healed here instead.
package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/community-events/pkg/core/metrics"
	"github.com/jakechorley/community-events/pkg/db"
)

const scanPageSize = 100

// RepairResult summarises a metrics repair run
type RepairResult struct {
	VolunteersProcessed int      `json:"volunteers_processed"`
	VolunteersCorrected int      `json:"volunteers_corrected"`
	Errors              []string `json:"errors"`
	RecoveryLog         []string `json:"recovery_log"`
}

// Service performs batch consistency repair over the volunteer store
type Service struct {
	volunteers db.VolunteerStore
	rsvps      db.RSVPStore
	logger     *zap.Logger
}

// NewService creates a recovery service over the given stores
func NewService(volunteers db.VolunteerStore, rsvps db.RSVPStore, logger *zap.Logger) *Service {
	return &Service{volunteers: volunteers, rsvps: rsvps, logger: logger}
}

// RepairVolunteerMetrics recomputes metric snapshots from RSVP history and
// overwrites any snapshot that disagrees. With a non-empty email it repairs
// exactly that volunteer; otherwise it pages through every volunteer. One
// volunteer's failure is recorded and the batch continues. A second run with
// no intervening RSVP changes writes nothing.
func (s *Service) RepairVolunteerMetrics(ctx context.Context, email string) (*RepairResult, error) {
	result := &RepairResult{Errors: []string{}, RecoveryLog: []string{}}

	var emails []string
	if email != "" {
		emails = []string{email}
	} else {
		all, err := s.scanAllVolunteerEmails(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteers: %w", err)
		}
		emails = all
	}

	for _, volEmail := range emails {
		corrected, err := s.repairOne(ctx, volEmail, result)
		if err != nil {
			msg := fmt.Sprintf("failed to repair metrics for %s: %v", volEmail, err)
			result.Errors = append(result.Errors, msg)
			result.RecoveryLog = append(result.RecoveryLog, msg)
			s.logger.Warn("Metrics repair failed for volunteer",
				zap.String("email", volEmail), zap.Error(err))
			continue
		}
		result.VolunteersProcessed++
		if corrected {
			result.VolunteersCorrected++
		}
	}

	s.logger.Info("Metrics repair run finished",
		zap.Int("processed", result.VolunteersProcessed),
		zap.Int("corrected", result.VolunteersCorrected),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// repairOne reports whether the volunteer's snapshot needed correction
func (s *Service) repairOne(ctx context.Context, email string, result *RepairResult) (bool, error) {
	volunteer, err := s.volunteers.GetVolunteer(ctx, email)
	if err != nil {
		return false, fmt.Errorf("fetch volunteer: %w", err)
	}
	if volunteer == nil {
		return false, fmt.Errorf("volunteer not found")
	}

	history, err := s.rsvps.ListVolunteerRSVPs(ctx, email)
	if err != nil {
		return false, fmt.Errorf("fetch RSVP history: %w", err)
	}

	correct := metrics.Compute(history)
	if volunteer.Metrics == correct {
		return false, nil
	}

	if err := s.volunteers.SetVolunteerMetrics(ctx, email, correct); err != nil {
		return false, fmt.Errorf("write corrected metrics: %w", err)
	}

	result.RecoveryLog = append(result.RecoveryLog, fmt.Sprintf("corrected metrics for %s", email))
	s.logger.Debug("Corrected volunteer metrics",
		zap.String("email", email),
		zap.Int("total_rsvps", correct.TotalRSVPs))
	return true, nil
}

// scanAllVolunteerEmails pages through the full volunteer collection using
// the store's keyset cursor.
func (s *Service) scanAllVolunteerEmails(ctx context.Context) ([]string, error) {
	var emails []string
	cursor := ""
	for {
		page, err := s.volunteers.ListVolunteerEmails(ctx, cursor, scanPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return emails, nil
		}
		emails = append(emails, page...)
		cursor = page[len(page)-1]
		if len(page) < scanPageSize {
			return emails, nil
		}
	}
}
