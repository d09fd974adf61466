package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/community-events/pkg/db"
)

const rsvpColumns = `event_id, email, first_name, last_name, status,
	additional_comments, hours_before_event, cancellation_reason,
	created_at, updated_at, cancelled_at`

func scanRSVP(row rowScanner) (*db.RSVP, error) {
	var (
		rsvp             db.RSVP
		created, updated time.Time
		cancelled        *time.Time
	)

	err := row.Scan(&rsvp.EventID, &rsvp.Email, &rsvp.FirstName, &rsvp.LastName,
		&rsvp.Status, &rsvp.AdditionalComments, &rsvp.HoursBeforeEvent,
		&rsvp.CancellationReason, &created, &updated, &cancelled)
	if err != nil {
		return nil, err
	}

	rsvp.CreatedAt = timeString(&created)
	rsvp.UpdatedAt = timeString(&updated)
	rsvp.CancelledAt = timeString(cancelled)

	return &rsvp, nil
}

// GetRSVP retrieves a single registration by its (event_id, email) key,
// returning (nil, nil) when no record exists
func (d *DB) GetRSVP(ctx context.Context, eventID, email string) (*db.RSVP, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE event_id = $1 AND email = $2
	`, eventID, email)

	rsvp, err := scanRSVP(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get RSVP %s/%s: %w", eventID, email, err)
	}

	return rsvp, nil
}

// PutRSVP inserts a registration, replacing any existing record with the
// same key
func (d *DB) PutRSVP(ctx context.Context, rsvp *db.RSVP) error {
	created, err := timeArg(rsvp.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalid created_at: %w", err)
	}
	cancelled, err := timeArg(rsvp.CancelledAt)
	if err != nil {
		return fmt.Errorf("invalid cancelled_at: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO rsvps (event_id, email, first_name, last_name, status,
			additional_comments, hours_before_event, cancellation_reason,
			created_at, updated_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), NOW(), $10)
		ON CONFLICT (event_id, email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			status = EXCLUDED.status,
			additional_comments = EXCLUDED.additional_comments,
			hours_before_event = EXCLUDED.hours_before_event,
			cancellation_reason = EXCLUDED.cancellation_reason,
			updated_at = NOW(),
			cancelled_at = EXCLUDED.cancelled_at
	`, rsvp.EventID, rsvp.Email, rsvp.FirstName, rsvp.LastName, rsvp.Status,
		rsvp.AdditionalComments, rsvp.HoursBeforeEvent, rsvp.CancellationReason,
		created, cancelled)
	if err != nil {
		return fmt.Errorf("failed to put RSVP %s/%s: %w", rsvp.EventID, rsvp.Email, err)
	}

	return nil
}

// UpdateRSVP applies a sparse update to a registration and returns the full
// record as written. The (event_id, email) key is never changed.
func (d *DB) UpdateRSVP(ctx context.Context, eventID, email string, update db.RSVPUpdate) (*db.RSVP, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{eventID, email}
	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if update.Status != nil {
		add("status = $%d", *update.Status)
	}
	if update.AdditionalComments != nil {
		add("additional_comments = $%d", *update.AdditionalComments)
	}
	if update.HoursBeforeEvent != nil {
		add("hours_before_event = $%d", *update.HoursBeforeEvent)
	}
	if update.CancellationReason != nil {
		add("cancellation_reason = $%d", *update.CancellationReason)
	}
	if update.CancelledAt != nil {
		t, err := timeArg(*update.CancelledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid cancelled_at: %w", err)
		}
		add("cancelled_at = $%d", t)
	}

	query := fmt.Sprintf(`
		UPDATE rsvps
		SET %s
		WHERE event_id = $1 AND email = $2
		RETURNING %s
	`, strings.Join(sets, ", "), rsvpColumns)

	rsvp, err := scanRSVP(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("RSVP %s/%s not found", eventID, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update RSVP %s/%s: %w", eventID, email, err)
	}

	return rsvp, nil
}

// ListEventRSVPs retrieves every registration for an event in creation order
func (d *DB) ListEventRSVPs(ctx context.Context, eventID string) ([]db.RSVP, error) {
	return d.listRSVPs(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
}

// ListVolunteerRSVPs retrieves a volunteer's full registration history in
// creation order
func (d *DB) ListVolunteerRSVPs(ctx context.Context, email string) ([]db.RSVP, error) {
	return d.listRSVPs(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE email = $1
		ORDER BY created_at
	`, email)
}

func (d *DB) listRSVPs(ctx context.Context, query string, arg any) ([]db.RSVP, error) {
	rows, err := d.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query RSVPs: %w", err)
	}
	defer rows.Close()

	var rsvps []db.RSVP
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan RSVP: %w", err)
		}
		rsvps = append(rsvps, *rsvp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating RSVPs: %w", err)
	}

	return rsvps, nil
}
