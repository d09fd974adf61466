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

const volunteerColumns = `email, first_name, last_name, phone, emergency_contact,
	dietary_restrictions, volunteer_experience, how_did_you_hear,
	email_notifications, sms_notifications,
	total_rsvps, total_cancellations, total_no_shows, total_attended,
	first_event_date, last_event_date, created_at, updated_at`

func scanVolunteer(row rowScanner) (*db.Volunteer, error) {
	var (
		volunteer        db.Volunteer
		first, last      *time.Time
		created, updated time.Time
	)

	err := row.Scan(&volunteer.Email, &volunteer.FirstName, &volunteer.LastName,
		&volunteer.Phone, &volunteer.EmergencyContact, &volunteer.DietaryRestrictions,
		&volunteer.VolunteerExperience, &volunteer.HowDidYouHear,
		&volunteer.Preferences.EmailNotifications, &volunteer.Preferences.SMSNotifications,
		&volunteer.Metrics.TotalRSVPs, &volunteer.Metrics.TotalCancellations,
		&volunteer.Metrics.TotalNoShows, &volunteer.Metrics.TotalAttended,
		&first, &last, &created, &updated)
	if err != nil {
		return nil, err
	}

	volunteer.Metrics.FirstEventDate = timeString(first)
	volunteer.Metrics.LastEventDate = timeString(last)
	volunteer.CreatedAt = timeString(&created)
	volunteer.UpdatedAt = timeString(&updated)

	return &volunteer, nil
}

// GetVolunteer retrieves a volunteer profile by email, returning (nil, nil)
// when no record exists
func (d *DB) GetVolunteer(ctx context.Context, email string) (*db.Volunteer, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteers
		WHERE email = $1
	`, email)

	volunteer, err := scanVolunteer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get volunteer %s: %w", email, err)
	}

	return volunteer, nil
}

// PutVolunteer inserts a volunteer profile, replacing any existing record
// with the same email
func (d *DB) PutVolunteer(ctx context.Context, volunteer *db.Volunteer) error {
	first, err := timeArg(volunteer.Metrics.FirstEventDate)
	if err != nil {
		return fmt.Errorf("invalid first_event_date: %w", err)
	}
	last, err := timeArg(volunteer.Metrics.LastEventDate)
	if err != nil {
		return fmt.Errorf("invalid last_event_date: %w", err)
	}
	created, err := timeArg(volunteer.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalid created_at: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO volunteers (email, first_name, last_name, phone, emergency_contact,
			dietary_restrictions, volunteer_experience, how_did_you_hear,
			email_notifications, sms_notifications,
			total_rsvps, total_cancellations, total_no_shows, total_attended,
			first_event_date, last_event_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, COALESCE($17, NOW()), NOW())
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			emergency_contact = EXCLUDED.emergency_contact,
			dietary_restrictions = EXCLUDED.dietary_restrictions,
			volunteer_experience = EXCLUDED.volunteer_experience,
			how_did_you_hear = EXCLUDED.how_did_you_hear,
			email_notifications = EXCLUDED.email_notifications,
			sms_notifications = EXCLUDED.sms_notifications,
			total_rsvps = EXCLUDED.total_rsvps,
			total_cancellations = EXCLUDED.total_cancellations,
			total_no_shows = EXCLUDED.total_no_shows,
			total_attended = EXCLUDED.total_attended,
			first_event_date = EXCLUDED.first_event_date,
			last_event_date = EXCLUDED.last_event_date,
			updated_at = NOW()
	`, volunteer.Email, volunteer.FirstName, volunteer.LastName, volunteer.Phone,
		volunteer.EmergencyContact, volunteer.DietaryRestrictions,
		volunteer.VolunteerExperience, volunteer.HowDidYouHear,
		volunteer.Preferences.EmailNotifications, volunteer.Preferences.SMSNotifications,
		volunteer.Metrics.TotalRSVPs, volunteer.Metrics.TotalCancellations,
		volunteer.Metrics.TotalNoShows, volunteer.Metrics.TotalAttended,
		first, last, created)
	if err != nil {
		return fmt.Errorf("failed to put volunteer %s: %w", volunteer.Email, err)
	}

	return nil
}

// UpdateVolunteer applies a sparse profile update and returns the full
// record as written. The email key is never changed.
func (d *DB) UpdateVolunteer(ctx context.Context, email string, update db.VolunteerUpdate) (*db.Volunteer, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{email}
	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if update.FirstName != nil {
		add("first_name = $%d", *update.FirstName)
	}
	if update.LastName != nil {
		add("last_name = $%d", *update.LastName)
	}
	if update.Phone != nil {
		add("phone = $%d", *update.Phone)
	}
	if update.EmergencyContact != nil {
		add("emergency_contact = $%d", *update.EmergencyContact)
	}
	if update.DietaryRestrictions != nil {
		add("dietary_restrictions = $%d", *update.DietaryRestrictions)
	}
	if update.VolunteerExperience != nil {
		add("volunteer_experience = $%d", *update.VolunteerExperience)
	}
	if update.HowDidYouHear != nil {
		add("how_did_you_hear = $%d", *update.HowDidYouHear)
	}
	if update.Preferences != nil {
		add("email_notifications = $%d", update.Preferences.EmailNotifications)
		add("sms_notifications = $%d", update.Preferences.SMSNotifications)
	}

	query := fmt.Sprintf(`
		UPDATE volunteers
		SET %s
		WHERE email = $1
		RETURNING %s
	`, strings.Join(sets, ", "), volunteerColumns)

	volunteer, err := scanVolunteer(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("volunteer %s not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update volunteer %s: %w", email, err)
	}

	return volunteer, nil
}

// SetVolunteerMetrics overwrites a volunteer's whole metrics snapshot
func (d *DB) SetVolunteerMetrics(ctx context.Context, email string, metrics db.VolunteerMetrics) error {
	first, err := timeArg(metrics.FirstEventDate)
	if err != nil {
		return fmt.Errorf("invalid first_event_date: %w", err)
	}
	last, err := timeArg(metrics.LastEventDate)
	if err != nil {
		return fmt.Errorf("invalid last_event_date: %w", err)
	}

	tag, err := d.pool.Exec(ctx, `
		UPDATE volunteers
		SET total_rsvps = $2,
			total_cancellations = $3,
			total_no_shows = $4,
			total_attended = $5,
			first_event_date = $6,
			last_event_date = $7,
			updated_at = NOW()
		WHERE email = $1
	`, email, metrics.TotalRSVPs, metrics.TotalCancellations,
		metrics.TotalNoShows, metrics.TotalAttended, first, last)
	if err != nil {
		return fmt.Errorf("failed to set metrics for volunteer %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("volunteer %s not found", email)
	}

	return nil
}

// AddVolunteerMetrics applies a signed counter delta in a single statement,
// so concurrent adjustments for the same volunteer commute
func (d *DB) AddVolunteerMetrics(ctx context.Context, email string, delta db.MetricsDelta) error {
	if delta.IsZero() {
		return nil
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{email}
	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if delta.TotalRSVPs != 0 {
		add("total_rsvps = total_rsvps + $%d", delta.TotalRSVPs)
	}
	if delta.TotalCancellations != 0 {
		add("total_cancellations = total_cancellations + $%d", delta.TotalCancellations)
	}
	if delta.TotalNoShows != 0 {
		add("total_no_shows = total_no_shows + $%d", delta.TotalNoShows)
	}
	if delta.TotalAttended != 0 {
		add("total_attended = total_attended + $%d", delta.TotalAttended)
	}
	if delta.EventDate != "" {
		when, err := timeArg(delta.EventDate)
		if err != nil {
			return fmt.Errorf("invalid event date: %w", err)
		}
		args = append(args, when)
		n := len(args)
		sets = append(sets,
			fmt.Sprintf("first_event_date = LEAST(COALESCE(first_event_date, $%d), $%d)", n, n),
			fmt.Sprintf("last_event_date = GREATEST(COALESCE(last_event_date, $%d), $%d)", n, n))
	}

	query := fmt.Sprintf(`
		UPDATE volunteers
		SET %s
		WHERE email = $1
	`, strings.Join(sets, ", "))

	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to adjust metrics for volunteer %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("volunteer %s not found", email)
	}

	return nil
}

// ListVolunteerEmails pages through volunteer emails in key order.
// afterEmail is the exclusive cursor; every email compares greater than "",
// so the empty string selects the first page.
func (d *DB) ListVolunteerEmails(ctx context.Context, afterEmail string, limit int) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT email
		FROM volunteers
		WHERE email > $1
		ORDER BY email
		LIMIT $2
	`, afterEmail, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteer emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer email: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteer emails: %w", err)
	}

	return emails, nil
}
