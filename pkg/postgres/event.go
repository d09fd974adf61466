package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/community-events/pkg/db"
)

const eventColumns = `event_id, title, description, start_time, end_time,
	location_name, location_address, location_lat, location_lng,
	attendance_cap, status, publish_config, created_at, updated_at`

func scanEvent(row rowScanner) (*db.Event, error) {
	var (
		event                        db.Event
		start, end, created, updated time.Time
		lat, lng                     *float64
		publish                      []byte
	)

	err := row.Scan(&event.EventID, &event.Title, &event.Description, &start, &end,
		&event.Location.Name, &event.Location.Address, &lat, &lng,
		&event.AttendanceCap, &event.Status, &publish, &created, &updated)
	if err != nil {
		return nil, err
	}

	event.StartTime = timeString(&start)
	event.EndTime = timeString(&end)
	event.CreatedAt = timeString(&created)
	event.UpdatedAt = timeString(&updated)

	if lat != nil && lng != nil {
		event.Location.Coordinates = &db.Coordinates{Lat: *lat, Lng: *lng}
	}

	if len(publish) > 0 {
		var cfg db.PublishConfig
		if err := json.Unmarshal(publish, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse publish config: %w", err)
		}
		event.Publish = &cfg
	}

	return &event, nil
}

// GetEvent retrieves a single event by ID, returning (nil, nil) when no
// record exists
func (d *DB) GetEvent(ctx context.Context, eventID string) (*db.Event, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE event_id = $1
	`, eventID)

	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}

	return event, nil
}

// PutEvent inserts an event record, replacing any existing record with the
// same ID
func (d *DB) PutEvent(ctx context.Context, event *db.Event) error {
	start, err := timeArg(event.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := timeArg(event.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end_time: %w", err)
	}
	created, err := timeArg(event.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalid created_at: %w", err)
	}

	var lat, lng *float64
	if event.Location.Coordinates != nil {
		lat = &event.Location.Coordinates.Lat
		lng = &event.Location.Coordinates.Lng
	}

	var publish []byte
	if event.Publish != nil {
		publish, err = json.Marshal(event.Publish)
		if err != nil {
			return fmt.Errorf("failed to encode publish config: %w", err)
		}
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO events (event_id, title, description, start_time, end_time,
			location_name, location_address, location_lat, location_lng,
			attendance_cap, status, publish_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()), NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			location_name = EXCLUDED.location_name,
			location_address = EXCLUDED.location_address,
			location_lat = EXCLUDED.location_lat,
			location_lng = EXCLUDED.location_lng,
			attendance_cap = EXCLUDED.attendance_cap,
			status = EXCLUDED.status,
			publish_config = EXCLUDED.publish_config,
			updated_at = NOW()
	`, event.EventID, event.Title, event.Description, start, end,
		event.Location.Name, event.Location.Address, lat, lng,
		event.AttendanceCap, event.Status, publish, created)
	if err != nil {
		return fmt.Errorf("failed to put event %s: %w", event.EventID, err)
	}

	return nil
}

// UpdateEvent applies a sparse update to an event and returns the full
// record as written
func (d *DB) UpdateEvent(ctx context.Context, eventID string, update db.EventUpdate) (*db.Event, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{eventID}
	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if update.Title != nil {
		add("title = $%d", *update.Title)
	}
	if update.Description != nil {
		add("description = $%d", *update.Description)
	}
	if update.StartTime != nil {
		t, err := timeArg(*update.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid start_time: %w", err)
		}
		add("start_time = $%d", t)
	}
	if update.EndTime != nil {
		t, err := timeArg(*update.EndTime)
		if err != nil {
			return nil, fmt.Errorf("invalid end_time: %w", err)
		}
		add("end_time = $%d", t)
	}
	if update.Location != nil {
		add("location_name = $%d", update.Location.Name)
		add("location_address = $%d", update.Location.Address)
		if update.Location.Coordinates != nil {
			add("location_lat = $%d", update.Location.Coordinates.Lat)
			add("location_lng = $%d", update.Location.Coordinates.Lng)
		} else {
			sets = append(sets, "location_lat = NULL", "location_lng = NULL")
		}
	}
	if update.AttendanceCap != nil {
		add("attendance_cap = $%d", *update.AttendanceCap)
	}
	if update.Status != nil {
		add("status = $%d", *update.Status)
	}
	if update.Publish != nil {
		data, err := json.Marshal(update.Publish)
		if err != nil {
			return nil, fmt.Errorf("failed to encode publish config: %w", err)
		}
		add("publish_config = $%d", data)
	}

	query := fmt.Sprintf(`
		UPDATE events
		SET %s
		WHERE event_id = $1
		RETURNING %s
	`, strings.Join(sets, ", "), eventColumns)

	event, err := scanEvent(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	return event, nil
}

// ListEventsByStatus retrieves all events in the given lifecycle state,
// ordered by start time
func (d *DB) ListEventsByStatus(ctx context.Context, status db.EventStatus) ([]db.Event, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE status = $1
		ORDER BY start_time
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by status: %w", err)
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
