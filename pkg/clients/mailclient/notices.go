package mailclient

import (
	"fmt"
	"strings"

	"github.com/jakechorley/community-events/pkg/db"
)

// SendEventChangeNotices emails each affected volunteer about changes to an
// event they hold an active RSVP for. Per-recipient failures are collected
// and returned so one bounce never blocks the rest of the batch.
func (c *Client) SendEventChangeNotices(event *db.Event, changedFields, recipients []string) []error {
	subject := fmt.Sprintf("Update to %s", event.Title)

	var lines []string
	for _, field := range changedFields {
		lines = append(lines, describeField(event, field))
	}

	body := fmt.Sprintf(
		"Hello,\n\nAn event you are registered for has been updated:\n\n%s\n\nIf the new arrangements no longer work for you, you can cancel your RSVP at any time.\n\nThank you,\nThe events team",
		strings.Join(lines, "\n"))

	return c.sendBatch(recipients, subject, body)
}

// SendEventCancellationNotices emails each affected volunteer that an event
// has been cancelled and their RSVP released
func (c *Client) SendEventCancellationNotices(event *db.Event, recipients []string) []error {
	subject := fmt.Sprintf("Cancelled: %s", event.Title)
	body := fmt.Sprintf(
		"Hello,\n\nWe are sorry to let you know that %s on %s has been cancelled. Your RSVP has been released and no further action is needed.\n\nThank you,\nThe events team",
		event.Title, event.StartTime)

	return c.sendBatch(recipients, subject, body)
}

func (c *Client) sendBatch(recipients []string, subject, body string) []error {
	var errs []error
	for _, to := range recipients {
		if err := c.SendEmail(to, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("failed to notify %s: %w", to, err))
		}
	}
	return errs
}

func describeField(event *db.Event, field string) string {
	switch field {
	case "start_time":
		return fmt.Sprintf("- The start time is now %s", event.StartTime)
	case "end_time":
		return fmt.Sprintf("- The end time is now %s", event.EndTime)
	case "location":
		return fmt.Sprintf("- The venue is now %s, %s", event.Location.Name, event.Location.Address)
	case "attendance_cap":
		return fmt.Sprintf("- The attendance cap is now %d", event.AttendanceCap)
	case "status":
		return fmt.Sprintf("- The event status is now %s", event.Status)
	default:
		return fmt.Sprintf("- %s has changed", field)
	}
}
