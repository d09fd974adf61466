// Package validation provides pure field validation for Event, Volunteer and
// RSVP records. Validators never touch the database and never fail hard on
// expected bad input; they return an ordered list of field errors the caller
// can report in one response.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jakechorley/community-events/pkg/db"
)

// Machine-readable validation error codes
const (
	CodeRequiredField = "REQUIRED_FIELD"
	CodeEmptyValue    = "EMPTY_VALUE"
	CodeMinLength     = "MIN_LENGTH"
	CodeMaxLength     = "MAX_LENGTH"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeInvalidValue  = "INVALID_VALUE"
	CodeInvalidRange  = "INVALID_RANGE"
	CodeMinValue      = "MIN_VALUE"
	CodeMaxValue      = "MAX_VALUE"
	CodePastDate      = "PAST_DATE"
	CodeMaxDuration   = "MAX_DURATION"
)

// FieldError describes a single validation failure. Field is a dotted path
// into the record (e.g. "location.coordinates.lat").
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

const (
	maxEventDuration = 12 * time.Hour
	pastStartBuffer  = time.Hour
	maxAttendanceCap = 1000
	maxEmailLength   = 254 // RFC 5321
)

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	digitPattern = regexp.MustCompile(`\D`)
)

// ParseTimestamp parses an ISO 8601 instant, accepting both a trailing "Z"
// and explicit offset notation.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime format: %w", err)
	}
	return t, nil
}

// NormalizeEmail lowercases and trims an email address for use as a key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEvent validates a sparse event record. When isUpdate is false every
// required field must be present; when true only the supplied fields are
// checked.
func ValidateEvent(update db.EventUpdate, isUpdate bool) []FieldError {
	var errs []FieldError

	if !isUpdate {
		if update.Title == nil || strings.TrimSpace(*update.Title) == "" {
			errs = append(errs, FieldError{"title", "title is required", CodeRequiredField})
		}
		if update.Description == nil || strings.TrimSpace(*update.Description) == "" {
			errs = append(errs, FieldError{"description", "description is required", CodeRequiredField})
		}
		if update.StartTime == nil || *update.StartTime == "" {
			errs = append(errs, FieldError{"start_time", "start_time is required", CodeRequiredField})
		}
		if update.EndTime == nil || *update.EndTime == "" {
			errs = append(errs, FieldError{"end_time", "end_time is required", CodeRequiredField})
		}
		if update.Location == nil {
			errs = append(errs, FieldError{"location", "location is required", CodeRequiredField})
		}
	}

	if update.Title != nil {
		title := *update.Title
		if len(strings.TrimSpace(title)) < 3 {
			errs = append(errs, FieldError{"title", "title must be at least 3 characters", CodeMinLength})
		} else if len(title) > 200 {
			errs = append(errs, FieldError{"title", "title must be less than 200 characters", CodeMaxLength})
		}
	}

	if update.Description != nil {
		description := *update.Description
		if len(strings.TrimSpace(description)) < 10 {
			errs = append(errs, FieldError{"description", "description must be at least 10 characters", CodeMinLength})
		} else if len(description) > 2000 {
			errs = append(errs, FieldError{"description", "description must be less than 2000 characters", CodeMaxLength})
		}
	}

	var start, end time.Time
	startOK, endOK := false, false
	if update.StartTime != nil && *update.StartTime != "" {
		t, err := ParseTimestamp(*update.StartTime)
		if err != nil {
			errs = append(errs, FieldError{"start_time", err.Error(), CodeInvalidFormat})
		} else {
			start, startOK = t, true
			if t.Before(time.Now().UTC().Add(-pastStartBuffer)) {
				errs = append(errs, FieldError{"start_time", "start time cannot be in the past", CodePastDate})
			}
		}
	}
	if update.EndTime != nil && *update.EndTime != "" {
		t, err := ParseTimestamp(*update.EndTime)
		if err != nil {
			errs = append(errs, FieldError{"end_time", err.Error(), CodeInvalidFormat})
		} else {
			end, endOK = t, true
		}
	}

	// Relationship checks only run when both datetimes parsed; a malformed
	// datetime is already reported above and must not be reported twice.
	if startOK && endOK {
		if !end.After(start) {
			errs = append(errs, FieldError{"end_time", "end time must be after start time", CodeInvalidRange})
		} else if end.Sub(start) > maxEventDuration {
			errs = append(errs, FieldError{"end_time", "event duration cannot exceed 12 hours", CodeMaxDuration})
		}
	}

	if update.Location != nil {
		errs = append(errs, validateLocation(*update.Location)...)
	}

	if update.AttendanceCap != nil {
		cap := *update.AttendanceCap
		if cap < 1 {
			errs = append(errs, FieldError{"attendance_cap", "attendance cap must be at least 1", CodeMinValue})
		} else if cap > maxAttendanceCap {
			errs = append(errs, FieldError{"attendance_cap", "attendance cap cannot exceed 1000", CodeMaxValue})
		}
	}

	if update.Status != nil && !validEventStatus(*update.Status) {
		errs = append(errs, FieldError{"status", statusMessage(eventStatusNames()), CodeInvalidValue})
	}

	if update.Publish != nil {
		for i, tag := range update.Publish.Tags {
			if strings.TrimSpace(tag) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("publish_config.tags[%d]", i),
					Message: fmt.Sprintf("tag %d cannot be empty", i),
					Code:    CodeEmptyValue,
				})
			}
		}
	}

	return errs
}

func validateLocation(loc db.Location) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(loc.Name) == "" {
		errs = append(errs, FieldError{"location.name", "location name is required", CodeRequiredField})
	} else if len(strings.TrimSpace(loc.Name)) < 3 {
		errs = append(errs, FieldError{"location.name", "location name must be at least 3 characters", CodeMinLength})
	}

	if strings.TrimSpace(loc.Address) == "" {
		errs = append(errs, FieldError{"location.address", "location address is required", CodeRequiredField})
	} else if len(strings.TrimSpace(loc.Address)) < 10 {
		errs = append(errs, FieldError{"location.address", "location address must be at least 10 characters", CodeMinLength})
	}

	if loc.Coordinates != nil {
		if loc.Coordinates.Lat < -90 || loc.Coordinates.Lat > 90 {
			errs = append(errs, FieldError{"location.coordinates.lat", "latitude must be between -90 and 90", CodeInvalidRange})
		}
		if loc.Coordinates.Lng < -180 || loc.Coordinates.Lng > 180 {
			errs = append(errs, FieldError{"location.coordinates.lng", "longitude must be between -180 and 180", CodeInvalidRange})
		}
	}

	return errs
}

// ValidateVolunteer validates a sparse volunteer record
func ValidateVolunteer(update db.VolunteerUpdate, isUpdate bool) []FieldError {
	var errs []FieldError

	if !isUpdate {
		if update.FirstName == nil || strings.TrimSpace(*update.FirstName) == "" {
			errs = append(errs, FieldError{"first_name", "first_name is required", CodeRequiredField})
		}
		if update.LastName == nil || strings.TrimSpace(*update.LastName) == "" {
			errs = append(errs, FieldError{"last_name", "last_name is required", CodeRequiredField})
		}
		if update.Email == nil || strings.TrimSpace(*update.Email) == "" {
			errs = append(errs, FieldError{"email", "email is required", CodeRequiredField})
		}
	}

	if update.FirstName != nil {
		errs = append(errs, validateName("first_name", *update.FirstName)...)
	}
	if update.LastName != nil {
		errs = append(errs, validateName("last_name", *update.LastName)...)
	}

	if update.Email != nil {
		errs = append(errs, ValidateEmail(*update.Email)...)
	}

	if update.Phone != nil && *update.Phone != "" {
		digits := digitPattern.ReplaceAllString(*update.Phone, "")
		if len(digits) < 10 {
			errs = append(errs, FieldError{"phone", "phone number must have at least 10 digits", CodeMinLength})
		} else if len(digits) > 15 {
			errs = append(errs, FieldError{"phone", "phone number must have at most 15 digits", CodeMaxLength})
		}
	}

	freeText := []struct {
		field string
		value *string
	}{
		{"emergency_contact", update.EmergencyContact},
		{"dietary_restrictions", update.DietaryRestrictions},
		{"volunteer_experience", update.VolunteerExperience},
		{"how_did_you_hear", update.HowDidYouHear},
	}
	for _, f := range freeText {
		if f.value != nil && len(*f.value) > 500 {
			errs = append(errs, FieldError{f.field, f.field + " must be less than 500 characters", CodeMaxLength})
		}
	}

	return errs
}

func validateName(field, name string) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(name) == "" {
		errs = append(errs, FieldError{field, field + " cannot be empty", CodeEmptyValue})
	} else if len(name) > 50 {
		errs = append(errs, FieldError{field, field + " must be less than 50 characters", CodeMaxLength})
	} else if !namePattern.MatchString(name) {
		errs = append(errs, FieldError{field, field + " contains invalid characters", CodeInvalidFormat})
	}
	return errs
}

// ValidateEmail validates an email address against a basic pattern and the
// RFC 5321 length limit. The value is normalized before checking.
func ValidateEmail(email string) []FieldError {
	normalized := NormalizeEmail(email)

	if normalized == "" {
		return []FieldError{{"email", "email cannot be empty", CodeEmptyValue}}
	}

	var errs []FieldError
	if !emailPattern.MatchString(normalized) {
		errs = append(errs, FieldError{"email", "invalid email format", CodeInvalidFormat})
	}
	if len(normalized) > maxEmailLength {
		errs = append(errs, FieldError{"email", "email address too long", CodeMaxLength})
	}
	return errs
}

// ValidateRSVP validates a sparse RSVP record
func ValidateRSVP(update db.RSVPUpdate, isUpdate bool) []FieldError {
	var errs []FieldError

	if !isUpdate {
		if update.EventID == nil || strings.TrimSpace(*update.EventID) == "" {
			errs = append(errs, FieldError{"event_id", "event_id is required", CodeRequiredField})
		}
		if update.Email == nil || strings.TrimSpace(*update.Email) == "" {
			errs = append(errs, FieldError{"email", "email is required", CodeRequiredField})
		}
	}

	if update.EventID != nil && isUpdate && strings.TrimSpace(*update.EventID) == "" {
		errs = append(errs, FieldError{"event_id", "event_id cannot be empty", CodeEmptyValue})
	}

	if update.Email != nil && *update.Email != "" {
		errs = append(errs, ValidateEmail(*update.Email)...)
	}

	if update.Status != nil && !validRSVPStatus(*update.Status) {
		errs = append(errs, FieldError{"status", statusMessage(rsvpStatusNames()), CodeInvalidValue})
	}

	if update.AdditionalComments != nil && len(*update.AdditionalComments) > 1000 {
		errs = append(errs, FieldError{"additional_comments", "additional_comments must be less than 1000 characters", CodeMaxLength})
	}

	if update.HoursBeforeEvent != nil && *update.HoursBeforeEvent < 0 {
		errs = append(errs, FieldError{"hours_before_event", "hours_before_event cannot be negative", CodeInvalidValue})
	}

	return errs
}

func validEventStatus(s db.EventStatus) bool {
	for _, valid := range db.EventStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

func validRSVPStatus(s db.RSVPStatus) bool {
	for _, valid := range db.RSVPStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

func eventStatusNames() []string {
	names := make([]string, len(db.EventStatuses))
	for i, s := range db.EventStatuses {
		names[i] = string(s)
	}
	return names
}

func rsvpStatusNames() []string {
	names := make([]string, len(db.RSVPStatuses))
	for i, s := range db.RSVPStatuses {
		names[i] = string(s)
	}
	return names
}

func statusMessage(valid []string) string {
	return "status must be one of: " + strings.Join(valid, ", ")
}
