package db

// Partial update records. A nil field means "leave unchanged"; stores merge
// only the fields that are set. Representing updates as typed sparse records
// keeps the set of updatable fields fixed at compile time instead of being a
// free-form string-keyed map.

// EventUpdate is a sparse set of event field changes
type EventUpdate struct {
	Title         *string        `json:"title,omitempty"`
	Description   *string        `json:"description,omitempty"`
	StartTime     *string        `json:"start_time,omitempty"`
	EndTime       *string        `json:"end_time,omitempty"`
	Location      *Location      `json:"location,omitempty"`
	AttendanceCap *int           `json:"attendance_cap,omitempty"`
	Status        *EventStatus   `json:"status,omitempty"`
	Publish       *PublishConfig `json:"publish_config,omitempty"`
}

// IsZero reports whether no fields are set
func (u EventUpdate) IsZero() bool {
	return u.Title == nil && u.Description == nil && u.StartTime == nil &&
		u.EndTime == nil && u.Location == nil && u.AttendanceCap == nil &&
		u.Status == nil && u.Publish == nil
}

// ApplyTo merges the set fields of the update onto an event record
func (u EventUpdate) ApplyTo(e *Event) {
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.StartTime != nil {
		e.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		e.EndTime = *u.EndTime
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.AttendanceCap != nil {
		e.AttendanceCap = *u.AttendanceCap
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.Publish != nil {
		e.Publish = u.Publish
	}
}

// VolunteerUpdate is a sparse set of volunteer field changes.
// Email is included only so attempted identifier changes can be detected and
// rejected; stores never write it.
type VolunteerUpdate struct {
	Email               *string                   `json:"email,omitempty"`
	FirstName           *string                   `json:"first_name,omitempty"`
	LastName            *string                   `json:"last_name,omitempty"`
	Phone               *string                   `json:"phone,omitempty"`
	EmergencyContact    *string                   `json:"emergency_contact,omitempty"`
	DietaryRestrictions *string                   `json:"dietary_restrictions,omitempty"`
	VolunteerExperience *string                   `json:"volunteer_experience,omitempty"`
	HowDidYouHear       *string                   `json:"how_did_you_hear,omitempty"`
	Preferences         *CommunicationPreferences `json:"communication_preferences,omitempty"`

	// ValidateMetrics asks the cascade manager to recompute the metrics
	// snapshot from RSVP history after the update. Never persisted.
	ValidateMetrics bool `json:"-"`
}

// ApplyTo merges the set fields of the update onto a volunteer record.
// The email identifier is never changed.
func (u VolunteerUpdate) ApplyTo(v *Volunteer) {
	if u.FirstName != nil {
		v.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		v.LastName = *u.LastName
	}
	if u.Phone != nil {
		v.Phone = *u.Phone
	}
	if u.EmergencyContact != nil {
		v.EmergencyContact = *u.EmergencyContact
	}
	if u.DietaryRestrictions != nil {
		v.DietaryRestrictions = *u.DietaryRestrictions
	}
	if u.VolunteerExperience != nil {
		v.VolunteerExperience = *u.VolunteerExperience
	}
	if u.HowDidYouHear != nil {
		v.HowDidYouHear = *u.HowDidYouHear
	}
	if u.Preferences != nil {
		v.Preferences = *u.Preferences
	}
}

// RSVPUpdate is a sparse set of RSVP field changes.
// EventID and Email exist for creation-time validation; stores never write
// them for updates.
type RSVPUpdate struct {
	EventID            *string     `json:"event_id,omitempty"`
	Email              *string     `json:"email,omitempty"`
	Status             *RSVPStatus `json:"status,omitempty"`
	AdditionalComments *string     `json:"additional_comments,omitempty"`
	HoursBeforeEvent   *float64    `json:"hours_before_event,omitempty"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *string     `json:"cancelled_at,omitempty"`
}

// ApplyTo merges the set fields of the update onto an RSVP record.
// The (event_id, email) key is never changed.
func (u RSVPUpdate) ApplyTo(r *RSVP) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.AdditionalComments != nil {
		r.AdditionalComments = *u.AdditionalComments
	}
	if u.HoursBeforeEvent != nil {
		r.HoursBeforeEvent = u.HoursBeforeEvent
	}
	if u.CancellationReason != nil {
		r.CancellationReason = *u.CancellationReason
	}
	if u.CancelledAt != nil {
		r.CancelledAt = *u.CancelledAt
	}
}

// MetricsDelta is a signed per-counter adjustment applied atomically by the
// store, so concurrent adjustments for the same volunteer commute
type MetricsDelta struct {
	TotalRSVPs         int
	TotalCancellations int
	TotalNoShows       int
	TotalAttended      int

	// EventDate, when set, widens the first/last event date window to
	// include this timestamp in the same statement as the counter adds.
	EventDate string
}

// IsZero reports whether the delta changes nothing
func (d MetricsDelta) IsZero() bool {
	return d.TotalRSVPs == 0 && d.TotalCancellations == 0 &&
		d.TotalNoShows == 0 && d.TotalAttended == 0 && d.EventDate == ""
}
