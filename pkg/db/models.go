package db

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
	EventArchived  EventStatus = "archived"
)

// EventStatuses lists every valid event status
var EventStatuses = []EventStatus{EventActive, EventCancelled, EventCompleted, EventArchived}

// RSVPStatus is the state of a single RSVP
type RSVPStatus string

const (
	RSVPActive    RSVPStatus = "active"
	RSVPCancelled RSVPStatus = "cancelled"
	RSVPNoShow    RSVPStatus = "no_show"
	RSVPAttended  RSVPStatus = "attended"
)

// RSVPStatuses lists every valid RSVP status
var RSVPStatuses = []RSVPStatus{RSVPActive, RSVPCancelled, RSVPNoShow, RSVPAttended}

// Coordinates is an optional geocoordinate pair for an event location
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location describes where an event takes place
type Location struct {
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// PublishConfig holds publishing metadata used by the static site generator
type PublishConfig struct {
	Tags             []string `json:"tags,omitempty"`
	PreheaderIsLight *bool    `json:"preheader_is_light,omitempty"`
}

// Event represents a community event record.
// Timestamps are stored as RFC 3339 strings; conversion to native types
// happens at the store boundary.
type Event struct {
	EventID       string         `json:"event_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Location      Location       `json:"location"`
	AttendanceCap int            `json:"attendance_cap"`
	Status        EventStatus    `json:"status"`
	Publish       *PublishConfig `json:"publish_config,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// VolunteerMetrics is the denormalized per-volunteer counter snapshot.
// The volunteer's RSVP history is the source of truth; these counters are a
// cache maintained by the cascade and recovery code only.
type VolunteerMetrics struct {
	TotalRSVPs         int    `json:"total_rsvps"`
	TotalCancellations int    `json:"total_cancellations"`
	TotalNoShows       int    `json:"total_no_shows"`
	TotalAttended      int    `json:"total_attended"`
	FirstEventDate     string `json:"first_event_date,omitempty"`
	LastEventDate      string `json:"last_event_date,omitempty"`
}

// CommunicationPreferences holds a volunteer's notification opt-ins
type CommunicationPreferences struct {
	EmailNotifications bool `json:"email_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
}

// Volunteer represents a volunteer profile, keyed by normalized email
type Volunteer struct {
	Email               string                   `json:"email"`
	FirstName           string                   `json:"first_name"`
	LastName            string                   `json:"last_name"`
	Phone               string                   `json:"phone,omitempty"`
	EmergencyContact    string                   `json:"emergency_contact,omitempty"`
	DietaryRestrictions string                   `json:"dietary_restrictions,omitempty"`
	VolunteerExperience string                   `json:"volunteer_experience,omitempty"`
	HowDidYouHear       string                   `json:"how_did_you_hear,omitempty"`
	Preferences         CommunicationPreferences `json:"communication_preferences"`
	Metrics             VolunteerMetrics         `json:"volunteer_metrics"`
	CreatedAt           string                   `json:"created_at"`
	UpdatedAt           string                   `json:"updated_at"`
}

// RSVP represents a volunteer's registration for an event, keyed by
// (event_id, email)
type RSVP struct {
	EventID            string     `json:"event_id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Status             RSVPStatus `json:"status"`
	AdditionalComments string     `json:"additional_comments,omitempty"`
	HoursBeforeEvent   *float64   `json:"hours_before_event,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          string     `json:"created_at"`
	UpdatedAt          string     `json:"updated_at"`
	CancelledAt        string     `json:"cancelled_at,omitempty"`
}
