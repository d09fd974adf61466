// Package consistency compares stored entities against their dependent
// records and reports discrepancies. Findings are advisory: callers surface
// them as warnings and never block a write on them.
package consistency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jakechorley/community-events/pkg/core/metrics"
	"github.com/jakechorley/community-events/pkg/db"
)

// Finding is a single advisory consistency report
type Finding struct {
	Message         string   `json:"message"`
	AffectedRecords []string `json:"affected_records,omitempty"`
}

// CheckEventRSVPConsistency compares an event against its RSVP list. It flags
// an active RSVP count above the attendance cap and duplicate RSVPs for the
// same volunteer. The event may be a proposed (merged) state that has not
// been written yet.
func CheckEventRSVPConsistency(event *db.Event, rsvps []db.RSVP) []Finding {
	var findings []Finding

	if event.AttendanceCap > 0 {
		var activeEmails []string
		for _, r := range rsvps {
			if r.Status == db.RSVPActive {
				activeEmails = append(activeEmails, r.Email)
			}
		}
		if len(activeEmails) > event.AttendanceCap {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("event has %d active RSVPs but attendance cap is %d",
					len(activeEmails), event.AttendanceCap),
				AffectedRecords: activeEmails,
			})
		}
	}

	seen := make(map[string]int)
	for _, r := range rsvps {
		seen[r.Email]++
	}
	var duplicates []string
	for email, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, email)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		findings = append(findings, Finding{
			Message:         fmt.Sprintf("duplicate RSVPs found for: %s", strings.Join(duplicates, ", ")),
			AffectedRecords: duplicates,
		})
	}

	return findings
}

// CheckVolunteerMetricsConsistency compares a volunteer's stored metrics
// snapshot against counts derived from the RSVP history. Each counter is
// checked independently so every drifted counter gets its own finding.
func CheckVolunteerMetricsConsistency(volunteer *db.Volunteer, history []db.RSVP) []Finding {
	derived := metrics.Compute(history)
	stored := volunteer.Metrics

	counters := []struct {
		name           string
		stored, actual int
	}{
		{"total_rsvps", stored.TotalRSVPs, derived.TotalRSVPs},
		{"total_cancellations", stored.TotalCancellations, derived.TotalCancellations},
		{"total_no_shows", stored.TotalNoShows, derived.TotalNoShows},
		{"total_attended", stored.TotalAttended, derived.TotalAttended},
	}

	var findings []Finding
	for _, c := range counters {
		if c.stored != c.actual {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("volunteer %s: %s shows %d but actual count is %d",
					volunteer.Email, c.name, c.stored, c.actual),
				AffectedRecords: []string{volunteer.Email},
			})
		}
	}

	return findings
}
