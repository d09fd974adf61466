// Package metrics derives volunteer metric snapshots from RSVP history.
// The history is the source of truth; both the cascade manager and the data
// recovery service go through this package so the two can never disagree on
// how counters are computed.
package metrics

import "github.com/jakechorley/community-events/pkg/db"

// Compute derives the authoritative metrics snapshot from a volunteer's full
// RSVP history. First/last event dates come from the earliest and latest
// RSVP creation timestamps and are left empty when the history is empty.
func Compute(history []db.RSVP) db.VolunteerMetrics {
	m := db.VolunteerMetrics{TotalRSVPs: len(history)}

	for _, r := range history {
		switch r.Status {
		case db.RSVPCancelled:
			m.TotalCancellations++
		case db.RSVPNoShow:
			m.TotalNoShows++
		case db.RSVPAttended:
			m.TotalAttended++
		}

		// RFC 3339 timestamps in UTC compare correctly as strings
		if r.CreatedAt == "" {
			continue
		}
		if m.FirstEventDate == "" || r.CreatedAt < m.FirstEventDate {
			m.FirstEventDate = r.CreatedAt
		}
		if m.LastEventDate == "" || r.CreatedAt > m.LastEventDate {
			m.LastEventDate = r.CreatedAt
		}
	}

	return m
}

// Delta returns the signed counter adjustment for an RSVP status transition:
// the old status's counter is decremented and the new status's counter is
// incremented. Transitions involving "active" touch only one counter, since
// active RSVPs have no counter of their own.
func Delta(oldStatus, newStatus db.RSVPStatus) db.MetricsDelta {
	var d db.MetricsDelta
	if oldStatus == newStatus {
		return d
	}

	switch oldStatus {
	case db.RSVPCancelled:
		d.TotalCancellations--
	case db.RSVPNoShow:
		d.TotalNoShows--
	case db.RSVPAttended:
		d.TotalAttended--
	}

	switch newStatus {
	case db.RSVPCancelled:
		d.TotalCancellations++
	case db.RSVPNoShow:
		d.TotalNoShows++
	case db.RSVPAttended:
		d.TotalAttended++
	}

	return d
}
