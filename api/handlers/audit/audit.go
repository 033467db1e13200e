// Package audit computes the field-level change entries appended to an
// incident's activity log on every edit. Diff is a pure function so the audit
// behavior is directly unit-testable.
package audit

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/totemops/totem-api/models"
)

// TrackedFields is the fixed list of audited incident fields, in the order
// entries are emitted. Fields outside this list never produce log entries.
var TrackedFields = []string{
	"reportingParty",
	"partyOfConcern",
	"location",
	"mobileUnits",
	"incidentType",
	"reportedVia",
	"priority",
	"description",
	"status",
}

// Actor identifies who made a change
type Actor struct {
	ID    string
	Email string
}

// Snapshot maps tracked field names to their canonical string form. Lists
// join with ", "; absent values are the empty string.
type Snapshot map[string]string

// SnapshotOf canonicalizes an incident's tracked fields. The deprecated
// singular mobileUnit field stands in for mobileUnits on records written
// before the set form existed.
func SnapshotOf(inc models.Incident) Snapshot {
	units := canonicalUnits(inc.MobileUnits)
	if units == "" {
		units = inc.MobileUnit
	}
	return Snapshot{
		"reportingParty": inc.ReportingParty,
		"partyOfConcern": inc.PartyOfConcern,
		"location":       inc.Location,
		"mobileUnits":    units,
		"incidentType":   inc.IncidentType,
		"reportedVia":    inc.ReportedVia,
		"priority":       inc.Priority,
		"description":    inc.Description,
		"status":         inc.Status,
	}
}

// SnapshotOfUpdate canonicalizes a proposed edit
func SnapshotOfUpdate(u models.IncidentUpdate) Snapshot {
	return Snapshot{
		"reportingParty": u.ReportingParty,
		"partyOfConcern": u.PartyOfConcern,
		"location":       u.Location,
		"mobileUnits":    canonicalUnits(u.MobileUnits),
		"incidentType":   u.IncidentType,
		"reportedVia":    u.ReportedVia,
		"priority":       u.Priority,
		"description":    u.Description,
		"status":         u.Status,
	}
}

// Diff returns one activity log entry per tracked field whose canonical value
// changed between the two snapshots, in TrackedFields order. An edit that
// changes nothing returns an empty slice and must not be persisted as a push.
func Diff(previous, proposed Snapshot, actor Actor, at time.Time) []models.ActivityLogEntry {
	var entries []models.ActivityLogEntry
	changedAt := primitive.NewDateTimeFromTime(at)
	for _, field := range TrackedFields {
		oldValue := previous[field]
		newValue := proposed[field]
		if oldValue == newValue {
			continue
		}
		entries = append(entries, models.ActivityLogEntry{
			Field:          field,
			From:           oldValue,
			To:             newValue,
			ChangedBy:      actor.ID,
			ChangedByEmail: actor.Email,
			ChangedAt:      changedAt,
		})
	}
	return entries
}

func canonicalUnits(units []string) string {
	return strings.Join(units, ", ")
}
