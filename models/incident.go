package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IncidentStatuses is the ordered set of valid incident statuses. The order
// matters: dashboards sort unresolved incidents by this progression.
var IncidentStatuses = []string{
	"Dispatched",
	"Responding",
	"On Scene",
	"Transporting",
	"Arrived",
	"Resolved",
}

// StatusResolved is the terminal incident status. A mobile unit assigned to an
// incident counts as busy until the incident reaches this status.
const StatusResolved = "Resolved"

// IncidentPriorities is the set of valid incident priorities
var IncidentPriorities = []string{"low", "medium", "high", "critical"}

// Incident holds the structure for the incident collection in mongo
type Incident struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id"`
	IncidentNumber string             `json:"incidentNumber" bson:"incidentNumber"`
	EventID        string             `json:"eventID" bson:"eventID"`
	ReportingParty string             `json:"reportingParty" bson:"reportingParty"`
	PartyOfConcern string             `json:"partyOfConcern" bson:"partyOfConcern"`
	Location       string             `json:"location" bson:"location"`
	MobileUnit     string             `json:"mobileUnit" bson:"mobileUnit"` // Deprecated, use MobileUnits
	MobileUnits    []string           `json:"mobileUnits" bson:"mobileUnits"`
	IncidentType   string             `json:"incidentType" bson:"incidentType"`
	ReportedVia    string             `json:"reportedVia" bson:"reportedVia"`
	Priority       string             `json:"priority" bson:"priority"`
	Description    string             `json:"description" bson:"description"`
	Status         string             `json:"status" bson:"status"`
	Notes          []IncidentNote     `json:"notes" bson:"notes"`
	ActivityLog    []ActivityLogEntry `json:"activityLog" bson:"activityLog"`
	CreatedBy      string             `json:"createdBy" bson:"createdBy"`
	CreatedByEmail string             `json:"createdByEmail" bson:"createdByEmail"`
	CreatedAt      interface{}        `json:"createdAt" bson:"createdAt"`
	UpdatedAt      interface{}        `json:"updatedAt" bson:"updatedAt"`
	// StaleFlaggedAt marks the last stale-sweep flag; an edit that moves
	// updatedAt past it re-arms the sweep
	StaleFlaggedAt interface{} `json:"staleFlaggedAt,omitempty" bson:"staleFlaggedAt,omitempty"`
}

// IncidentNote holds the structure for the notes associated with an incident.
// Notes are append-only: entries are never edited or removed once written.
type IncidentNote struct {
	Text           string      `json:"text" bson:"text"`
	CreatedBy      string      `json:"createdBy" bson:"createdBy"`
	CreatedByEmail string      `json:"createdByEmail" bson:"createdByEmail"`
	CreatedAt      interface{} `json:"createdAt" bson:"createdAt"`
}

// ActivityLogEntry records a single tracked-field change on an incident.
// The activity log is append-only alongside the notes.
type ActivityLogEntry struct {
	Field          string      `json:"field" bson:"field"`
	From           string      `json:"from" bson:"from"`
	To             string      `json:"to" bson:"to"`
	ChangedBy      string      `json:"changedBy" bson:"changedBy"`
	ChangedByEmail string      `json:"changedByEmail" bson:"changedByEmail"`
	ChangedAt      interface{} `json:"changedAt" bson:"changedAt"`
}

// IncidentUpdate is the request body accepted when editing an incident. It
// carries exactly the tracked fields; incidentNumber, eventID and the
// append-only arrays cannot be written through an edit.
type IncidentUpdate struct {
	ReportingParty string   `json:"reportingParty"`
	PartyOfConcern string   `json:"partyOfConcern"`
	Location       string   `json:"location"`
	MobileUnits    []string `json:"mobileUnits"`
	IncidentType   string   `json:"incidentType"`
	ReportedVia    string   `json:"reportedVia"`
	Priority       string   `json:"priority"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
}

// IncidentCreate is the request body accepted when opening a new incident
type IncidentCreate struct {
	EventID string `json:"eventID"`
	IncidentUpdate
}

// ValidIncidentStatus reports whether s is one of the fixed status values
func ValidIncidentStatus(s string) bool {
	for _, v := range IncidentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ValidIncidentPriority reports whether p is one of the fixed priority values
func ValidIncidentPriority(p string) bool {
	for _, v := range IncidentPriorities {
		if v == p {
			return true
		}
	}
	return false
}
