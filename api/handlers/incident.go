package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/totemops/totem-api/api"
	"github.com/totemops/totem-api/api/handlers/audit"
	"github.com/totemops/totem-api/api/handlers/numbering"
	"github.com/totemops/totem-api/config"
	"github.com/totemops/totem-api/databases"
	"github.com/totemops/totem-api/models"
)

// Incident exported for testing purposes
type Incident struct {
	DB      databases.IncidentDatabase
	Hub     *IncidentHub
	Numbers numbering.Generator
}

// NewIncident wires the incident handlers to the db and the live hub
func NewIncident(db databases.IncidentDatabase, hub *IncidentHub) Incident {
	return Incident{
		DB:      db,
		Hub:     hub,
		Numbers: numbering.Generator{DB: db},
	}
}

// CreateIncidentHandler opens a new incident. The incident number is
// generated before the insert; a numbering failure aborts the request so we
// never persist an incident without a number.
func (c Incident) CreateIncidentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var req models.IncidentCreate
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if req.EventID == "" || req.Location == "" || req.IncidentType == "" || req.Priority == "" {
		config.ErrorStatus("eventID, location, incidentType and priority are required", http.StatusBadRequest, w, errors.New("missing required fields"))
		return
	}
	if !models.ValidIncidentPriority(req.Priority) {
		config.ErrorStatus("invalid priority", http.StatusBadRequest, w, errors.New("priority must be one of: "+strings.Join(models.IncidentPriorities, ", ")))
		return
	}
	if req.Status == "" {
		req.Status = models.IncidentStatuses[0]
	}
	if !models.ValidIncidentStatus(req.Status) {
		config.ErrorStatus("invalid status", http.StatusBadRequest, w, errors.New("status must be one of: "+strings.Join(models.IncidentStatuses, ", ")))
		return
	}

	number, err := c.Numbers.Next(ctx)
	if err != nil {
		config.ErrorStatus("failed to generate incident number", http.StatusInternalServerError, w, err)
		return
	}

	actor := api.ActorFromRequest(r)
	now := primitive.NewDateTimeFromTime(time.Now())
	units := req.MobileUnits
	if units == nil {
		units = []string{}
	}

	incident := models.Incident{
		ID:             primitive.NewObjectID(),
		IncidentNumber: number,
		EventID:        req.EventID,
		ReportingParty: req.ReportingParty,
		PartyOfConcern: req.PartyOfConcern,
		Location:       req.Location,
		MobileUnits:    units,
		IncidentType:   req.IncidentType,
		ReportedVia:    req.ReportedVia,
		Priority:       req.Priority,
		Description:    req.Description,
		Status:         req.Status,
		Notes:          []models.IncidentNote{},
		ActivityLog:    []models.ActivityLogEntry{},
		CreatedBy:      actor.ID,
		CreatedByEmail: actor.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = c.DB.InsertOne(ctx, incident)
	if err != nil {
		config.ErrorStatus("failed to insert incident", http.StatusInternalServerError, w, err)
		return
	}

	c.Hub.PublishIncidents(incident.EventID)

	b, err := json.Marshal(incident)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// IncidentHandler returns all incidents, paginated and newest first
func (c Incident) IncidentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	limit, page := getPage(r)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(limit * page)

	dbResp, err := c.DB.Find(ctx, bson.M{}, opts)
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that we return an array of incidents,
	// we need to return an empty array if there are no incidents
	if dbResp == nil {
		dbResp = []models.Incident{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// IncidentByIDHandler returns an incident given an incident id
func (c Incident) IncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]
	oid, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("incident id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to get incident by id", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// IncidentsByEventIDHandler returns the incidents of one event, newest first.
// The status query param narrows the list: "active" keeps everything not yet
// Resolved, "resolved" keeps only Resolved, a literal status keeps that
// status, and "all" or absence keeps everything.
func (c Incident) IncidentsByEventIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	filter := bson.M{"eventID": eventID}

	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
	case "active":
		filter["status"] = bson.M{"$ne": models.StatusResolved}
	case "resolved":
		filter["status"] = models.StatusResolved
	default:
		if !models.ValidIncidentStatus(status) {
			config.ErrorStatus("invalid status filter", http.StatusBadRequest, w, errors.New("unknown status: "+status))
			return
		}
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	dbResp, err := c.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get incidents by event id", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.Incident{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateIncidentByIDHandler saves an edit to an incident. The tracked field
// values and the activity log entries they produce land in one document
// update, so a reader never sees changed fields without their log entries.
// An edit that changes nothing still updates the fields but pushes no
// activity log entries.
func (c Incident) UpdateIncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]
	oid, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("incident id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	var req models.IncidentUpdate
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidIncidentStatus(req.Status) {
		config.ErrorStatus("invalid status", http.StatusBadRequest, w, errors.New("status must be one of: "+strings.Join(models.IncidentStatuses, ", ")))
		return
	}
	if !models.ValidIncidentPriority(req.Priority) {
		config.ErrorStatus("invalid priority", http.StatusBadRequest, w, errors.New("priority must be one of: "+strings.Join(models.IncidentPriorities, ", ")))
		return
	}

	previous, err := c.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("incident not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get incident by id", http.StatusInternalServerError, w, err)
		return
	}

	actor := api.ActorFromRequest(r)
	now := time.Now()
	entries := audit.Diff(
		audit.SnapshotOf(*previous),
		audit.SnapshotOfUpdate(req),
		audit.Actor{ID: actor.ID, Email: actor.Email},
		now,
	)

	units := req.MobileUnits
	if units == nil {
		units = []string{}
	}

	update := bson.M{
		"$set": bson.M{
			"reportingParty": req.ReportingParty,
			"partyOfConcern": req.PartyOfConcern,
			"location":       req.Location,
			"mobileUnits":    units,
			// retire the legacy singular field once the set form is written
			"mobileUnit":   "",
			"incidentType": req.IncidentType,
			"reportedVia":  req.ReportedVia,
			"priority":     req.Priority,
			"description":  req.Description,
			"status":       req.Status,
			"updatedAt":    primitive.NewDateTimeFromTime(now),
		},
	}
	if len(entries) > 0 {
		update["$push"] = bson.M{"activityLog": bson.M{"$each": entries}}
	}

	updated, err := c.DB.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		config.ErrorStatus("failed to update incident", http.StatusInternalServerError, w, err)
		return
	}

	c.Hub.PublishIncidents(updated.EventID)

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AddIncidentNoteHandler appends one note to an incident. Notes are
// append-only; there is no route to edit or remove one.
func (c Incident) AddIncidentNoteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]
	oid, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("incident id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		config.ErrorStatus("note text is required", http.StatusBadRequest, w, errors.New("empty note"))
		return
	}

	incident, err := c.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("incident not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get incident by id", http.StatusInternalServerError, w, err)
		return
	}

	// records written before notes existed carry a null array; seed it so
	// the push below cannot fail. The filter only matches while the field
	// is still null, so a concurrent writer's notes are never overwritten;
	// losing that race surfaces as ErrNoDocuments and is fine.
	if incident.Notes == nil {
		_, err = c.DB.UpdateOne(ctx, bson.M{"_id": oid, "notes": nil}, bson.M{"$set": bson.M{"notes": []models.IncidentNote{}}})
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("failed to initialize notes", http.StatusInternalServerError, w, err)
			return
		}
	}

	actor := api.ActorFromRequest(r)
	note := models.IncidentNote{
		Text:           req.Text,
		CreatedBy:      actor.ID,
		CreatedByEmail: actor.Email,
		CreatedAt:      primitive.NewDateTimeFromTime(time.Now()),
	}

	updated, err := c.DB.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"notes": note},
		"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
	})
	if err != nil {
		config.ErrorStatus("failed to add note", http.StatusInternalServerError, w, err)
		return
	}

	c.Hub.PublishIncidents(updated.EventID)

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteIncidentByIDHandler deletes an incident given an incident id
func (c Incident) DeleteIncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]
	oid, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("incident id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	incident, err := c.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to get incident by id", http.StatusNotFound, w, err)
		return
	}

	err = c.DB.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to delete incident", http.StatusInternalServerError, w, err)
		return
	}

	c.Hub.PublishIncidents(incident.EventID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "incident deleted"}`))
}

// getPage pulls limit and page from the query params, defaulting to the
// first page of 10
func getPage(r *http.Request) (limit, page int64) {
	limit = 10
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64); err == nil && v > 0 {
		page = v
	}
	return limit, page
}
