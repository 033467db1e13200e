package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/totemops/totem-api/api"
	"github.com/totemops/totem-api/config"
	"github.com/totemops/totem-api/databases"
	"github.com/totemops/totem-api/models"
)

// MobileUnit exported for testing purposes
type MobileUnit struct {
	DB  databases.MobileUnitDatabase
	IDB databases.IncidentDatabase
}

// CreateMobileUnitHandler registers a unit under an event. Unit names are
// unique within an event because incidents reference units by name.
func (m MobileUnit) CreateMobileUnitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]

	var req struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		config.ErrorStatus("unit name is required", http.StatusBadRequest, w, errors.New("empty name"))
		return
	}
	if req.Status == "" {
		req.Status = models.MobileUnitStatuses[0]
	}
	if !models.ValidMobileUnitStatus(req.Status) {
		config.ErrorStatus("invalid unit status", http.StatusBadRequest, w, errors.New("status must be one of: "+strings.Join(models.MobileUnitStatuses, ", ")))
		return
	}

	count, err := m.DB.CountDocuments(ctx, bson.M{"eventID": eventID, "name": req.Name})
	if err != nil {
		config.ErrorStatus("failed to check for existing unit", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("unit name already exists for this event", http.StatusConflict, w, errors.New("duplicate unit name"))
		return
	}

	unit := models.MobileUnit{
		ID:        primitive.NewObjectID(),
		EventID:   eventID,
		Name:      req.Name,
		Status:    req.Status,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	_, err = m.DB.InsertOne(ctx, unit)
	if err != nil {
		config.ErrorStatus("failed to insert unit", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(unit)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// MobileUnitsByEventIDHandler returns the units of one event, sorted by name
func (m MobileUnit) MobileUnitsByEventIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	dbResp, err := m.DB.Find(ctx, bson.M{"eventID": eventID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get units by event id", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.MobileUnit{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AvailableUnitsHandler returns the event's units that no unresolved incident
// currently references. The exclude_incident query param leaves out one
// incident's own assignments, so an edit form can offer the units the
// incident already holds.
func (m MobileUnit) AvailableUnitsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	excludeIncident := r.URL.Query().Get("exclude_incident")

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	units, err := m.DB.Find(ctx, bson.M{"eventID": eventID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get units by event id", http.StatusNotFound, w, err)
		return
	}

	unresolved, err := m.IDB.Find(ctx, bson.M{
		"eventID": eventID,
		"status":  bson.M{"$ne": models.StatusResolved},
	})
	if err != nil {
		config.ErrorStatus("failed to get unresolved incidents", http.StatusInternalServerError, w, err)
		return
	}

	available := AvailableUnits(units, unresolved, excludeIncident)

	b, err := json.Marshal(available)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AvailableUnits filters units down to those not named by any unresolved
// incident. Busy is derived, never stored: resolving an incident frees its
// units with no separate write. Incidents matching excludeIncidentID do not
// count toward busy.
func AvailableUnits(units []models.MobileUnit, unresolved []models.Incident, excludeIncidentID string) []models.MobileUnit {
	busy := make(map[string]bool)
	for _, inc := range unresolved {
		if excludeIncidentID != "" && inc.ID.Hex() == excludeIncidentID {
			continue
		}
		names := inc.MobileUnits
		if len(names) == 0 && inc.MobileUnit != "" {
			names = []string{inc.MobileUnit}
		}
		for _, name := range names {
			busy[name] = true
		}
	}

	available := []models.MobileUnit{}
	for _, unit := range units {
		if !busy[unit.Name] {
			available = append(available, unit)
		}
	}
	return available
}

// UpdateMobileUnitStatusHandler sets the admin-assigned status of a unit
func (m MobileUnit) UpdateMobileUnitStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	unitID := mux.Vars(r)["unit_id"]
	oid, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("unit id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidMobileUnitStatus(req.Status) {
		config.ErrorStatus("invalid unit status", http.StatusBadRequest, w, errors.New("status must be one of: "+strings.Join(models.MobileUnitStatuses, ", ")))
		return
	}

	_, err = m.DB.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": req.Status}})
	if err != nil {
		config.ErrorStatus("failed to update unit status", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "unit status updated"}`))
}

// DeleteMobileUnitByIDHandler deletes a unit given a unit id
func (m MobileUnit) DeleteMobileUnitByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	unitID := mux.Vars(r)["unit_id"]
	oid, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("unit id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	err = m.DB.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to delete unit", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "unit deleted"}`))
}
