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

// Event exported for testing purposes
type Event struct {
	DB databases.EventDatabase
}

// CreateEventHandler creates a new active event
func (e Event) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var req struct {
		Name string `json:"name"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		config.ErrorStatus("event name is required", http.StatusBadRequest, w, errors.New("empty name"))
		return
	}

	event := models.Event{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Active:    true,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	_, err = e.DB.InsertOne(ctx, event)
	if err != nil {
		config.ErrorStatus("failed to insert event", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(event)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// EventsHandler returns active events newest first. Passing all=true also
// returns deactivated events for the admin screens.
func (e Event) EventsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	filter := bson.M{"active": true}
	if r.URL.Query().Get("all") == "true" {
		filter = bson.M{}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	dbResp, err := e.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get events", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.Event{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EventByIDHandler returns an event given an event id
func (e Event) EventByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		config.ErrorStatus("event id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to get event by id", http.StatusNotFound, w, err)
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

// SetEventActiveHandler activates or deactivates an event. Deactivating
// hides the event from the selector; its incidents stay queryable.
func (e Event) SetEventActiveHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		config.ErrorStatus("event id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	_, err = e.DB.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"active": req.Active}})
	if err != nil {
		config.ErrorStatus("failed to update event", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "event updated"}`))
}

// DeleteEventByIDHandler deletes an event given an event id
func (e Event) DeleteEventByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	oid, err := primitive.ObjectIDFromHex(eventID)
	if err != nil {
		config.ErrorStatus("event id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	err = e.DB.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to delete event", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "event deleted"}`))
}
