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

// Location exported for testing purposes
type Location struct {
	DB databases.LocationDatabase
}

// CreateLocationHandler registers a named map point under an event
func (l Location) CreateLocationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]

	var req struct {
		Name        string             `json:"name"`
		Coordinates models.Coordinates `json:"coordinates"`
		Category    string             `json:"category"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		config.ErrorStatus("location name is required", http.StatusBadRequest, w, errors.New("empty name"))
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}
	if !models.ValidLocationCategory(req.Category) {
		config.ErrorStatus("invalid location category", http.StatusBadRequest, w, errors.New("category must be one of: "+strings.Join(models.LocationCategories, ", ")))
		return
	}

	location := models.Location{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		Name:        req.Name,
		Coordinates: req.Coordinates,
		Category:    req.Category,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
	}

	_, err = l.DB.InsertOne(ctx, location)
	if err != nil {
		config.ErrorStatus("failed to insert location", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(location)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// LocationsByEventIDHandler returns the locations of one event, sorted by name
func (l Location) LocationsByEventIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	eventID := mux.Vars(r)["event_id"]
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	dbResp, err := l.DB.Find(ctx, bson.M{"eventID": eventID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get locations by event id", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.Location{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteLocationByIDHandler deletes a location given a location id
func (l Location) DeleteLocationByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	locationID := mux.Vars(r)["location_id"]
	oid, err := primitive.ObjectIDFromHex(locationID)
	if err != nil {
		config.ErrorStatus("location id is not a valid object id", http.StatusBadRequest, w, err)
		return
	}

	err = l.DB.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to delete location", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "location deleted"}`))
}
