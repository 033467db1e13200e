package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/totemops/totem-api/api/handlers"
	"github.com/totemops/totem-api/api/handlers/numbering"
	"github.com/totemops/totem-api/databases/mocks"
	"github.com/totemops/totem-api/models"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, time.July, 4, 21, 0, 0, 0, time.UTC) }
}

func createBody() []byte {
	b, _ := json.Marshal(models.IncidentCreate{
		EventID: "event-1",
		IncidentUpdate: models.IncidentUpdate{
			ReportingParty: "Gate 4 steward",
			Location:       "North Stage",
			MobileUnits:    []string{"Medic 1"},
			IncidentType:   "Medical",
			ReportedVia:    "radio",
			Priority:       "high",
			Description:    "crowd crush reported",
		},
	})
	return b
}

func TestIncident_CreateIncidentHandler(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, mongo.ErrNoDocuments)
	db.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	i := handlers.Incident{DB: db, Numbers: numbering.Generator{DB: db, Now: fixedClock()}}

	req := httptest.NewRequest("POST", "/api/v1/incidents", bytes.NewReader(createBody()))
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.CreateIncidentHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var got models.Incident
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "260001", got.IncidentNumber)
	assert.Equal(t, "event-1", got.EventID)
	assert.Equal(t, "Dispatched", got.Status)
	assert.Equal(t, []models.IncidentNote{}, got.Notes)
	assert.Equal(t, []models.ActivityLogEntry{}, got.ActivityLog)
}

func TestIncident_CreateIncidentHandlerMissingFields(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	i := handlers.Incident{DB: db, Numbers: numbering.Generator{DB: db}}

	body, _ := json.Marshal(models.IncidentCreate{EventID: "event-1"})
	req := httptest.NewRequest("POST", "/api/v1/incidents", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.CreateIncidentHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestIncident_CreateIncidentHandlerNumberingFailureAborts(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	i := handlers.Incident{DB: db, Numbers: numbering.Generator{DB: db, Now: fixedClock()}}

	req := httptest.NewRequest("POST", "/api/v1/incidents", bytes.NewReader(createBody()))
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.CreateIncidentHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	// no incident may persist without a number
	db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestIncident_UpdateIncidentByIDHandlerPushesChanges(t *testing.T) {
	oid := primitive.NewObjectID()
	existing := &models.Incident{
		ID:          oid,
		EventID:     "event-1",
		Location:    "North Stage",
		MobileUnits: []string{"Medic 1"},
		Priority:    "high",
		Status:      "Dispatched",
	}

	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"_id": oid}).Return(existing, nil)
	db.On("UpdateOne", mock.Anything, mock.Anything, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		push, ok := u["$push"].(bson.M)
		if !ok {
			return false
		}
		each := push["activityLog"].(bson.M)["$each"].([]models.ActivityLogEntry)
		return len(each) == 1 && each[0].Field == "status" &&
			each[0].From == "Dispatched" && each[0].To == "Responding"
	})).Return(existing, nil)

	body, _ := json.Marshal(models.IncidentUpdate{
		Location:    "North Stage",
		MobileUnits: []string{"Medic 1"},
		Priority:    "high",
		Status:      "Responding",
	})
	req := httptest.NewRequest("PUT", "/api/v1/incident/"+oid.Hex(), bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UpdateIncidentByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestIncident_UpdateIncidentByIDHandlerNoChangesNoPush(t *testing.T) {
	oid := primitive.NewObjectID()
	existing := &models.Incident{
		ID:          oid,
		EventID:     "event-1",
		Location:    "North Stage",
		MobileUnits: []string{"Medic 1"},
		Priority:    "high",
		Status:      "Dispatched",
	}

	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"_id": oid}).Return(existing, nil)
	db.On("UpdateOne", mock.Anything, mock.Anything, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		_, hasPush := u["$push"]
		return !hasPush
	})).Return(existing, nil)

	body, _ := json.Marshal(models.IncidentUpdate{
		Location:    "North Stage",
		MobileUnits: []string{"Medic 1"},
		Priority:    "high",
		Status:      "Dispatched",
	})
	req := httptest.NewRequest("PUT", "/api/v1/incident/"+oid.Hex(), bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UpdateIncidentByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestIncident_UpdateIncidentByIDHandlerInvalidStatus(t *testing.T) {
	oid := primitive.NewObjectID()
	db := &mocks.IncidentDatabase{}

	body, _ := json.Marshal(models.IncidentUpdate{Priority: "high", Status: "AOR"})
	req := httptest.NewRequest("PUT", "/api/v1/incident/"+oid.Hex(), bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UpdateIncidentByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestIncident_AddIncidentNoteHandler(t *testing.T) {
	oid := primitive.NewObjectID()
	existing := &models.Incident{ID: oid, EventID: "event-1", Notes: []models.IncidentNote{}}

	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"_id": oid}).Return(existing, nil)
	db.On("UpdateOne", mock.Anything, mock.Anything, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		push, ok := u["$push"].(bson.M)
		if !ok {
			return false
		}
		note, ok := push["notes"].(models.IncidentNote)
		return ok && note.Text == "subject located"
	})).Return(existing, nil)

	body := []byte(`{"text": "  subject located  "}`)
	req := httptest.NewRequest("POST", "/api/v1/incident/"+oid.Hex()+"/note", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.AddIncidentNoteHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestIncident_AddIncidentNoteHandlerSeedsNullNotesConditionally(t *testing.T) {
	oid := primitive.NewObjectID()
	existing := &models.Incident{ID: oid, EventID: "event-1"}

	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"_id": oid}).Return(existing, nil)
	// the seed write must only match while notes is still null so it can
	// never wipe a concurrently seeded array
	db.On("UpdateOne", mock.Anything, bson.M{"_id": oid, "notes": nil},
		bson.M{"$set": bson.M{"notes": []models.IncidentNote{}}}).Return(existing, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": oid}, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		_, hasPush := u["$push"]
		return hasPush
	})).Return(existing, nil)

	req := httptest.NewRequest("POST", "/api/v1/incident/"+oid.Hex()+"/note", bytes.NewReader([]byte(`{"text": "first note"}`)))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.AddIncidentNoteHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestIncident_AddIncidentNoteHandlerSeedRaceLostStillAppends(t *testing.T) {
	oid := primitive.NewObjectID()
	existing := &models.Incident{ID: oid, EventID: "event-1"}

	db := &mocks.IncidentDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"_id": oid}).Return(existing, nil)
	// another writer seeded between our read and the seed write; the
	// conditional filter no longer matches and the append proceeds
	db.On("UpdateOne", mock.Anything, bson.M{"_id": oid, "notes": nil}, mock.Anything).
		Return(nil, mongo.ErrNoDocuments)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": oid}, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		_, hasPush := u["$push"]
		return hasPush
	})).Return(existing, nil)

	req := httptest.NewRequest("POST", "/api/v1/incident/"+oid.Hex()+"/note", bytes.NewReader([]byte(`{"text": "late note"}`)))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.AddIncidentNoteHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestIncident_AddIncidentNoteHandlerEmptyText(t *testing.T) {
	oid := primitive.NewObjectID()
	db := &mocks.IncidentDatabase{}

	req := httptest.NewRequest("POST", "/api/v1/incident/"+oid.Hex()+"/note", bytes.NewReader([]byte(`{"text": "   "}`)))
	req = mux.SetURLVars(req, map[string]string{"incident_id": oid.Hex()})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.AddIncidentNoteHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestIncident_IncidentsByEventIDHandlerActiveFilter(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	db.On("Find", mock.Anything, bson.M{
		"eventID": "event-1",
		"status":  bson.M{"$ne": models.StatusResolved},
	}, mock.Anything).Return([]models.Incident{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/incidents/event/event-1?status=active", nil)
	req = mux.SetURLVars(req, map[string]string{"event_id": "event-1"})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.IncidentsByEventIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
	db.AssertExpectations(t)
}

func TestIncident_IncidentsByEventIDHandlerUnknownStatus(t *testing.T) {
	db := &mocks.IncidentDatabase{}

	req := httptest.NewRequest("GET", "/api/v1/incidents/event/event-1?status=bogus", nil)
	req = mux.SetURLVars(req, map[string]string{"event_id": "event-1"})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.IncidentsByEventIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestIncident_IncidentByIDHandlerBadObjectID(t *testing.T) {
	db := &mocks.IncidentDatabase{}

	req := httptest.NewRequest("GET", "/api/v1/incident/1234", nil)
	req = mux.SetURLVars(req, map[string]string{"incident_id": "1234"})

	i := handlers.Incident{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(i.IncidentByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "incident id is not a valid object id", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	assert.Equal(t, string(b), rr.Body.String())
}
