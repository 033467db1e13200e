package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/totemops/totem-api/api/handlers"
	"github.com/totemops/totem-api/databases/mocks"
	"github.com/totemops/totem-api/models"
)

func TestEvent_CreateEventHandler(t *testing.T) {
	db := &mocks.EventDatabase{}
	db.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	body := []byte(`{"name": "Summer Festival 2026"}`)
	req := httptest.NewRequest("POST", "/api/v1/event", bytes.NewReader(body))

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.CreateEventHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var got models.Event
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Summer Festival 2026", got.Name)
	assert.True(t, got.Active)
}

func TestEvent_CreateEventHandlerMissingName(t *testing.T) {
	db := &mocks.EventDatabase{}

	req := httptest.NewRequest("POST", "/api/v1/event", bytes.NewReader([]byte(`{"name": "  "}`)))

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.CreateEventHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestEvent_EventsHandlerDefaultsToActive(t *testing.T) {
	db := &mocks.EventDatabase{}
	db.On("Find", mock.Anything, bson.M{"active": true}, mock.Anything).
		Return([]models.Event{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/events", nil)

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.EventsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
	db.AssertExpectations(t)
}

func TestEvent_EventsHandlerAllIncludesInactive(t *testing.T) {
	db := &mocks.EventDatabase{}
	db.On("Find", mock.Anything, bson.M{}, mock.Anything).
		Return([]models.Event{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/events?all=true", nil)

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.EventsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestEvent_SetEventActiveHandler(t *testing.T) {
	oid := primitive.NewObjectID()
	db := &mocks.EventDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"_id": oid}, bson.M{"$set": bson.M{"active": false}}).
		Return(nil, nil)

	body := []byte(`{"active": false}`)
	req := httptest.NewRequest("PATCH", "/api/v1/event/"+oid.Hex(), bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"event_id": oid.Hex()})

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.SetEventActiveHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestEvent_EventByIDHandlerBadObjectID(t *testing.T) {
	db := &mocks.EventDatabase{}

	req := httptest.NewRequest("GET", "/api/v1/event/1234", nil)
	req = mux.SetURLVars(req, map[string]string{"event_id": "1234"})

	e := handlers.Event{DB: db}
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.EventByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
