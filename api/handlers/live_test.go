package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/totemops/totem-api/api/handlers"
	"github.com/totemops/totem-api/databases/mocks"
	"github.com/totemops/totem-api/models"
)

type snapshotFrame struct {
	Event     string            `json:"event"`
	EventID   string            `json:"eventId"`
	Incidents []models.Incident `json:"incidents"`
}

func TestIncidentHub_SubscriberGetsInitialSnapshot(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.Incident{
		{ID: primitive.NewObjectID(), EventID: "event-1", IncidentNumber: "260001"},
	}, nil)

	hub := handlers.NewIncidentHub(db)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?eventId=event-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame snapshotFrame
	assert.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "incidents_snapshot", frame.Event)
	assert.Equal(t, "event-1", frame.EventID)
	assert.Len(t, frame.Incidents, 1)
	assert.Equal(t, "260001", frame.Incidents[0].IncidentNumber)
}

func TestIncidentHub_PublishReachesOnlyTheEventRoom(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.Incident{}, nil)

	hub := handlers.NewIncidentHub(db)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?eventId=event-2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	// drain the initial snapshot
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame snapshotFrame
	assert.NoError(t, conn.ReadJSON(&frame))

	// a write on another event must not wake this subscriber
	hub.PublishIncidents("event-1")
	hub.PublishIncidents("event-2")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	assert.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "event-2", frame.EventID)
}

func TestIncidentHub_MissingEventIDRejected(t *testing.T) {
	db := &mocks.IncidentDatabase{}
	hub := handlers.NewIncidentHub(db)

	req := httptest.NewRequest("GET", "/ws/incidents", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(hub.ServeWS).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
