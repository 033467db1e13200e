package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/totemops/totem-api/api"
	"github.com/totemops/totem-api/databases"
	"github.com/totemops/totem-api/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// IncidentHub fans incident snapshots out to websocket subscribers. Each
// connection subscribes to a single event and receives the full incident
// list of that event after every write, rather than per-field deltas.
type IncidentHub struct {
	DB databases.IncidentDatabase

	mu    sync.Mutex
	rooms map[string]map[*websocket.Conn]bool
}

// NewIncidentHub returns a hub with no subscribers
func NewIncidentHub(db databases.IncidentDatabase) *IncidentHub {
	return &IncidentHub{
		DB:    db,
		rooms: make(map[string]map[*websocket.Conn]bool),
	}
}

// ServeWS upgrades the connection and parks it in the room of the requested
// event until the client hangs up. The first frame sent is the current
// snapshot, so a subscriber never starts from an empty board.
func (h *IncidentHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "eventId query param is required"}`))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Error("failed to upgrade websocket connection")
		return
	}

	h.register(eventID, conn)
	h.PublishIncidents(eventID)

	// drain the connection; clients only listen on this socket
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.deregister(eventID, conn)
			conn.Close()
			return
		}
	}
}

// PublishIncidents queries the event's incidents and pushes the snapshot to
// every subscriber of that event. A nil hub is a no-op so handlers under
// test need no live socket plumbing.
func (h *IncidentHub) PublishIncidents(eventID string) {
	if h == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	incidents, err := h.DB.Find(ctx, bson.M{"eventID": eventID}, opts)
	if err != nil {
		zap.S().With(err).Errorw("failed to load incident snapshot",
			"eventID", eventID)
		h.writeToRoom(eventID, map[string]interface{}{
			"event":   "incidents_error",
			"eventId": eventID,
			"error":   "failed to load incident snapshot",
		})
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	h.writeToRoom(eventID, map[string]interface{}{
		"event":     "incidents_snapshot",
		"eventId":   eventID,
		"incidents": incidents,
	})
}

func (h *IncidentHub) register(eventID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[eventID] == nil {
		h.rooms[eventID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[eventID][conn] = true
}

func (h *IncidentHub) deregister(eventID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[eventID], conn)
	if len(h.rooms[eventID]) == 0 {
		delete(h.rooms, eventID)
	}
}

func (h *IncidentHub) writeToRoom(eventID string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[eventID] {
		if err := conn.WriteJSON(payload); err != nil {
			zap.S().With(err).Warnw("dropping dead websocket subscriber",
				"eventID", eventID)
			conn.Close()
			delete(h.rooms[eventID], conn)
		}
	}
}
