package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Event holds the structure for the event collection in mongo. An event is the
// top-level operational context (e.g. a festival) scoping units, locations and
// incidents.
type Event struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	Active    bool               `json:"active" bson:"active"`
	CreatedAt interface{}        `json:"createdAt" bson:"createdAt"`
}
