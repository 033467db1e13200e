package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// LocationCategories is the set of valid location categories
var LocationCategories = []string{"medical", "security", "stage", "gate", "general"}

// Location holds the structure for the locations collection in mongo
type Location struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	EventID     string             `json:"eventID" bson:"eventID"`
	Name        string             `json:"name" bson:"name"`
	Coordinates Coordinates        `json:"coordinates" bson:"coordinates"`
	Category    string             `json:"category" bson:"category"`
	CreatedAt   interface{}        `json:"createdAt" bson:"createdAt"`
}

// ValidLocationCategory reports whether c is one of the fixed category values
func ValidLocationCategory(c string) bool {
	for _, v := range LocationCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Coordinates holds a geographic point for a location
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}
