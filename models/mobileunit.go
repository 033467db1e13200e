package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MobileUnitStatuses is the set of admin-assignable unit statuses. "Busy" is
// not stored: a unit is busy iff an unresolved incident references its name.
var MobileUnitStatuses = []string{"available", "dispatched", "out-of-service"}

// MobileUnit holds the structure for the mobileUnits collection in mongo
type MobileUnit struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	EventID   string             `json:"eventID" bson:"eventID"`
	Name      string             `json:"name" bson:"name"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt interface{}        `json:"createdAt" bson:"createdAt"`
}

// ValidMobileUnitStatus reports whether s is one of the fixed unit status values
func ValidMobileUnitStatus(s string) bool {
	for _, v := range MobileUnitStatuses {
		if v == s {
			return true
		}
	}
	return false
}
