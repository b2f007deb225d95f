package models

import "time"

// Batch is a production lot. Its crate limit caps the FULL crates weighed
// across every order attached to it.
type Batch struct {
	ID               string    `json:"id" bson:"_id"`
	Name             string    `json:"name" bson:"name"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
	TotalCratesLimit int       `json:"totalCratesLimit" bson:"totalCratesLimit"`
	CreatedBy        string    `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
}

// EntityID implements sync.Entity.
func (b Batch) EntityID() string { return b.ID }
