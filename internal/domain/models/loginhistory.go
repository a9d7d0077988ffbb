// internal/domain/models/loginhistory.go
package models

import "time"

// LoginRecord captures a single successful sign-in.
// CreatedAt is indexed for recent-activity views.
type LoginRecord struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	IP        string    `bson:"ip" json:"ip"`
	Provider  string    `bson:"provider" json:"provider"` // password | google
}
