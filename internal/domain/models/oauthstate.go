// internal/domain/models/oauthstate.go
package models

import "time"

// OAuthState is a one-time anti-CSRF token for the Google sign-in flow.
type OAuthState struct {
	State     string    `bson:"state"`
	ReturnURL string    `bson:"return_url,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}
