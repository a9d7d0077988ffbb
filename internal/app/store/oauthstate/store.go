// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store manages OAuth2 state tokens in MongoDB. Indexes (unique state, TTL
// on expires_at) are created by system/indexes.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Save stores a state token with the URL to return to after sign-in.
func (s *Store) Save(ctx context.Context, state, returnURL string, expiresAt time.Time) error {
	st := models.OAuthState{
		State:     state,
		ReturnURL: returnURL,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Validate consumes a state token. It reports valid=false for unknown,
// expired or already-used tokens.
func (s *Store) Validate(ctx context.Context, state string) (returnURL string, valid bool, err error) {
	var st models.OAuthState
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("validate oauth state: %w", err)
	}
	return st.ReturnURL, true, nil
}

// CleanupExpired removes expired state tokens.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}
	return res.DeletedCount, nil
}
