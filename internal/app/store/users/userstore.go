package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "users"

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrInvalidRole    = errors.New(`role must be "admin"|"product_manager"|"team_member"|"stakeholder"`)
	ErrEmailRequired  = errors.New("email is required")
)

type Store struct {
	c   *mongo.Collection
	pub changefeed.Publisher
}

// New returns a user store. pub is notified after every write; it may be nil.
func New(db *mongo.Database, pub changefeed.Publisher) *Store {
	return &Store{c: db.Collection(collection), pub: pub}
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetByGoogleID looks up a user by Google subject id.
func (s *Store) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"google_id": googleID})
}

// Create inserts a new user after normalizing & validating fields.
// An empty role defaults to team_member. CreatedAt and LastLogin are both
// set to now: creating an account counts as signing in.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	if u.Email == "" {
		return models.User{}, ErrEmailRequired
	}
	if u.Role == "" {
		u.Role = models.RoleTeamMember
	}
	if !u.Role.Valid() {
		return models.User{}, ErrInvalidRole
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	u.CreatedAt = now
	u.LastLogin = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return u, nil
}

func (s *Store) updateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	changefeed.Notify(ctx, s.pub, collection)
	return nil
}

// UpdateLastLogin records a successful sign-in at t.
func (s *Store) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, t time.Time) error {
	return s.updateByID(ctx, id, bson.M{"last_login": t.UTC()})
}

// UpdateRole changes a user's role.
func (s *Store) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.updateByID(ctx, id, bson.M{"role": role})
}

// UpdateDisplayName renames a user after normalizing the name.
func (s *Store) UpdateDisplayName(ctx context.Context, id primitive.ObjectID, name string) error {
	return s.updateByID(ctx, id, bson.M{"display_name": normalize.Name(name)})
}

// UpdatePassword replaces the stored bcrypt hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.updateByID(ctx, id, bson.M{"password_hash": hash})
}

// LinkGoogle attaches a Google subject id to an existing password account.
func (s *Store) LinkGoogle(ctx context.Context, id primitive.ObjectID, googleID string) error {
	return s.updateByID(ctx, id, bson.M{"google_id": googleID})
}

// Delete removes a user. Tasks still assigned to them are left in place.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	changefeed.Notify(ctx, s.pub, collection)
	return nil
}

// List returns every user, newest first.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Count returns the number of users.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
