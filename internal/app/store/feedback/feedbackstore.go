package feedbackstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "feedback"

var (
	ErrNotFound        = errors.New("feedback not found")
	ErrTitleRequired   = errors.New("feedback title is required")
	ErrInvalidType     = errors.New(`type must be "bug"|"feature"|"improvement"|"question"`)
	ErrInvalidPriority = errors.New(`priority must be "low"|"medium"|"high"`)
	ErrInvalidStatus   = errors.New(`status must be "open"|"in_progress"|"resolved"|"closed"`)
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

// NewFeedback is the input for Create.
type NewFeedback struct {
	Title       string
	Description string
	Type        models.FeedbackType
	Priority    models.TaskPriority
	Rating      int
	Tags        []string
}

func validPriority(p models.TaskPriority) bool {
	return p == models.PriorityLow || p == models.PriorityMedium || p == models.PriorityHigh
}

type Store struct {
	c   *mongo.Collection
	pub changefeed.Publisher
}

// New returns a feedback store. pub is notified after every write; it may be nil.
func New(db *mongo.Database, pub changefeed.Publisher) *Store {
	return &Store{c: db.Collection(collection), pub: pub}
}

// Create inserts open feedback. Priority defaults to medium.
func (s *Store) Create(ctx context.Context, in NewFeedback, createdBy primitive.ObjectID) (models.Feedback, error) {
	in.Title = normalize.Name(in.Title)
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	switch {
	case in.Title == "":
		return models.Feedback{}, ErrTitleRequired
	case !models.IsValidFeedbackType(in.Type):
		return models.Feedback{}, ErrInvalidType
	case !validPriority(in.Priority):
		return models.Feedback{}, ErrInvalidPriority
	case in.Rating < 1 || in.Rating > 5:
		return models.Feedback{}, ErrInvalidRating
	}

	fb := models.Feedback{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Priority:    in.Priority,
		Status:      models.FeedbackOpen,
		Rating:      in.Rating,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Tags:        normalize.Tags(in.Tags),
	}
	if _, err := s.c.InsertOne(ctx, fb); err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return fb, nil
}

// List returns feedback newest first. status filters when non-empty.
func (s *Store) List(ctx context.Context, status models.FeedbackStatus) ([]models.Feedback, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	out := []models.Feedback{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.FeedbackStatus) (models.Feedback, error) {
	if !models.IsValidFeedbackStatus(status) {
		return models.Feedback{}, ErrInvalidStatus
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var fb models.Feedback
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&fb)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Feedback{}, ErrNotFound
		}
		return models.Feedback{}, fmt.Errorf("update feedback %s: %w", id.Hex(), err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return fb, nil
}
