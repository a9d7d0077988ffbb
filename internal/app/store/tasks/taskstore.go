package taskstore

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

const collection = "tasks"

var (
	ErrNotFound        = errors.New("task not found")
	ErrTitleRequired   = errors.New("task title is required")
	ErrInvalidStatus   = errors.New(`status must be "todo"|"in_progress"|"review"|"done"`)
	ErrInvalidPriority = errors.New(`priority must be "low"|"medium"|"high"|"urgent"`)
)

// NewTask is the input for Create.
type NewTask struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	ProductID   *primitive.ObjectID
	DueDate     *time.Time
	// AssignTo is honoured only when the creator is an admin.
	AssignTo *primitive.ObjectID
}

// Assignee picks the owner of a new task: an admin may assign to anyone,
// everyone else creates tasks for themselves.
func Assignee(creatorID primitive.ObjectID, creatorRole models.Role, chosen *primitive.ObjectID) primitive.ObjectID {
	if creatorRole.IsAdmin() && chosen != nil && !chosen.IsZero() {
		return *chosen
	}
	return creatorID
}

type Store struct {
	c   *mongo.Collection
	pub changefeed.Publisher
}

// New returns a task store. pub is notified after every write; it may be nil.
func New(db *mongo.Database, pub changefeed.Publisher) *Store {
	return &Store{c: db.Collection(collection), pub: pub}
}

// Create inserts a task. Status defaults to todo and priority to medium.
func (s *Store) Create(ctx context.Context, in NewTask, creatorID primitive.ObjectID, creatorRole models.Role) (models.Task, error) {
	in.Title = normalize.Name(in.Title)
	if in.Status == "" {
		in.Status = models.TaskTodo
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	switch {
	case in.Title == "":
		return models.Task{}, ErrTitleRequired
	case !models.IsValidTaskStatus(in.Status):
		return models.Task{}, ErrInvalidStatus
	case !models.IsValidTaskPriority(in.Priority):
		return models.Task{}, ErrInvalidPriority
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	t := models.Task{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssignedTo:  Assignee(creatorID, creatorRole, in.AssignTo),
		ProductID:   in.ProductID,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return t, nil
}

// List returns tasks newest first. A non-nil assignedTo restricts the list
// to that user's tasks.
func (s *Store) List(ctx context.Context, assignedTo *primitive.ObjectID) ([]models.Task, error) {
	filter := bson.M{}
	if assignedTo != nil {
		filter["assigned_to"] = *assignedTo
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := []models.Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("get task %s: %w", id.Hex(), err)
	}
	return t, nil
}

// UpdateStatus changes a task's status. A non-nil assignedTo limits the
// update to tasks owned by that user; other tasks report ErrNotFound.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.TaskStatus, assignedTo *primitive.ObjectID) (models.Task, error) {
	if !models.IsValidTaskStatus(status) {
		return models.Task{}, ErrInvalidStatus
	}
	filter := bson.M{"_id": id}
	if assignedTo != nil {
		filter["assigned_to"] = *assignedTo
	}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var t models.Task
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("update task %s: %w", id.Hex(), err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return t, nil
}
