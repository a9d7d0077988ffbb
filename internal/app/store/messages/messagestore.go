package messagestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "messages"

var (
	ErrEmptyContent = errors.New("message content is required")
	ErrSelfMessage  = errors.New("cannot send a message to yourself")
)

type Store struct {
	c   *mongo.Collection
	pub changefeed.Publisher
}

// New returns a message store. pub is notified after every write; it may be nil.
func New(db *mongo.Database, pub changefeed.Publisher) *Store {
	return &Store{c: db.Collection(collection), pub: pub}
}

// Send stores a message from sender to receiver. Content is trimmed and
// must not be empty.
func (s *Store) Send(ctx context.Context, sender, receiver primitive.ObjectID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}
	if sender == receiver {
		return models.Message{}, ErrSelfMessage
	}
	m := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return m, nil
}

// Conversation returns every message exchanged between a and b, in either
// direction, oldest first.
func (s *Store) Conversation(ctx context.Context, a, b primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	return out, nil
}

// MarkRead flips the given unread messages addressed to receiver to read.
// Ids of messages addressed to someone else are ignored.
func (s *Store) MarkRead(ctx context.Context, receiver primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "receiver_id": receiver, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if res.ModifiedCount > 0 {
		changefeed.Notify(ctx, s.pub, collection)
	}
	return res.ModifiedCount, nil
}

// UnreadIDs returns the ids of messages in msgs that receiver has not read.
func UnreadIDs(msgs []models.Message, receiver primitive.ObjectID) []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, m := range msgs {
		if m.ReceiverID == receiver && !m.Read {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// UnreadCount returns how many messages addressed to receiver are unread.
func (s *Store) UnreadCount(ctx context.Context, receiver primitive.ObjectID) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"receiver_id": receiver, "read": false})
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
