// internal/domain/models/feedback.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FeedbackType string

const (
	FeedbackBug         FeedbackType = "bug"
	FeedbackFeature     FeedbackType = "feature"
	FeedbackImprovement FeedbackType = "improvement"
	FeedbackQuestion    FeedbackType = "question"
)

type FeedbackStatus string

const (
	FeedbackOpen       FeedbackStatus = "open"
	FeedbackInProgress FeedbackStatus = "in_progress"
	FeedbackResolved   FeedbackStatus = "resolved"
	FeedbackClosed     FeedbackStatus = "closed"
)

func IsValidFeedbackStatus(s FeedbackStatus) bool {
	switch s {
	case FeedbackOpen, FeedbackInProgress, FeedbackResolved, FeedbackClosed:
		return true
	}
	return false
}

// Feedback is a piece of customer or stakeholder feedback.
// Priority uses the low/medium/high subset of TaskPriority.
type Feedback struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Type        FeedbackType       `bson:"type" json:"type"`
	Priority    TaskPriority       `bson:"priority" json:"priority"`
	Status      FeedbackStatus     `bson:"status" json:"status"`
	Rating      int                `bson:"rating" json:"rating"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	Tags        []string           `bson:"tags" json:"tags"`
}

func IsValidFeedbackType(t FeedbackType) bool {
	switch t {
	case FeedbackBug, FeedbackFeature, FeedbackImprovement, FeedbackQuestion:
		return true
	}
	return false
}
