// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Collections observed by the live dashboard
	ensure("users", usersSchema())
	ensure("products", productsSchema())
	ensure("tasks", tasksSchema())

	ensure("feedback", feedbackSchema())
	ensure("messages", messagesSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("login_records", nil)
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// enumOf turns a typed list of string constants into a schema enum.
func enumOf[T ~string](vals ...T) bson.A {
	out := make(bson.A, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "role", "created_at"},
			"properties": bson.M{
				"email":        nonBlank,
				"display_name": bson.M{"bsonType": "string"},
				"role":         bson.M{"enum": enumOf(models.AllRoles...)},
				"created_at":   bson.M{"bsonType": "date"},
				"last_login":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func productsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "status", "created_at", "version"},
			"properties": bson.M{
				"name":       nonBlank,
				"status":     bson.M{"enum": enumOf(models.ProductIdeation, models.ProductDesign, models.ProductDevelopment, models.ProductLaunch, models.ProductRetired)},
				"price":      bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
				"stock":      bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"created_by": bson.M{"bsonType": "objectId"},
				"created_at": bson.M{"bsonType": "date"},
				"version":    bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
			},
		},
	}
}

func tasksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "status", "priority", "assigned_to", "created_at"},
			"properties": bson.M{
				"title":       nonBlank,
				"status":      bson.M{"enum": enumOf(models.TaskTodo, models.TaskInProgress, models.TaskReview, models.TaskDone)},
				"priority":    bson.M{"enum": enumOf(models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent)},
				"assigned_to": bson.M{"bsonType": "objectId"},
				"product_id":  bson.M{"bsonType": "objectId"},
				"due_date":    bson.M{"bsonType": "date"},
				"created_at":  bson.M{"bsonType": "date"},
			},
		},
	}
}

func feedbackSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "type", "status", "rating", "created_by"},
			"properties": bson.M{
				"title":      nonBlank,
				"type":       bson.M{"enum": enumOf(models.FeedbackBug, models.FeedbackFeature, models.FeedbackImprovement, models.FeedbackQuestion)},
				"priority":   bson.M{"enum": enumOf(models.PriorityLow, models.PriorityMedium, models.PriorityHigh)},
				"status":     bson.M{"enum": enumOf(models.FeedbackOpen, models.FeedbackInProgress, models.FeedbackResolved, models.FeedbackClosed)},
				"rating":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1, "maximum": 5},
				"created_by": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"sender_id", "receiver_id", "content", "timestamp", "read"},
			"properties": bson.M{
				"sender_id":   bson.M{"bsonType": "objectId"},
				"receiver_id": bson.M{"bsonType": "objectId"},
				"content":     nonBlank,
				"timestamp":   bson.M{"bsonType": "date"},
				"read":        bson.M{"bsonType": "bool"},
			},
		},
	}
}
