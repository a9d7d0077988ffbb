package metricsstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ActiveWindow is how recently a user must have signed in to count as active.
const ActiveWindow = 7 * 24 * time.Hour

// Counts is the set of totals shown on the admin panel.
type Counts struct {
	Users       int64 `json:"total_users"`
	Products    int64 `json:"total_products"`
	Tasks       int64 `json:"total_tasks"`
	ActiveUsers int64 `json:"active_users"`
}

// FetchAdminCounts returns the admin panel totals as of now.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchAdminCounts(ctx context.Context, db *mongo.Database, now time.Time) Counts {
	var out Counts

	count := func(coll string, filter bson.M) int64 {
		n, err := db.Collection(coll).CountDocuments(ctx, filter)
		if err != nil {
			return 0
		}
		return n
	}

	out.Users = count("users", bson.M{})
	out.Products = count("products", bson.M{})
	out.Tasks = count("tasks", bson.M{})
	// now - last_login < window
	out.ActiveUsers = count("users", bson.M{"last_login": bson.M{"$gt": now.Add(-ActiveWindow)}})

	return out
}
