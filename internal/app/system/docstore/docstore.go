// Package docstore is the read side of the document store as seen by the
// aggregation core: one-shot scans of a collection with an optional
// equality filter, sort, and limit.
package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Query describes a scan. A zero Query returns every document in natural
// order. Filter values are matched by equality.
type Query struct {
	Filter    bson.M
	SortField string
	SortDesc  bool
	Limit     int64
}

// Scanner reads documents from a collection.
type Scanner interface {
	Scan(ctx context.Context, collection string, q Query) ([]bson.Raw, error)
}

// Mongo implements Scanner over a mongo database.
type Mongo struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) Scan(ctx context.Context, collection string, q Query) ([]bson.Raw, error) {
	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}

	opts := options.Find()
	if q.SortField != "" {
		dir := 1
		if q.SortDesc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.SortField, Value: dir}, {Key: "_id", Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		// cur.Current is reused by the cursor.
		doc := make(bson.Raw, len(cur.Current))
		copy(doc, cur.Current)
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return out, nil
}

// Decode unmarshals each raw document into a T.
func Decode[T any](docs []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := bson.Unmarshal(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ScanAs scans collection and decodes the result into []T.
func ScanAs[T any](ctx context.Context, s Scanner, collection string, q Query) ([]T, error) {
	docs, err := s.Scan(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out, err := Decode[T](docs)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return out, nil
}
