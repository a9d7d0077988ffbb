package productstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "products"

var (
	ErrNotFound      = errors.New("product not found")
	ErrNameRequired  = errors.New("product name is required")
	ErrInvalidStatus = errors.New(`status must be "ideation"|"design"|"development"|"launch"|"retired"`)
	ErrNegative      = errors.New("price and stock must not be negative")
)

// Fields is the editable part of a product.
type Fields struct {
	Name        string
	Description string
	SKU         string
	Category    string
	Brand       string
	Price       float64
	Stock       int
	Status      models.ProductStatus
	Tags        []string
	Images      []string
	Specs       map[string]string
}

func (f *Fields) clean() error {
	f.Name = normalize.Name(f.Name)
	f.SKU = strings.TrimSpace(f.SKU)
	f.Category = normalize.Name(f.Category)
	f.Brand = normalize.Name(f.Brand)
	f.Tags = normalize.Tags(f.Tags)
	if f.Images == nil {
		f.Images = []string{}
	}
	if f.Status == "" {
		f.Status = models.ProductIdeation
	}
	switch {
	case f.Name == "":
		return ErrNameRequired
	case !models.IsValidProductStatus(f.Status):
		return ErrInvalidStatus
	case f.Price < 0 || f.Stock < 0:
		return ErrNegative
	}
	return nil
}

type Store struct {
	c   *mongo.Collection
	pub changefeed.Publisher
}

// New returns a product store. pub is notified after every write; it may be nil.
func New(db *mongo.Database, pub changefeed.Publisher) *Store {
	return &Store{c: db.Collection(collection), pub: pub}
}

// Create inserts a product at version 1.
func (s *Store) Create(ctx context.Context, f Fields, createdBy primitive.ObjectID) (models.Product, error) {
	if err := f.clean(); err != nil {
		return models.Product{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := models.Product{
		ID:          primitive.NewObjectID(),
		Name:        f.Name,
		Description: f.Description,
		SKU:         f.SKU,
		Category:    f.Category,
		Brand:       f.Brand,
		NameCI:      text.Fold(f.Name),
		CategoryCI:  text.Fold(f.Category),
		BrandCI:     text.Fold(f.Brand),
		Price:       f.Price,
		Stock:       f.Stock,
		Status:      f.Status,
		Tags:        f.Tags,
		Images:      f.Images,
		Specs:       f.Specs,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return p, nil
}

// Update replaces the editable fields and increments version.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, f Fields) (models.Product, error) {
	if err := f.clean(); err != nil {
		return models.Product{}, err
	}
	update := bson.M{
		"$set": bson.M{
			"name":        f.Name,
			"description": f.Description,
			"sku":         f.SKU,
			"category":    f.Category,
			"brand":       f.Brand,
			"name_ci":     text.Fold(f.Name),
			"category_ci": text.Fold(f.Category),
			"brand_ci":    text.Fold(f.Brand),
			"price":       f.Price,
			"stock":       f.Stock,
			"status":      f.Status,
			"tags":        f.Tags,
			"images":      f.Images,
			"specs":       f.Specs,
			"updated_at":  time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p models.Product
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("update product %s: %w", id.Hex(), err)
	}
	changefeed.Notify(ctx, s.pub, collection)
	return p, nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var p models.Product
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("get product %s: %w", id.Hex(), err)
	}
	return p, nil
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Status models.ProductStatus
	// Search matches a case-insensitive substring of name, category or brand.
	Search string
}

// List returns products newest first.
func (s *Store) List(ctx context.Context, lf ListFilter) ([]models.Product, error) {
	filter := bson.M{}
	if lf.Status != "" {
		filter["status"] = lf.Status
	}
	if q := text.Fold(strings.TrimSpace(lf.Search)); q != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name_ci": re},
			bson.M{"category_ci": re},
			bson.M{"brand_ci": re},
		}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := []models.Product{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	changefeed.Notify(ctx, s.pub, collection)
	return nil
}
