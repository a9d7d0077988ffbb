package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with the given role and returns it.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, role models.Role) models.User {
	f.t.Helper()

	u := NewUser(name, email, role)
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateUserWithPassword inserts a password account. The hash uses
// bcrypt.MinCost to keep tests fast.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, name, email, password string, role models.Role) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	u := NewUser(name, email, role)
	u.PasswordHash = string(hash)
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin inserts an admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleAdmin)
}

// CreateProduct inserts a product in the given status.
func (f *Fixtures) CreateProduct(ctx context.Context, name string, status models.ProductStatus, createdBy primitive.ObjectID) models.Product {
	f.t.Helper()

	p := NewProduct(name, status, time.Now().UTC())
	p.CreatedBy = createdBy
	if _, err := f.db.Collection("products").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test product: %v", err)
	}
	return p
}

// CreateTask inserts a task assigned to assignee.
func (f *Fixtures) CreateTask(ctx context.Context, title string, status models.TaskStatus, assignee primitive.ObjectID) models.Task {
	f.t.Helper()

	task := NewTask(title, status, models.PriorityMedium, assignee, time.Now().UTC())
	if _, err := f.db.Collection("tasks").InsertOne(ctx, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

// NewUser builds (but does not store) a user.
func NewUser(name, email string, role models.Role) models.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.User{
		ID:          primitive.NewObjectID(),
		Email:       text.Fold(email),
		DisplayName: name,
		Role:        role,
		CreatedAt:   now,
		LastLogin:   now,
	}
}

// NewProduct builds (but does not store) a product created at createdAt.
func NewProduct(name string, status models.ProductStatus, createdAt time.Time) models.Product {
	createdAt = createdAt.UTC().Truncate(time.Millisecond)
	return models.Product{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    status,
		Tags:      []string{},
		Images:    []string{},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Version:   1,
	}
}

// NewTask builds (but does not store) a task created at createdAt.
func NewTask(title string, status models.TaskStatus, priority models.TaskPriority, assignee primitive.ObjectID, createdAt time.Time) models.Task {
	createdAt = createdAt.UTC().Truncate(time.Millisecond)
	return models.Task{
		ID:         primitive.NewObjectID(),
		Title:      title,
		Status:     status,
		Priority:   priority,
		AssignedTo: assignee,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}
