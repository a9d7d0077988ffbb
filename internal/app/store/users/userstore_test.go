package userstore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/indexes"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) (*userstore.Store, *atomic.Int32) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	hub := changefeed.NewHub()
	var n atomic.Int32
	if _, err := hub.Subscribe(context.Background(), "users", func() { n.Add(1) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	return userstore.New(db, hub), &n
}

func TestStore_Create(t *testing.T) {
	store, notified := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:       "  Ada@Example.COM ",
		DisplayName: "Ada   Lovelace",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Email != "ada@example.com" {
		t.Errorf("Email: got %q, want %q", created.Email, "ada@example.com")
	}
	if created.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName: got %q, want %q", created.DisplayName, "Ada Lovelace")
	}
	if created.Role != models.RoleTeamMember {
		t.Errorf("Role: got %q, want default %q", created.Role, models.RoleTeamMember)
	}
	if created.CreatedAt.IsZero() || !created.LastLogin.Equal(created.CreatedAt) {
		t.Errorf("expected CreatedAt == LastLogin, got %v / %v", created.CreatedAt, created.LastLogin)
	}
	if notified.Load() != 1 {
		t.Errorf("notifications: got %d, want 1", notified.Load())
	}
}

func TestStore_Create_Validation(t *testing.T) {
	store, notified := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Email: "x@example.com", Role: "owner"}); !errors.Is(err, userstore.ErrInvalidRole) {
		t.Errorf("bad role: got %v, want ErrInvalidRole", err)
	}
	if _, err := store.Create(ctx, models.User{Email: "   "}); !errors.Is(err, userstore.ErrEmailRequired) {
		t.Errorf("blank email: got %v, want ErrEmailRequired", err)
	}
	if notified.Load() != 0 {
		t.Errorf("rejected writes must not notify, got %d", notified.Load())
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Email: "dup@example.com"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{Email: "DUP@example.com"})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_Lookups(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "g@example.com", GoogleID: "sub-123", Role: models.RoleStakeholder})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got, err := store.GetByID(ctx, u.ID); err != nil || got.Email != "g@example.com" {
		t.Errorf("GetByID: got %+v, %v", got, err)
	}
	if got, err := store.GetByEmail(ctx, "G@EXAMPLE.com"); err != nil || got.ID != u.ID {
		t.Errorf("GetByEmail: got %+v, %v", got, err)
	}
	if got, err := store.GetByGoogleID(ctx, "sub-123"); err != nil || got.ID != u.ID {
		t.Errorf("GetByGoogleID: got %+v, %v", got, err)
	}
	if _, err := store.GetByGoogleID(ctx, ""); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("empty google id: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateRoleAndLastLogin(t *testing.T) {
	store, notified := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "r@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.UpdateRole(ctx, u.ID, models.RoleProductManager); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if err := store.UpdateRole(ctx, u.ID, "boss"); !errors.Is(err, userstore.ErrInvalidRole) {
		t.Errorf("bad role: got %v, want ErrInvalidRole", err)
	}
	when := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	if err := store.UpdateLastLogin(ctx, u.ID, when); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Role != models.RoleProductManager {
		t.Errorf("Role: got %q, want %q", got.Role, models.RoleProductManager)
	}
	if !got.LastLogin.Equal(when) {
		t.Errorf("LastLogin: got %v, want %v", got.LastLogin, when)
	}
	if notified.Load() != 3 {
		t.Errorf("notifications: got %d, want 3", notified.Load())
	}

	if err := store.UpdateRole(ctx, primitive.NewObjectID(), models.RoleAdmin); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAndList(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.Create(ctx, models.User{Email: "first@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create(ctx, models.User{Email: "second@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("List: expected newest first, got %+v", list)
	}

	if err := store.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, first.ID); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
	list, _ = store.List(ctx)
	if len(list) != 1 {
		t.Errorf("List after delete: got %d users, want 1", len(list))
	}
}

func TestStore_UpdateDisplayNameAndPassword(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "n@example.com", DisplayName: "Old"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.UpdateDisplayName(ctx, u.ID, "  New   Name "); err != nil {
		t.Fatalf("UpdateDisplayName failed: %v", err)
	}
	if err := store.UpdatePassword(ctx, u.ID, "hash"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.DisplayName != "New Name" {
		t.Errorf("DisplayName: got %q, want %q", got.DisplayName, "New Name")
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash: got %q, want %q", got.PasswordHash, "hash")
	}

	if err := store.UpdatePassword(ctx, primitive.NewObjectID(), "x"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}
