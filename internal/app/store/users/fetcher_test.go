package userstore_test

import (
	"testing"

	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Grace Hopper", "grace@example.com", models.RoleProductManager)
	f := userstore.NewFetcher(db)

	su := f.FetchUser(ctx, u.ID.Hex())
	if su == nil {
		t.Fatal("expected a session user")
	}
	if su.ID != u.ID.Hex() || su.Name != "Grace Hopper" || su.Email != "grace@example.com" {
		t.Errorf("FetchUser: got %+v", su)
	}
	if su.Role != models.RoleProductManager {
		t.Errorf("Role: got %q, want %q", su.Role, models.RoleProductManager)
	}
}

func TestFetcher_FetchUser_Missing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := userstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if su := f.FetchUser(ctx, "not-hex"); su != nil {
		t.Errorf("bad id: got %+v, want nil", su)
	}
	if su := f.FetchUser(ctx, primitive.NewObjectID().Hex()); su != nil {
		t.Errorf("missing user: got %+v, want nil", su)
	}
}

func TestFetcher_FetchUser_UnknownRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := userstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	if _, err := db.Collection("users").InsertOne(ctx, bson.M{"_id": id, "email": "x@example.com", "role": "wizard"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if su := f.FetchUser(ctx, id.Hex()); su != nil {
		t.Errorf("unknown role: got %+v, want nil", su)
	}
}
