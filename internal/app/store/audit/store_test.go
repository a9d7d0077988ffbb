package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/app/store/audit"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_LogAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := audit.New(db)

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	events := []audit.Event{
		{Timestamp: base.Add(-3 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &alice, Success: true},
		{Timestamp: base.Add(-2 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, UserID: &bob},
		{Timestamp: base.Add(-1 * time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventUserDeleted, UserID: &bob, ActorID: &alice, Success: true},
	}
	for _, e := range events {
		require.NoError(t, s.Log(ctx, e))
	}

	all, err := s.Query(ctx, audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, audit.EventUserDeleted, all[0].EventType, "newest first")
	assert.False(t, all[0].ID.IsZero())

	byUser, err := s.Query(ctx, audit.QueryFilter{UserID: &bob})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	auth, err := s.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth, Since: base.Add(-150 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, auth, 1)
	assert.Equal(t, audit.EventLoginFailedWrongPassword, auth[0].EventType)

	limited, err := s.Query(ctx, audit.QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_LogFillsTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := audit.New(db)

	require.NoError(t, s.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, Success: true}))

	got, err := s.Query(ctx, audit.QueryFilter{EventType: audit.EventLogout})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].Timestamp, time.Minute)
}

func TestStore_PruneBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := audit.New(db)

	now := time.Now().UTC()
	require.NoError(t, s.Log(ctx, audit.Event{Timestamp: now.Add(-48 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLogout}))
	require.NoError(t, s.Log(ctx, audit.Event{Timestamp: now, Category: audit.CategoryAuth, EventType: audit.EventLogout}))

	n, err := s.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := s.Query(ctx, audit.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
