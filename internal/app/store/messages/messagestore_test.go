package messagestore_test

import (
	"testing"
	"time"

	messagestore "github.com/dalemusser/producthub/internal/app/store/messages"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_SendValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := messagestore.New(db, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	_, err := store.Send(ctx, a, b, "   \n")
	assert.ErrorIs(t, err, messagestore.ErrEmptyContent)
	_, err = store.Send(ctx, a, a, "hi me")
	assert.ErrorIs(t, err, messagestore.ErrSelfMessage)

	m, err := store.Send(ctx, a, b, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Content)
	assert.False(t, m.Read)
}

func TestStore_ConversationBothDirections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := messagestore.New(db, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	for _, step := range []struct {
		from, to primitive.ObjectID
		text     string
	}{
		{a, b, "one"},
		{b, a, "two"},
		{a, c, "elsewhere"},
		{a, b, "three"},
	} {
		_, err := store.Send(ctx, step.from, step.to, step.text)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	conv, err := store.Conversation(ctx, b, a)
	require.NoError(t, err)
	var texts []string
	for _, m := range conv {
		texts = append(texts, m.Content)
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)
}

func TestStore_MarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := messagestore.New(db, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	_, err := store.Send(ctx, a, b, "to b")
	require.NoError(t, err)
	_, err = store.Send(ctx, b, a, "to a")
	require.NoError(t, err)

	conv, err := store.Conversation(ctx, a, b)
	require.NoError(t, err)

	ids := messagestore.UnreadIDs(conv, b)
	require.Len(t, ids, 1)

	unread, err := store.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// Passing every id still only flips b's inbox.
	all := []primitive.ObjectID{conv[0].ID, conv[1].ID}
	n, err := store.MarkRead(ctx, b, all)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.MarkRead(ctx, b, all)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "already read")

	unread, err = store.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "a's message untouched")
}

func TestUnreadIDs(t *testing.T) {
	me := primitive.NewObjectID()
	other := primitive.NewObjectID()
	msgs := []models.Message{
		{ID: primitive.NewObjectID(), ReceiverID: me, Read: false},
		{ID: primitive.NewObjectID(), ReceiverID: me, Read: true},
		{ID: primitive.NewObjectID(), ReceiverID: other, Read: false},
	}
	ids := messagestore.UnreadIDs(msgs, me)
	assert.Equal(t, []primitive.ObjectID{msgs[0].ID}, ids)
	assert.Empty(t, messagestore.UnreadIDs(nil, me))
}
