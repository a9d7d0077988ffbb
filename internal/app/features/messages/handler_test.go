package messages_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/features/messages"
	messagestore "github.com/dalemusser/producthub/internal/app/store/messages"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type env struct {
	h     *messages.Handler
	fx    *testutil.Fixtures
	alice testutil.TestUser
	bob   testutil.TestUser
	carol testutil.TestUser
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := messages.NewHandler(messagestore.New(db, nil), userstore.New(db, nil), uierrors.NewErrorLogger(logger), logger)
	fx := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	return env{
		h:     h,
		fx:    fx,
		alice: testutil.AsTestUser(fx.CreateUser(ctx, "Alice", "alice@example.com", models.RoleTeamMember)),
		bob:   testutil.AsTestUser(fx.CreateUser(ctx, "Bob", "bob@example.com", models.RoleProductManager)),
		carol: testutil.AsTestUser(fx.CreateUser(ctx, "Carol", "carol@example.com", models.RoleStakeholder)),
	}
}

func (e env) send(t *testing.T, from, to testutil.TestUser, content string) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(http.MethodPost, "/messages/"+to.ID, map[string]string{"content": content})
	req = testutil.WithChiURLParam(testutil.WithUser(req, from), "userID", to.ID)
	rec := testutil.NewRecorder()
	e.h.HandleSend(rec, req)
	return rec
}

func (e env) conversation(t *testing.T, viewer, with testutil.TestUser) []models.Message {
	t.Helper()
	req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest(http.MethodGet, "/messages/"+with.ID, viewer), "userID", with.ID)
	rec := testutil.NewRecorder()
	e.h.ServeConversation(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	rec.DecodeJSON(t, &body)
	return body.Messages
}

func TestSend_TrimsAndValidates(t *testing.T) {
	e := setup(t)

	rec := e.send(t, e.alice, e.bob, "   hi bob  ")
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, `"content":"hi bob"`)

	e.send(t, e.alice, e.bob, "    ").AssertStatus(t, http.StatusBadRequest)
	e.send(t, e.alice, e.alice, "me").AssertStatus(t, http.StatusBadRequest)
}

func TestSend_UnknownPeer(t *testing.T) {
	e := setup(t)
	ghost := testutil.TeamMemberUser()
	e.send(t, e.alice, ghost, "hello?").AssertStatus(t, http.StatusNotFound)
}

func TestConversation_BothDirectionsInOrder(t *testing.T) {
	e := setup(t)
	e.send(t, e.alice, e.bob, "one").AssertStatus(t, http.StatusCreated)
	e.send(t, e.bob, e.alice, "two").AssertStatus(t, http.StatusCreated)
	e.send(t, e.alice, e.carol, "elsewhere").AssertStatus(t, http.StatusCreated)
	e.send(t, e.alice, e.bob, "three").AssertStatus(t, http.StatusCreated)

	msgs := e.conversation(t, e.alice, e.bob)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestConversation_MarksReceivedRead(t *testing.T) {
	e := setup(t)
	e.send(t, e.alice, e.bob, "ping").AssertStatus(t, http.StatusCreated)
	e.send(t, e.bob, e.alice, "pong").AssertStatus(t, http.StatusCreated)

	// Bob views: only "ping" (to Bob) is flipped.
	msgs := e.conversation(t, e.bob, e.alice)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Read, "received message is reported read")
	assert.False(t, msgs[1].Read, "own sent message stays unread until Alice views it")

	e.h.Wait()

	ctx, cancel := testutil.TestContext()
	defer cancel()
	coll := e.fx.DB().Collection("messages")
	n, err := coll.CountDocuments(ctx, bson.M{"receiver_id": e.bob.ObjectID(), "read": true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = coll.CountDocuments(ctx, bson.M{"receiver_id": e.alice.ObjectID(), "read": false})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestServeUnread(t *testing.T) {
	e := setup(t)
	e.send(t, e.alice, e.bob, "a").AssertStatus(t, http.StatusCreated)
	e.send(t, e.carol, e.bob, "b").AssertStatus(t, http.StatusCreated)

	unread := func() int64 {
		rec := testutil.NewRecorder()
		e.h.ServeUnread(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/messages/unread", e.bob))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Unread int64 `json:"unread"`
		}
		rec.DecodeJSON(t, &body)
		return body.Unread
	}

	assert.EqualValues(t, 2, unread())
	e.conversation(t, e.bob, e.alice)
	e.h.Wait()
	assert.EqualValues(t, 1, unread())
}
