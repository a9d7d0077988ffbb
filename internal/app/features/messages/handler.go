// Package messages serves direct messages between two users.
package messages

import (
	"context"
	"errors"
	"net/http"
	"sync"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	messagestore "github.com/dalemusser/producthub/internal/app/store/messages"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Messages *messagestore.Store
	Users    *userstore.Store
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger

	bg sync.WaitGroup
}

func NewHandler(msgs *messagestore.Store, users *userstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Messages: msgs,
		Users:    users,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// Wait blocks until background read-receipt writes have finished.
func (h *Handler) Wait() { h.bg.Wait() }

type sendInput struct {
	Content string `json:"content" validate:"required,max=5000" label:"Message"`
}

type conversationResponse struct {
	With     primitive.ObjectID `json:"with"`
	Messages []models.Message   `json:"messages"`
}

type messageResponse struct {
	Message models.Message `json:"message"`
}

type unreadResponse struct {
	Unread int64 `json:"unread"`
}

// ServeConversation handles GET /messages/{userID}: every message between
// the viewer and userID, oldest first. Unread messages addressed to the
// viewer are flipped to read in the background and reported read here.
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request) {
	actor, peer, ok := h.participants(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Messages.Conversation(ctx, actor.ID, peer)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load conversation", err, "A database error occurred.")
		return
	}

	if ids := messagestore.UnreadIDs(msgs, actor.ID); len(ids) > 0 {
		h.markRead(actor.ID, ids)
		for i := range msgs {
			if msgs[i].ReceiverID == actor.ID {
				msgs[i].Read = true
			}
		}
	}
	uierrors.WriteJSON(w, http.StatusOK, conversationResponse{With: peer, Messages: msgs})
}

// markRead writes read receipts without holding up the response.
func (h *Handler) markRead(receiver primitive.ObjectID, ids []primitive.ObjectID) {
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()
		if _, err := h.Messages.MarkRead(ctx, receiver, ids); err != nil {
			h.Log.Warn("mark messages read",
				zap.Error(err),
				zap.String("user_id", receiver.Hex()),
				zap.Int("count", len(ids)))
		}
	}()
}

// HandleSend handles POST /messages/{userID}.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	actor, peer, ok := h.participants(w, r)
	if !ok {
		return
	}

	var in sendInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode message", err, "Invalid request body.")
		return
	}
	in.Content = htmlsanitize.StripTags(in.Content)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Messages.Send(ctx, actor.ID, peer, in.Content)
	switch {
	case errors.Is(err, messagestore.ErrEmptyContent), errors.Is(err, messagestore.ErrSelfMessage):
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "send message", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, messageResponse{Message: m})
}

// ServeUnread handles GET /messages/unread.
func (h *Handler) ServeUnread(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Messages.UnreadCount(ctx, actor.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "unread count", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, unreadResponse{Unread: n})
}

// participants resolves the viewer and the {userID} peer, which must be an
// existing user.
func (h *Handler) participants(w http.ResponseWriter, r *http.Request) (authz.Actor, primitive.ObjectID, bool) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return authz.Actor{}, primitive.NilObjectID, false
	}
	peer, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid user id.")
		return authz.Actor{}, primitive.NilObjectID, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if _, err := h.Users.GetByID(ctx, peer); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "User not found.")
		} else {
			h.ErrLog.LogServerError(w, r, "load message peer", err, "A database error occurred.")
		}
		return authz.Actor{}, primitive.NilObjectID, false
	}
	return actor, peer, true
}
