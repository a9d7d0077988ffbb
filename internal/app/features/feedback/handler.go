// Package feedback collects product feedback from any signed-in user.
// Only admins move feedback through its statuses.
package feedback

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	feedbackstore "github.com/dalemusser/producthub/internal/app/store/feedback"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Feedback *feedbackstore.Store
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
	Audit    *auditlog.Logger
}

func NewHandler(fb *feedbackstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Feedback: fb,
		ErrLog:   errLog,
		Log:      logger,
	}
}

type createInput struct {
	Title       string   `json:"title" validate:"required,max=200" label:"Title"`
	Description string   `json:"description" validate:"max=5000" label:"Description"`
	Type        string   `json:"type" validate:"required,feedbacktype" label:"Type"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high" label:"Priority"`
	Rating      int      `json:"rating" validate:"required,min=1,max=5" label:"Rating"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50" label:"Tags"`
}

type statusInput struct {
	Status string `json:"status" validate:"required,feedbackstatus" label:"Status"`
}

type feedbackResponse struct {
	Feedback models.Feedback `json:"feedback"`
}

type listResponse struct {
	Feedback []models.Feedback `json:"feedback"`
}

// ServeList handles GET /feedback, newest first. ?status= filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := models.FeedbackStatus(query.Get(r, "status"))
	if status != "" && !models.IsValidFeedbackStatus(status) {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, feedbackstore.ErrInvalidStatus.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Feedback.List(ctx, status)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list feedback", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{Feedback: list})
}

// HandleCreate handles POST /feedback. New feedback is always open.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	var in createInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode feedback", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		tags = append(tags, htmlsanitize.StripTags(t))
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fb, err := h.Feedback.Create(ctx, feedbackstore.NewFeedback{
		Title:       htmlsanitize.StripTags(in.Title),
		Description: htmlsanitize.Sanitize(in.Description),
		Type:        models.FeedbackType(in.Type),
		Priority:    models.TaskPriority(in.Priority),
		Rating:      in.Rating,
		Tags:        tags,
	}, actor.ID)
	if err != nil {
		h.storeError(w, r, "create feedback", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, feedbackResponse{Feedback: fb})
}

// HandleStatus handles PATCH /feedback/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}
	if !authz.Can(actor.Role, authz.CapSetFeedback) {
		h.ErrLog.LogForbidden(w, r, "feedback: status change by non-admin", "Only admins can change feedback status.")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid feedback id.")
		return
	}

	var in statusInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode feedback status", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fb, err := h.Feedback.UpdateStatus(ctx, id, models.FeedbackStatus(in.Status))
	if err != nil {
		h.storeError(w, r, "update feedback status", err)
		return
	}
	h.Log.Info("feedback status changed",
		zap.String("feedback_id", fb.ID.Hex()),
		zap.String("status", string(fb.Status)),
		zap.String("user_id", actor.ID.Hex()))
	h.Audit.FeedbackStatusChanged(ctx, r, actor.ID, fb.ID, fb.Status)
	uierrors.WriteJSON(w, http.StatusOK, feedbackResponse{Feedback: fb})
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, feedbackstore.ErrNotFound):
		uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "Feedback not found.")
	case errors.Is(err, feedbackstore.ErrTitleRequired),
		errors.Is(err, feedbackstore.ErrInvalidType),
		errors.Is(err, feedbackstore.ErrInvalidPriority),
		errors.Is(err, feedbackstore.ErrInvalidStatus),
		errors.Is(err, feedbackstore.ErrInvalidRating):
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, msg, err, "A database error occurred.")
	}
}
