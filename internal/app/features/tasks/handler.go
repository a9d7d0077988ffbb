// Package tasks serves task lists and task changes. Admins see and manage
// every task; everyone else only their own.
package tasks

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	productstore "github.com/dalemusser/producthub/internal/app/store/products"
	taskstore "github.com/dalemusser/producthub/internal/app/store/tasks"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Tasks    *taskstore.Store
	Users    *userstore.Store
	Products *productstore.Store
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(tasks *taskstore.Store, users *userstore.Store, products *productstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Tasks:    tasks,
		Users:    users,
		Products: products,
		ErrLog:   errLog,
		Log:      logger,
	}
}

type createInput struct {
	Title       string     `json:"title" validate:"required,max=200" label:"Title"`
	Description string     `json:"description" validate:"max=5000" label:"Description"`
	Status      string     `json:"status" validate:"omitempty,taskstatus" label:"Status"`
	Priority    string     `json:"priority" validate:"omitempty,taskpriority" label:"Priority"`
	ProductID   string     `json:"product_id" validate:"omitempty,objectid" label:"Product"`
	DueDate     *time.Time `json:"due_date" label:"Due date"`
	AssignedTo  string     `json:"assigned_to" validate:"omitempty,objectid" label:"Assignee"`
}

type statusInput struct {
	Status string `json:"status" validate:"required,taskstatus" label:"Status"`
}

type taskResponse struct {
	Task models.Task `json:"task"`
}

type listResponse struct {
	Tasks []models.Task `json:"tasks"`
}

// scope returns the assigned_to restriction for actor: nil for admins.
func scope(actor authz.Actor) *primitive.ObjectID {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.ID
	return &id
}

// ServeList handles GET /tasks, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Tasks.List(ctx, scope(actor))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list tasks", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{Tasks: livestats.ScopeTasks(actor, list)})
}

// HandleCreate handles POST /tasks. assigned_to is honoured for admins and
// ignored for everyone else, whose tasks are always their own.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}

	var in createInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode task", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	nt := taskstore.NewTask{
		Title:       htmlsanitize.StripTags(in.Title),
		Description: htmlsanitize.Sanitize(in.Description),
		Status:      models.TaskStatus(in.Status),
		Priority:    models.TaskPriority(in.Priority),
		DueDate:     in.DueDate,
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if in.ProductID != "" {
		pid, _ := primitive.ObjectIDFromHex(in.ProductID)
		if _, err := h.Products.Get(ctx, pid); err != nil {
			if errors.Is(err, productstore.ErrNotFound) {
				uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "Product does not exist.")
				return
			}
			h.ErrLog.LogServerError(w, r, "load product", err, "A database error occurred.")
			return
		}
		nt.ProductID = &pid
	}

	if in.AssignedTo != "" && authz.Can(actor.Role, authz.CapAssignTasks) {
		uid, _ := primitive.ObjectIDFromHex(in.AssignedTo)
		if _, err := h.Users.GetByID(ctx, uid); err != nil {
			if errors.Is(err, userstore.ErrNotFound) {
				uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "Assignee does not exist.")
				return
			}
			h.ErrLog.LogServerError(w, r, "load assignee", err, "A database error occurred.")
			return
		}
		nt.AssignTo = &uid
	}

	t, err := h.Tasks.Create(ctx, nt, actor.ID, actor.Role)
	if err != nil {
		h.storeError(w, r, "create task", err)
		return
	}
	h.Log.Info("task created",
		zap.String("task_id", t.ID.Hex()),
		zap.String("assigned_to", t.AssignedTo.Hex()),
		zap.String("user_id", actor.ID.Hex()))
	uierrors.WriteJSON(w, http.StatusCreated, taskResponse{Task: t})
}

// HandleStatus handles PATCH /tasks/{id}/status. A non-admin changing a
// task that is not theirs gets 404, as if it did not exist.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid task id.")
		return
	}

	var in statusInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode task status", err, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Tasks.UpdateStatus(ctx, id, models.TaskStatus(in.Status), scope(actor))
	if err != nil {
		h.storeError(w, r, "update task status", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, taskstore.ErrNotFound):
		uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "Task not found.")
	case errors.Is(err, taskstore.ErrTitleRequired),
		errors.Is(err, taskstore.ErrInvalidStatus),
		errors.Is(err, taskstore.ErrInvalidPriority):
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, msg, err, "A database error occurred.")
	}
}
