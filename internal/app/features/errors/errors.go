// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes carried in Body.Code.
const (
	CodeBadRequest   = "bad_request"
	CodeInvalid      = "invalid"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeMethod       = "method_not_allowed"
	CodeInternal     = "internal"
	CodeUnavailable  = "unavailable"
	CodeRateLimited  = "rate_limited"
)

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write json response", zap.Error(err))
	}
}

// JSON writes an error Body.
func JSON(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, Body{Error: msg, Code: code})
}

// Handler serves the router-level error endpoints.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden handles GET /forbidden, where RequireRole sends browsers.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusForbidden, CodeForbidden, "You don't have permission to view this page.")
}

// NotFound is installed as the router's NotFound handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusNotFound, CodeNotFound, "Not found.")
}

// MethodNotAllowed is installed as the router's MethodNotAllowed handler.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, CodeMethod, "Method not allowed.")
}
