// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/dalemusser/producthub/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs a failure with request context and writes the matching
// JSON error. userMsg is what the client sees; err never leaves the server.
type ErrorLogger struct {
	Log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID))
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	return fs
}

// LogServerError logs at Error and responds 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, e.fields(r, err)...)
	JSON(w, http.StatusInternalServerError, CodeInternal, userMsg)
}

// LogBadRequest logs at Warn and responds 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	JSON(w, http.StatusBadRequest, CodeBadRequest, userMsg)
}

// LogForbidden logs at Warn and responds 403.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, msg string, userMsg string) {
	e.Log.Warn(msg, e.fields(r, nil)...)
	JSON(w, http.StatusForbidden, CodeForbidden, userMsg)
}
