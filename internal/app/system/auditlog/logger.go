// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/producthub/internal/app/store/audit"
	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations accepted per category.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether m is a known destination.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config picks a destination per event category.
type Config struct {
	// Auth covers sign-in, sign-up and sign-out.
	Auth string
	// Admin covers user management and product/feedback moderation.
	Admin string
}

// Logger records audit events to MongoDB and/or zap. A nil *Logger is a
// no-op so handlers and tests can leave it unset.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to its category's mode. Unknown categories
// go everywhere. Storage errors are logged, never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	mode := ModeAll
	switch event.Category {
	case audit.CategoryAuth:
		mode = l.config.Auth
	case audit.CategoryAdmin:
		mode = l.config.Admin
	}
	if mode == ModeOff {
		return
	}
	if mode == ModeAll || mode == ModeLog {
		l.logToZap(event)
	}
	if (mode == ModeAll || mode == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func fromRequest(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        loginstore.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

func oid(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in. provider is password or google.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, provider string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = oid(userID)
	e.Details = map[string]string{"provider": provider}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected sign-in. userID is zero when the email is
// unknown.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID primitive.ObjectID, email, reason string) {
	e := fromRequest(r, audit.CategoryAuth, eventType, false)
	e.UserID = oid(userID)
	e.FailureReason = reason
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// GoogleLoginFailed logs a Google sign-in that stopped at step.
func (l *Logger) GoogleLoginFailed(ctx context.Context, r *http.Request, step string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventGoogleLoginFailed, false)
	e.FailureReason = step
	l.Log(ctx, e)
}

// Logout logs a sign-out. userID may be zero for a request without a session.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLogout, true)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

// Signup logs account creation.
func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, role models.Role) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventSignup, true)
	e.UserID = oid(userID)
	e.Details = map[string]string{"role": string(role)}
	l.Log(ctx, e)
}

// --- Admin Events ---

// RoleChanged logs an admin changing a user's role.
func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, role models.Role) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventUserRoleChanged, true)
	e.ActorID = oid(actorID)
	e.UserID = oid(userID)
	e.Details = map[string]string{"role": string(role)}
	l.Log(ctx, e)
}

// UserDeleted logs an admin deleting a user.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventUserDeleted, true)
	e.ActorID = oid(actorID)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

// ProductChanged logs a product create, update or delete; eventType picks
// which.
func (l *Logger) ProductChanged(ctx context.Context, r *http.Request, eventType string, actorID, productID primitive.ObjectID, name string) {
	e := fromRequest(r, audit.CategoryAdmin, eventType, true)
	e.ActorID = oid(actorID)
	e.Details = map[string]string{"product_id": productID.Hex(), "name": name}
	l.Log(ctx, e)
}

// FeedbackStatusChanged logs an admin moving feedback to status.
func (l *Logger) FeedbackStatusChanged(ctx context.Context, r *http.Request, actorID, feedbackID primitive.ObjectID, status models.FeedbackStatus) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventFeedbackStatusChanged, true)
	e.ActorID = oid(actorID)
	e.Details = map[string]string{"feedback_id": feedbackID.Hex(), "status": string(status)}
	l.Log(ctx, e)
}
