// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	loginstore "github.com/dalemusser/producthub/internal/app/store/logins"
	"github.com/dalemusser/producthub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/producthub/internal/app/store/users"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/auth"
	"github.com/dalemusser/producthub/internal/app/system/normalize"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultUserInfoURL is Google's OAuth2 v2 userinfo endpoint.
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	stateTTL      = 10 * time.Minute
	defaultReturn = "/dashboard"
)

// Handler handles Google OAuth authentication.
type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	States     *oauthstate.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
	Audit      *auditlog.Logger

	OAuth       *oauth2.Config
	UserInfoURL string
}

// NewHandler creates a Google OAuth handler. redirectURL is the absolute
// callback URL, e.g. "https://producthub.example.com/auth/google/callback".
func NewHandler(
	users *userstore.Store,
	logins *loginstore.Store,
	states *oauthstate.Store,
	sessionMgr *auth.SessionManager,
	clientID, clientSecret, redirectURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:      users,
		Logins:     logins,
		States:     states,
		SessionMgr: sessionMgr,
		Log:        logger,
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: DefaultUserInfoURL,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.OAuth.ClientID != "" && h.OAuth.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin redirects to Google's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.fail(w, r, "google_not_configured")
		return
	}

	state := generateState()
	returnURL := urlutil.SafeReturn(query.Get(r, "return"), "", defaultReturn)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.States.Save(ctx, state, returnURL, time.Now().UTC().Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.fail(w, r, "internal")
		return
	}

	url := h.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCallback completes the flow: validate state, exchange the code,
// resolve or create the user and start a session.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if e := query.Get(r, "error"); e != "" {
		h.Log.Info("Google OAuth denied", zap.String("error", e))
		h.fail(w, r, "google_denied")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	returnURL, valid, err := h.States.Validate(ctx, query.Get(r, "state"))
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.fail(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.fail(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.fail(w, r, "invalid_code")
		return
	}
	token, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		h.Log.Error("OAuth code exchange failed", zap.Error(err))
		h.fail(w, r, "token_exchange")
		return
	}

	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.fail(w, r, "user_info")
		return
	}
	if info.Email == "" || !info.EmailVerified {
		h.Log.Warn("Google account without a verified email", zap.String("google_id", info.ID))
		h.fail(w, r, "email_unverified")
		return
	}

	u, err := h.resolveUser(ctx, info)
	if err != nil {
		h.Log.Error("failed to resolve Google user", zap.Error(err), zap.String("email", info.Email))
		h.fail(w, r, "internal")
		return
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := h.Users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		h.Log.Warn("google login: update last_login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, loginstore.ProviderGoogle); err != nil {
		h.Log.Warn("google login: record login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
	if err := h.SessionMgr.Login(w, r, u); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		h.fail(w, r, "internal")
		return
	}

	h.Log.Info("user signed in with Google", zap.String("user_id", u.ID.Hex()))
	h.Audit.LoginSuccess(ctx, r, u.ID, loginstore.ProviderGoogle)
	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", defaultReturn), http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := h.OAuth.Client(ctx, token)

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	info.Email = normalize.Email(info.Email)
	return &info, nil
}

// resolveUser finds the account for a Google identity: first by Google
// id, then by email (linking the id), and otherwise creates a new
// team_member.
func (h *Handler) resolveUser(ctx context.Context, info *googleUserInfo) (models.User, error) {
	u, err := h.Users.GetByGoogleID(ctx, info.ID)
	if err == nil {
		return *u, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, err
	}

	u, err = h.Users.GetByEmail(ctx, info.Email)
	switch {
	case err == nil:
		if err := h.Users.LinkGoogle(ctx, u.ID, info.ID); err != nil {
			return models.User{}, err
		}
		u.GoogleID = info.ID
		return *u, nil
	case !errors.Is(err, userstore.ErrNotFound):
		return models.User{}, err
	}

	name := normalize.Name(info.Name)
	if name == "" {
		name = "User"
	}
	created, err := h.Users.Create(ctx, models.User{
		Email:       info.Email,
		DisplayName: name,
		Role:        models.RoleTeamMember,
		GoogleID:    info.ID,
	})
	if err != nil {
		return models.User{}, err
	}
	h.Log.Info("account created from Google sign-in", zap.String("user_id", created.ID.Hex()))
	return created, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// fail records the failed step and sends the browser back to /login.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code string) {
	h.Audit.GoogleLoginFailed(r.Context(), r, code)
	http.Redirect(w, r, "/login?error="+code, http.StatusSeeOther)
}

// generateState returns a random URL-safe state string, falling back to a
// random UUID if the system source fails.
func generateState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
