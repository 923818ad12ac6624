package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mkdelta/spinstats/internal/models"
	"github.com/mkdelta/spinstats/internal/repositories"
	"github.com/mkdelta/spinstats/internal/services"
	"github.com/mkdelta/spinstats/internal/sessions"
	"github.com/mkdelta/spinstats/internal/shared"
)

const authFailureRedirect = "/?error=auth_failure"

// AuthHandler handles the OAuth login, callback, logout, and current-user
// routes. Implements the [Handler] interface for registration with a Router.
type AuthHandler struct {
	config   *shared.Config
	spotify  services.Service
	users    *repositories.UserRepository
	sessions *sessions.Manager
	logger   *log.Logger
}

// NewAuthHandler creates a new [AuthHandler] with its collaborators injected.
func NewAuthHandler(config *shared.Config, spotify services.Service, users *repositories.UserRepository, sessionManager *sessions.Manager, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		config:   config,
		spotify:  spotify,
		users:    users,
		sessions: sessionManager,
		logger:   logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"/api/auth/login",
		shared.CallbackPath,
		"/api/auth/logout",
		"/api/auth/me",
	}
}

// ServeHTTP dispatches to the route-specific handlers.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/login":
		h.handleLogin(w, r)
	case shared.CallbackPath:
		h.handleCallback(w, r)
	case "/api/auth/logout":
		h.handleLogout(w, r)
	case "/api/auth/me":
		h.handleMe(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleLogin builds the Spotify authorization URL and returns it to the
// caller; the browser performs the redirect itself.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.config.Credentials.Spotify.ClientID == "" {
		h.logger.Error("spotify client id not configured")
		writeMessage(w, http.StatusInternalServerError, "Spotify client id is not configured")
		return
	}

	session := h.sessions.Begin(w, r)
	state := shared.GenerateID()
	h.sessions.SetState(session, state)

	redirectURI := h.config.RedirectURI(r.Host)
	authURL := h.spotify.AuthCodeURL(state, redirectURI)

	writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

// handleCallback exchanges the authorization code, fetches the profile,
// upserts the user, and binds the session.
//
// Every failure redirects to the frontend's error indicator; a failed login
// is never fatal to the server.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("callback without authorization code",
			"error", r.URL.Query().Get("error"))
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	creds := h.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		h.logger.Error("spotify credentials not configured")
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	session := h.sessions.Begin(w, r)
	if session.State != "" && session.State != r.URL.Query().Get("state") {
		h.logger.Warn("state mismatch on callback")
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	// Must be byte-identical to the URI used at login or Spotify rejects
	// the exchange.
	redirectURI := h.config.RedirectURI(r.Host)

	token, err := h.spotify.Exchange(r.Context(), code, redirectURI)
	if err != nil {
		h.logger.Error("token exchange failed", "err", err)
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	profile, err := h.spotify.UserProfile(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("profile fetch failed", "err", err)
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	user, err := h.users.Upsert(&models.User{
		SpotifyID:    profile.ID,
		DisplayName:  profile.DisplayName,
		Email:        profile.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry.Unix(),
		ProfileImage: profile.FirstImage(),
		Followers:    profile.FollowerCount(),
	})
	if err != nil {
		h.logger.Error("user upsert failed", "err", err)
		http.Redirect(w, r, authFailureRedirect, http.StatusFound)
		return
	}

	h.sessions.Bind(session, user)
	h.logger.Info("user signed in", "user_id", user.ID, "spotify_id", user.SpotifyID)

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout destroys the current session. A request with no session is a
// successful no-op.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, h.sessions.Get(r))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// handleMe reports the signed-in user, or 401 with an optional reason when
// the session or token no longer holds.
func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(r)
	if !session.IsAuthenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}

	user, err := h.users.Get(session.UserID)
	if err != nil {
		if !errors.Is(err, shared.ErrUserNotFound) {
			h.logger.Error("user lookup failed", "err", err, "user_id", session.UserID)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}

	if user.TokenExpired(timeNow()) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"authenticated": false,
			"reason":        "token_expired",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":           user.ID,
			"externalId":   user.SpotifyID,
			"displayName":  user.DisplayName,
			"email":        user.Email,
			"profileImage": user.ProfileImage,
			"followers":    user.Followers,
		},
	})
}
