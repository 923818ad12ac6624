package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mkdelta/spinstats/internal/models"
	"github.com/mkdelta/spinstats/internal/repositories"
	"github.com/mkdelta/spinstats/internal/services"
	"github.com/mkdelta/spinstats/internal/sessions"
	"github.com/mkdelta/spinstats/internal/shared"
)

// timeNow is stubbed in tests that exercise token expiry.
var timeNow = time.Now

// StatsHandler serves the authenticated pass-through endpoints. Each route
// gates on the session, resolves the stored user, rejects expired tokens,
// validates parameters, and forwards the request upstream with the user's
// bearer token. Upstream bodies are returned verbatim.
type StatsHandler struct {
	spotify  services.Service
	users    *repositories.UserRepository
	sessions *sessions.Manager
	logger   *log.Logger
}

// NewStatsHandler creates a new [StatsHandler] with its collaborators injected.
func NewStatsHandler(spotify services.Service, users *repositories.UserRepository, sessionManager *sessions.Manager, logger *log.Logger) *StatsHandler {
	return &StatsHandler{
		spotify:  spotify,
		users:    users,
		sessions: sessionManager,
		logger:   logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatsHandler) Routes() []string {
	return []string{
		"/api/me/top/artists",
		"/api/me/top/tracks",
		"/api/me/player/recently-played",
	}
}

// ServeHTTP authorizes the caller, then proxies to the matching upstream
// endpoint. No upstream call happens for an unauthorized request.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorize(r)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Unauthorized",
				"reason":  "token_expired",
			})
			return
		}
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))

	var body []byte

	switch r.URL.Path {
	case "/api/me/top/artists":
		timeRange, rangeErr := services.ParseTimeRange(r.URL.Query().Get("time_range"))
		if rangeErr != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid time_range parameter")
			return
		}
		body, err = h.spotify.TopArtists(r.Context(), user.AccessToken, timeRange, limit)
	case "/api/me/top/tracks":
		timeRange, rangeErr := services.ParseTimeRange(r.URL.Query().Get("time_range"))
		if rangeErr != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid time_range parameter")
			return
		}
		body, err = h.spotify.TopTracks(r.Context(), user.AccessToken, timeRange, limit)
	case "/api/me/player/recently-played":
		// History has no time range dimension.
		body, err = h.spotify.RecentlyPlayed(r.Context(), user.AccessToken, limit)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		h.logger.Error("upstream request failed", "path", r.URL.Path, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch data from Spotify")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// authorize resolves the request to a user with a live token, returning
// [shared.ErrNotAuthenticated] or [shared.ErrTokenExpired] when it cannot.
//
// A session pointing at an unknown user id is stale and reads as
// unauthorized, not as a server error.
func (h *StatsHandler) authorize(r *http.Request) (*models.User, error) {
	session := h.sessions.Get(r)
	if !session.IsAuthenticated() {
		return nil, shared.ErrNotAuthenticated
	}

	user, err := h.users.Get(session.UserID)
	if err != nil {
		if !errors.Is(err, shared.ErrUserNotFound) {
			h.logger.Error("user lookup failed", "err", err, "user_id", session.UserID)
		}
		return nil, shared.ErrNotAuthenticated
	}

	if user.TokenExpired(timeNow()) {
		return nil, shared.ErrTokenExpired
	}

	return user, nil
}

// parseLimit parses the limit query parameter, defaulting to 20 when absent
// or unparsable.
func parseLimit(value string) int {
	if value == "" {
		return 20
	}
	limit, err := strconv.Atoi(value)
	if err != nil {
		return 20
	}
	return limit
}
