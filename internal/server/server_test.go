package server

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkdelta/spinstats/internal/repositories"
	"github.com/mkdelta/spinstats/internal/services"
	"github.com/mkdelta/spinstats/internal/sessions"
	"github.com/mkdelta/spinstats/internal/shared"
)

// upstream is a fake Spotify: token endpoint plus the three stats endpoints
// and the profile route. Counters let tests assert that unauthorized
// requests never reach upstream.
type upstream struct {
	server *httptest.Server

	tokenCalls   atomic.Int64
	profileCalls atomic.Int64
	apiCalls     atomic.Int64

	failToken bool
	failAPI   bool

	lastQuery url.Values
}

const upstreamStatsBody = `{"items":[{"name":"Top Thing"}],"total":1}`

func newUpstream() *upstream {
	u := &upstream{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		u.tokenCalls.Add(1)
		if u.failToken {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"upstream_access","refresh_token":"upstream_refresh","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		u.profileCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"spotify_abc","display_name":"Cool Listener","email":"cool@example.com","followers":{"total":7},"images":[{"url":"https://img.example/a.png"}]}`))
	})
	stats := func(w http.ResponseWriter, r *http.Request) {
		u.apiCalls.Add(1)
		u.lastQuery = r.URL.Query()
		if u.failAPI {
			http.Error(w, `{"error":{"status":502}}`, http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamStatsBody))
	}
	mux.HandleFunc("/me/top/artists", stats)
	mux.HandleFunc("/me/top/tracks", stats)
	mux.HandleFunc("/me/player/recently-played", stats)

	u.server = httptest.NewServer(mux)
	return u
}

// testEnv wires real collaborators (sqlite store, session manager, Spotify
// client) against the fake upstream.
type testEnv struct {
	cfg      *shared.Config
	db       *sql.DB
	users    *repositories.UserRepository
	sessions *sessions.Manager
	auth     *AuthHandler
	stats    *StatsHandler
	upstream *upstream
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	up := newUpstream()
	t.Cleanup(up.server.Close)

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "test_client_id"
	cfg.Credentials.Spotify.ClientSecret = "test_client_secret"

	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     cfg.Credentials.Spotify.ClientID,
		"client_secret": cfg.Credentials.Spotify.ClientSecret,
		"token_url":     up.server.URL + "/token",
		"api_base_url":  up.server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create spotify service: %v", err)
	}

	logger := shared.NewLogger(io.Discard)
	sessionManager := sessions.NewManager("test-secret", time.Hour, false)
	users := repositories.NewUserRepository(db)

	return &testEnv{
		cfg:      cfg,
		db:       db,
		users:    users,
		sessions: sessionManager,
		auth:     NewAuthHandler(cfg, spotify, users, sessionManager, logger),
		stats:    NewStatsHandler(spotify, users, sessionManager, logger),
		upstream: up,
	}
}

// do runs a request through the handler, carrying any cookies.
func do(handler http.Handler, method, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// mergeCookies folds newly set cookies over the existing jar.
func mergeCookies(jar []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	for _, c := range jar {
		byName[c.Name] = c
	}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}

	merged := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		merged = append(merged, c)
	}
	return merged
}

// signIn drives login then callback and returns the authenticated cookie jar.
func signIn(t *testing.T, env *testEnv) []*http.Cookie {
	t.Helper()

	loginRec := do(env.auth, http.MethodGet, "/api/auth/login", nil)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d", loginRec.Code)
	}

	var loginBody struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &loginBody); err != nil {
		t.Fatalf("login body does not parse: %v", err)
	}

	authURL, err := url.Parse(loginBody.URL)
	if err != nil {
		t.Fatalf("authorization URL does not parse: %v", err)
	}
	state := authURL.Query().Get("state")

	jar := mergeCookies(nil, loginRec)
	callbackRec := do(env.auth, http.MethodGet, shared.CallbackPath+"?code=good-code&state="+state, jar)
	if callbackRec.Code != http.StatusFound {
		t.Fatalf("callback failed with status %d: %s", callbackRec.Code, callbackRec.Body.String())
	}
	if loc := callbackRec.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %s", loc)
	}

	return mergeCookies(jar, callbackRec)
}

func userCount(t *testing.T, env *testEnv) int {
	t.Helper()

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	return count
}
