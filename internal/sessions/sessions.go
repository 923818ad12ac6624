// package sessions implements server-side cookie sessions for the web service.
//
// Session state lives in process memory and is keyed by an opaque token. The
// cookie carries the token plus an HMAC signature so a tampered cookie reads
// as no session rather than somebody else's.
//
// [Manager.Get] and [Manager.Begin] hand out snapshots: the stored session is
// only ever touched under the manager's lock, so concurrent requests sharing
// one cookie never observe a half-written session.
package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkdelta/spinstats/internal/models"
	"github.com/mkdelta/spinstats/internal/shared"
)

// CookieName is the session cookie issued to browsers.
const CookieName = "spinstats_session"

// Session is the server-held state bound to one browser.
//
// A session is authenticated only when both the flag is set and a user id is
// present; everything else is treated as unauthenticated, never as an error.
type Session struct {
	Token         string
	UserID        int64
	SpotifyID     string
	Authenticated bool
	State         string // OAuth state parked between login and callback
	ExpiresAt     time.Time
}

// IsAuthenticated reports whether the session is bound to a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated && s.UserID != 0
}

// Manager owns all live sessions and the cookie handling around them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	secret   []byte
	maxAge   time.Duration
	secure   bool
}

// NewManager creates a session [Manager].
//
// The secret signs cookie values; maxAge bounds session lifetime; secure
// controls the cookie's Secure attribute and should be set in production.
func NewManager(secret string, maxAge time.Duration, secure bool) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		secret:   []byte(secret),
		maxAge:   maxAge,
		secure:   secure,
	}
}

// Begin returns a snapshot of the request's live session, or creates a fresh
// one and sets its cookie on the response.
func (m *Manager) Begin(w http.ResponseWriter, r *http.Request) *Session {
	if session := m.Get(r); session != nil {
		return session
	}

	token := shared.GenerateID()
	session := Session{
		Token:     token,
		ExpiresAt: time.Now().Add(m.maxAge),
	}

	stored := session
	m.mu.Lock()
	m.sessions[token] = &stored
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(token),
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return &session
}

// Get returns a snapshot of the session for the request's cookie, or nil when
// the cookie is missing, the signature is invalid, or the session is gone or
// expired. The snapshot is private to the caller; mutation goes through the
// manager.
func (m *Manager) Get(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	token, ok := m.verify(cookie.Value)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		delete(m.sessions, token)
		return nil
	}

	snapshot := *session
	return &snapshot
}

// Bind associates the session with an authenticated user. The user id,
// Spotify identity, and authenticated flag are set on the stored session
// under one lock, so any snapshot taken by another request is either fully
// bound or not bound at all. The caller's snapshot is updated to match.
func (m *Manager) Bind(session *Session, user *models.User) {
	m.mu.Lock()
	if stored, ok := m.sessions[session.Token]; ok {
		stored.UserID = user.ID
		stored.SpotifyID = user.SpotifyID
		stored.Authenticated = true
		stored.State = ""
	}
	m.mu.Unlock()

	session.UserID = user.ID
	session.SpotifyID = user.SpotifyID
	session.Authenticated = true
	session.State = ""
}

// SetState parks the OAuth state parameter on the session.
func (m *Manager) SetState(session *Session, state string) {
	m.mu.Lock()
	if stored, ok := m.sessions[session.Token]; ok {
		stored.State = state
	}
	m.mu.Unlock()

	session.State = state
}

// Destroy removes the session and expires its cookie. A nil session just
// expires the cookie, so logging out without a session still succeeds.
func (m *Manager) Destroy(w http.ResponseWriter, session *Session) {
	if session != nil {
		m.mu.Lock()
		delete(m.sessions, session.Token)
		m.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len returns the number of live sessions. Used by tests and metrics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions. Call periodically from the server loop.
func (m *Manager) Sweep() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for token, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
}

// sign produces the cookie value "token.signature".
func (m *Manager) sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	return token + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify checks a cookie value's signature and returns the embedded token.
func (m *Manager) verify(value string) (string, bool) {
	token, sig, found := strings.Cut(value, ".")
	if !found || token == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}

	return token, true
}
