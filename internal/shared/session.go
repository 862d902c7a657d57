package shared

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionCookie names the console session cookie.
const DefaultSessionCookie = "fieldops_console"

// SessionManager issues the anonymous console session id. The id only scopes
// pending table actions; it carries no identity.
type SessionManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
	newID      func() string
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{cookieName: cookieName, ttl: ttl, secure: secure, newID: uuid.NewString}
}

// Load returns the session id carried by r, or a fresh one with isNew set.
func (sm *SessionManager) Load(r *http.Request) (id string, isNew bool) {
	cookie, err := r.Cookie(sm.cookieName)
	if err == nil {
		if _, perr := uuid.Parse(cookie.Value); perr == nil {
			return cookie.Value, false
		}
	}
	return sm.newID(), true
}

// Commit writes the session cookie.
func (sm *SessionManager) Commit(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
}

// Middleware attaches the session id to the request context, issuing a
// cookie when the request has none.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, isNew := sm.Load(r)
		if isNew {
			sm.Commit(w, id)
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), id)))
	})
}
