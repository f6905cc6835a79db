package pdfquiz

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	// SessionCookieName is the cookie carrying the session key
	SessionCookieName = "quiz_session_token"
	sessionTokenField = "token"
)

// SessionIdentity issues, reads and revokes the session key carried in a
// signed cookie.
type SessionIdentity struct {
	store *sessions.CookieStore
}

// NewSessionIdentity creates a cookie-backed identity. The cookie lives as
// long as a cache entry.
func NewSessionIdentity(secret []byte, ttl time.Duration, secure bool) *SessionIdentity {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := sessions.NewCookieStore(secret)
	// MaxAge also bounds how long the signed value verifies
	store.MaxAge(int(ttl / time.Second))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteStrictMode
	return &SessionIdentity{store: store}
}

// NewSessionKey returns a fresh random session key
func NewSessionKey() string {
	return uuid.NewString()
}

// Issue generates a new key and attaches it to the response
func (si *SessionIdentity) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	session, _ := si.store.Get(r, SessionCookieName)
	key := NewSessionKey()
	session.Values[sessionTokenField] = key
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session cookie: %w", err)
	}
	return key, nil
}

// Read returns the key carried by the request, if any. A cookie that fails
// verification counts as absent.
func (si *SessionIdentity) Read(r *http.Request) (string, bool) {
	session, err := si.store.Get(r, SessionCookieName)
	if err != nil {
		return "", false
	}
	key, ok := session.Values[sessionTokenField].(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Revoke detaches the key from the client
func (si *SessionIdentity) Revoke(w http.ResponseWriter, r *http.Request) error {
	session, _ := si.store.Get(r, SessionCookieName)
	delete(session.Values, sessionTokenField)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session cookie: %w", err)
	}
	return nil
}
