package session

import (
	"net/http"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "session-token"

// CookieManager builds and reads the session cookie.
type CookieManager struct {
	name   string
	secure bool
	maxAge time.Duration
}

// NewCookieManager returns a manager issuing 30-day cookies. secure should be
// true in production so the cookie is only sent over HTTPS.
func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{
		name:   CookieName,
		secure: secure,
		maxAge: DefaultTTL,
	}
}

// Build returns the cookie carrying token.
func (m *CookieManager) Build(token string) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.maxAge / time.Second),
	}
}

func (m *CookieManager) withMaxAge(maxAge time.Duration) *CookieManager {
	clone := *m
	clone.maxAge = maxAge
	return &clone
}

// Header returns the Set-Cookie header value for token.
func (m *CookieManager) Header(token string) string {
	return m.Build(token).String()
}

// Clear returns a cookie that removes the session from the browser.
func (m *CookieManager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

// Read extracts the session token from r.
func (m *CookieManager) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
