package session

import (
	"net/http"
	"time"

	"collabit/internal/identity"
)

// Issued is a minted session ready to be sent to the client.
type Issued struct {
	Token     string
	TokenID   string
	Cookie    *http.Cookie
	ExpiresAt time.Time
}

// Manager ties the codec and cookie policy together. It is the only place a
// session token is created.
type Manager struct {
	codec   *Codec
	cookies *CookieManager
}

// NewManager creates a Manager. Issued cookies expire together with the
// tokens they carry.
func NewManager(codec *Codec, cookies *CookieManager) *Manager {
	return &Manager{codec: codec, cookies: cookies.withMaxAge(codec.TTL())}
}

// Issue mints a token and cookie for principal.
func (m *Manager) Issue(principal identity.Principal, provider identity.Provider) (Issued, error) {
	token, err := m.codec.Encode(principal, provider)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		Token:     token.Value,
		TokenID:   token.ID,
		Cookie:    m.cookies.Build(token.Value),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// FromRequest returns the verified claims carried by r, or nil when the
// request has no valid session.
func (m *Manager) FromRequest(r *http.Request) *Claims {
	token, ok := m.cookies.Read(r)
	if !ok {
		return nil
	}
	return m.codec.Decode(token)
}

// Clear writes the logout cookie to w.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookies.Clear())
}
