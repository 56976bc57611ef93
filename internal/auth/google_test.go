package auth

import (
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"collabit/internal/identity"
)

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}
	state2, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}
	if state1 == "" || state2 == "" {
		t.Fatal("expected non-empty state")
	}
	if state1 == state2 {
		t.Fatal("expected unique state values")
	}
}

func TestGoogleAuthURLRequestsConsentAndOfflineAccess(t *testing.T) {
	provider := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     "client-id",
			RedirectURL:  "http://localhost/callback",
			Endpoint:     oauth2.Endpoint{AuthURL: "https://auth.test/oauth"},
			Scopes:       []string{"openid"},
			ClientSecret: "secret",
		},
	}

	authURL := provider.AuthURL("state123")
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}

	query := parsed.Query()
	if prompt := query.Get("prompt"); prompt != "consent" {
		t.Fatalf("expected prompt=consent, got %q", prompt)
	}
	if access := query.Get("access_type"); access != "offline" {
		t.Fatalf("expected access_type=offline, got %q", access)
	}
	if state := query.Get("state"); state != "state123" {
		t.Fatalf("expected state to round trip, got %q", state)
	}
}

func TestGoogleLoginMapsClaimsAndTokens(t *testing.T) {
	expiry := time.Unix(1900000000, 0)
	token := (&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}).WithExtra(map[string]any{"id_token": "raw-id-token", "scope": "openid email profile"})

	login := googleLogin(googleClaims{
		Sub:           "g-123",
		Email:         "a@x.com",
		EmailVerified: true,
		Name:          "A",
		Picture:       "https://img.test/a.png",
	}, token)

	if login.Link.Provider != identity.ProviderGoogle || login.Link.ProviderAccountID != "g-123" {
		t.Fatalf("unexpected link identity: %+v", login.Link)
	}
	if login.Link.RefreshToken != "refresh" || login.Link.IDToken != "raw-id-token" || login.Link.Scope != "openid email profile" {
		t.Fatalf("unexpected link tokens: %+v", login.Link)
	}
	if login.Link.ExpiresAt != expiry.Unix() {
		t.Fatalf("expected expires_at %d, got %d", expiry.Unix(), login.Link.ExpiresAt)
	}
	if !login.Profile.EmailVerified.Known || !login.Profile.EmailVerified.Verified {
		t.Fatalf("expected verified flag, got %+v", login.Profile.EmailVerified)
	}
	if login.Profile.Image != "https://img.test/a.png" {
		t.Fatalf("unexpected image %q", login.Profile.Image)
	}
}

func TestProvidersLookup(t *testing.T) {
	github := NewGitHubProvider("id", "secret", "http://localhost/callback")
	providers := NewProviders(github, nil)

	found, err := providers.Lookup("github")
	if err != nil || found != github {
		t.Fatalf("expected github provider, got %v (err %v)", found, err)
	}
	if _, err := providers.Lookup("gitlab"); err != ErrUnknownProvider {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
