package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"collabit/internal/identity"
)

func newGitHubServer(t *testing.T, user githubUser, emails []githubEmail) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse token form: %v", err)
		}
		if code := r.Form.Get("code"); code != "auth-code" {
			t.Fatalf("unexpected code %q", code)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer","scope":"read:user,user:email"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer gh-token" {
			t.Fatalf("unexpected authorization header %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(emails)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestGitHubProvider(server *httptest.Server) *GitHubProvider {
	return NewGitHubProvider("client-id", "client-secret", "http://localhost/callback",
		WithGitHubEndpoints(oauth2.Endpoint{
			AuthURL:  server.URL + "/login/oauth/authorize",
			TokenURL: server.URL + "/login/oauth/access_token",
		}, server.URL),
	)
}

func TestGitHubExchangeUsesProfileEmail(t *testing.T) {
	server := newGitHubServer(t, githubUser{ID: 7, Login: "octo", Name: "Octo Cat", Email: "octo@x.com", AvatarURL: "https://img.test/octo.png"}, nil)
	provider := newTestGitHubProvider(server)

	login, err := provider.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}

	if login.Profile.Email != "octo@x.com" || login.Profile.Name != "Octo Cat" {
		t.Fatalf("unexpected profile: %+v", login.Profile)
	}
	if login.Link.Provider != identity.ProviderGitHub || login.Link.ProviderAccountID != "7" {
		t.Fatalf("unexpected link: %+v", login.Link)
	}
	if login.Link.AccessToken != "gh-token" || login.Link.Scope != "read:user,user:email" {
		t.Fatalf("unexpected tokens: %+v", login.Link)
	}
}

func TestGitHubExchangeFallsBackToPrimaryVerifiedEmail(t *testing.T) {
	server := newGitHubServer(t, githubUser{ID: 9, Login: "hidden"}, []githubEmail{
		{Email: "old@x.com", Primary: false, Verified: true},
		{Email: "unverified@x.com", Primary: true, Verified: false},
		{Email: "main@x.com", Primary: true, Verified: true},
	})
	provider := newTestGitHubProvider(server)

	login, err := provider.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}

	if login.Profile.Email != "main@x.com" {
		t.Fatalf("expected primary verified email, got %q", login.Profile.Email)
	}
	if login.Profile.Name != "hidden" {
		t.Fatalf("expected login as name fallback, got %q", login.Profile.Name)
	}
}

func TestGitHubAuthURL(t *testing.T) {
	server := newGitHubServer(t, githubUser{}, nil)
	provider := newTestGitHubProvider(server)

	parsed, err := url.Parse(provider.AuthURL("state-xyz"))
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}
	if parsed.Query().Get("state") != "state-xyz" || parsed.Query().Get("client_id") != "client-id" {
		t.Fatalf("unexpected auth URL %s", parsed)
	}
}

func TestPrimaryEmailWithoutVerifiedAddress(t *testing.T) {
	if got := primaryEmail([]githubEmail{{Email: "a@x.com", Primary: true}}); got != "" {
		t.Fatalf("expected no email, got %q", got)
	}
}
