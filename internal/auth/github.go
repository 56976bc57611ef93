package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"collabit/internal/identity"
)

const defaultGitHubAPIURL = "https://api.github.com"

// GitHubProvider handles GitHub OAuth 2.0 authentication.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// GitHubOption configures a GitHubProvider.
type GitHubOption func(*GitHubProvider)

// WithGitHubEndpoints points the provider at alternative OAuth and API hosts.
func WithGitHubEndpoints(endpoint oauth2.Endpoint, apiURL string) GitHubOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
		p.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// NewGitHubProvider returns a provider for GitHub's OAuth apps.
func NewGitHubProvider(clientID, clientSecret, redirectURL string, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: defaultGitHubAPIURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubProvider) Name() identity.Provider {
	return identity.ProviderGitHub
}

// AuthURL generates the GitHub authorization URL with the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades the code for a token and loads the user's profile. When the
// profile hides the email address the primary verified address is used.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (ProviderLogin, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return ProviderLogin{}, fmt.Errorf("token exchange: %w", err)
	}

	client := p.config.Client(ctx, token)

	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return ProviderLogin{}, fmt.Errorf("fetch github user: %w", err)
	}
	if user.ID == 0 {
		return ProviderLogin{}, fmt.Errorf("fetch github user: missing id")
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return ProviderLogin{}, fmt.Errorf("fetch github emails: %w", err)
		}
		email = primaryEmail(emails)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return ProviderLogin{
		Profile: identity.OAuthProfile{
			Email: email,
			Name:  name,
			Image: user.AvatarURL,
		},
		Link: linkFromToken(identity.ProviderGitHub, strconv.FormatInt(user.ID, 10), token),
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
