package identity

import "time"

// Provider names an external OAuth identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// OAuthProfile is the identity a provider asserted during its callback.
type OAuthProfile struct {
	Email         string
	Name          string
	Image         string
	EmailVerified EmailVerification
}

// OAuthLink ties a principal to a provider account. It only lives for the
// duration of a callback; the backend persists it.
type OAuthLink struct {
	Provider          Provider
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         int64
	TokenType         string
	Scope             string
	IDToken           string
}

// OAuthSync is the body posted to the backend's OAuth upsert endpoint.
type OAuthSync struct {
	Email             string             `json:"email"`
	Name              string             `json:"name,omitempty"`
	Image             string             `json:"image,omitempty"`
	Provider          Provider           `json:"provider"`
	ProviderAccountID string             `json:"providerAccountId"`
	AccessToken       string             `json:"access_token,omitempty"`
	RefreshToken      string             `json:"refresh_token,omitempty"`
	ExpiresAt         int64              `json:"expires_at,omitempty"`
	TokenType         string             `json:"token_type,omitempty"`
	Scope             string             `json:"scope,omitempty"`
	IDToken           string             `json:"id_token,omitempty"`
	EmailVerified     *EmailVerification `json:"email_verified,omitempty"`
}

// profileNormalizers adjusts provider profiles before they are synced.
// GitHub does not reliably expose verification state, so a completed GitHub
// login counts as verified at the time of the login.
var profileNormalizers = map[Provider]func(OAuthProfile, time.Time) OAuthProfile{
	ProviderGitHub: func(p OAuthProfile, now time.Time) OAuthProfile {
		p.EmailVerified = VerifiedAt(now)
		return p
	},
}

// NormalizeProfile applies the provider-specific rules to profile.
func NormalizeProfile(provider Provider, profile OAuthProfile, now time.Time) OAuthProfile {
	profile.Email = NormalizeEmail(profile.Email)
	if normalize, ok := profileNormalizers[provider]; ok {
		profile = normalize(profile, now)
	}
	return profile
}

// NewOAuthSync builds the upsert request for a provider login. Data the
// backend already holds for an existing user wins over the provider profile;
// verification state is only sent for accounts the backend does not know yet.
func NewOAuthSync(profile OAuthProfile, link OAuthLink, existing *Principal, now time.Time) OAuthSync {
	profile = NormalizeProfile(link.Provider, profile, now)

	req := OAuthSync{
		Email:             profile.Email,
		Name:              profile.Name,
		Image:             profile.Image,
		Provider:          link.Provider,
		ProviderAccountID: link.ProviderAccountID,
		AccessToken:       link.AccessToken,
		RefreshToken:      link.RefreshToken,
		ExpiresAt:         link.ExpiresAt,
		TokenType:         link.TokenType,
		Scope:             link.Scope,
		IDToken:           link.IDToken,
	}

	if existing == nil {
		verification := profile.EmailVerified
		req.EmailVerified = &verification
		return req
	}

	if existing.Name != "" {
		req.Name = existing.Name
	}
	if existing.Image != "" {
		req.Image = existing.Image
	}
	return req
}
