package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"collabit/internal/identity"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider handles Google OAuth 2.0 / OIDC authentication.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// googleClaims contains the relevant claims from a Google ID token.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogleProvider discovers Google's OIDC configuration and returns a provider.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &GoogleProvider{
		config:   config,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (g *GoogleProvider) Name() identity.Provider {
	return identity.ProviderGoogle
}

// AuthURL generates the consent URL. Consent is always prompted so Google
// returns a refresh token on every login.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the authorization code for tokens and verifies the ID token.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (ProviderLogin, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return ProviderLogin{}, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return ProviderLogin{}, fmt.Errorf("no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ProviderLogin{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return ProviderLogin{}, fmt.Errorf("parse claims: %w", err)
	}

	return googleLogin(claims, token), nil
}

func googleLogin(claims googleClaims, token *oauth2.Token) ProviderLogin {
	return ProviderLogin{
		Profile: identity.OAuthProfile{
			Email:         claims.Email,
			Name:          claims.Name,
			Image:         claims.Picture,
			EmailVerified: identity.VerifiedFlag(claims.EmailVerified),
		},
		Link: linkFromToken(identity.ProviderGoogle, claims.Sub, token),
	}
}
