package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/oauth2"

	"collabit/internal/identity"
)

// ErrUnknownProvider is returned when a login names a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// Provider is an external OAuth identity provider.
type Provider interface {
	Name() identity.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (ProviderLogin, error)
}

// ProviderLogin is what a provider asserted after a successful code exchange.
type ProviderLogin struct {
	Profile identity.OAuthProfile
	Link    identity.OAuthLink
}

// Providers indexes the configured providers by name.
type Providers map[identity.Provider]Provider

// NewProviders builds a registry, skipping nil entries.
func NewProviders(providers ...Provider) Providers {
	registry := make(Providers, len(providers))
	for _, p := range providers {
		if p != nil {
			registry[p.Name()] = p
		}
	}
	return registry
}

// Lookup returns the provider called name.
func (p Providers) Lookup(name string) (Provider, error) {
	provider, ok := p[identity.Provider(name)]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return provider, nil
}

func linkFromToken(provider identity.Provider, accountID string, token *oauth2.Token) identity.OAuthLink {
	link := identity.OAuthLink{
		Provider:          provider,
		ProviderAccountID: accountID,
	}
	if token == nil {
		return link
	}

	link.AccessToken = token.AccessToken
	link.RefreshToken = token.RefreshToken
	link.TokenType = token.Type()
	if !token.Expiry.IsZero() {
		link.ExpiresAt = token.Expiry.Unix()
	}
	if scope, ok := token.Extra("scope").(string); ok {
		link.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		link.IDToken = idToken
	}
	return link
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
