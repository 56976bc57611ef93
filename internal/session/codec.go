package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"collabit/internal/identity"
)

// DefaultTTL is how long an issued token stays valid. There is no sliding
// expiry; a token is only refreshed by logging in again.
const DefaultTTL = 30 * 24 * time.Hour

const issuer = "collabit"

var (
	// ErrEncoding is returned when a token cannot be minted.
	ErrEncoding = errors.New("session token encoding failed")
	// ErrEmptySubject is returned when encoding a principal without an id.
	ErrEmptySubject = fmt.Errorf("%w: principal id is empty", ErrEncoding)
	// ErrEmptySecret is returned when a codec is built without a signing secret.
	ErrEmptySecret = errors.New("session signing secret is empty")
)

// Claims is the payload carried by a session token.
type Claims struct {
	Name          string                     `json:"name,omitempty"`
	Email         string                     `json:"email"`
	Picture       string                     `json:"picture,omitempty"`
	EmailVerified identity.EmailVerification `json:"email_verified"`
	Provider      identity.Provider          `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Principal rebuilds the identity cached in the token.
func (c *Claims) Principal() identity.Principal {
	return identity.Principal{
		ID:            c.Subject,
		Name:          c.Name,
		Email:         c.Email,
		Image:         c.Picture,
		EmailVerified: c.EmailVerified,
	}
}

// Token is a freshly signed session token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Codec signs and verifies session tokens with a single HS256 secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a Codec for secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the lifetime of tokens issued by the codec.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode mints a token for principal. provider is empty for password logins.
func (c *Codec) Encode(principal identity.Principal, provider identity.Provider) (Token, error) {
	if principal.ID == "" {
		return Token{}, ErrEmptySubject
	}

	now := c.now()
	expiresAt := now.Add(c.ttl)
	id := uuid.NewString()

	claims := Claims{
		Name:          principal.Name,
		Email:         identity.NormalizeEmail(principal.Email),
		Picture:       principal.Image,
		EmailVerified: principal.EmailVerified,
		Provider:      provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principal.ID,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	return Token{Value: signed, ID: id, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Parse verifies token and returns its claims. It fails on a bad signature,
// a malformed token, an unexpected algorithm, or an expired token.
func (c *Codec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("parse session token: missing subject")
	}
	return claims, nil
}

// Decode is Parse for callers that only care whether a session exists.
func (c *Codec) Decode(token string) *Claims {
	if token == "" {
		return nil
	}
	claims, err := c.Parse(token)
	if err != nil {
		return nil
	}
	return claims
}
