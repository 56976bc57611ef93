package session

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// SecretSource records where the signing secret came from so startup can warn
// about anything other than an operator-provided value.
type SecretSource int

const (
	SecretConfigured SecretSource = iota
	SecretDevelopmentFallback
	SecretEphemeral
)

func (s SecretSource) String() string {
	switch s {
	case SecretConfigured:
		return "configured"
	case SecretDevelopmentFallback:
		return "development-fallback"
	case SecretEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// developmentSecret is only ever used when APP_ENV=development.
const developmentSecret = "collabit-development-signing-secret-do-not-use-in-production"

const ephemeralSecretBytes = 32

// ResolveSecret picks the process-wide signing secret. A configured value
// always wins. Without one, development gets a fixed well-known secret and
// every other environment gets a random secret that dies with the process.
func ResolveSecret(configured string, development bool) ([]byte, SecretSource, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return []byte(secret), SecretConfigured, nil
	}

	if development {
		return []byte(developmentSecret), SecretDevelopmentFallback, nil
	}

	secret := make([]byte, ephemeralSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, SecretEphemeral, fmt.Errorf("generate ephemeral signing secret: %w", err)
	}
	return secret, SecretEphemeral, nil
}
