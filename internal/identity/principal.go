package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Principal is the authenticated identity as known to the remote backend.
type Principal struct {
	ID            string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Email         string            `json:"email"`
	Image         string            `json:"image,omitempty"`
	EmailVerified EmailVerification `json:"emailVerified"`
}

// NormalizeEmail trims and lower-cases an email address. Emails are unique
// case-insensitively, so every comparison and outbound call goes through here.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailVerification captures what an identity source asserted about an email
// address: nothing (null), a plain flag, or the time it was verified.
type EmailVerification struct {
	Known    bool
	Verified bool
	At       time.Time
}

// VerifiedAt returns a verification stamped with t.
func VerifiedAt(t time.Time) EmailVerification {
	return EmailVerification{Known: true, Verified: true, At: t.UTC()}
}

// VerifiedFlag returns a verification carrying only a boolean.
func VerifiedFlag(verified bool) EmailVerification {
	return EmailVerification{Known: true, Verified: verified}
}

// MarshalJSON encodes the verification as null, a boolean, or an RFC 3339 timestamp.
func (v EmailVerification) MarshalJSON() ([]byte, error) {
	switch {
	case !v.Known:
		return []byte("null"), nil
	case v.Verified && !v.At.IsZero():
		return json.Marshal(v.At.UTC().Format(time.RFC3339))
	default:
		return json.Marshal(v.Verified)
	}
}

// UnmarshalJSON accepts null, a boolean, or an RFC 3339 timestamp.
func (v *EmailVerification) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = EmailVerification{}
		return nil
	}

	var flag bool
	if err := json.Unmarshal(trimmed, &flag); err == nil {
		*v = VerifiedFlag(flag)
		return nil
	}

	var stamp string
	if err := json.Unmarshal(trimmed, &stamp); err != nil {
		return fmt.Errorf("email verification: unsupported value %s", trimmed)
	}
	if stamp == "" {
		*v = EmailVerification{}
		return nil
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return fmt.Errorf("email verification: %w", err)
	}
	*v = VerifiedAt(at)
	return nil
}
