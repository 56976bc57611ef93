package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"collabit/internal/auth"
	"collabit/internal/identity"
	"collabit/internal/session"
)

const maxJSONBodyBytes int64 = 64 << 10

var errPayloadTooLarge = errors.New("payload too large")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAuthFailure writes the {success:false,error} body used by the login routes.
func writeAuthFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

// statusForError maps a failed login or proxy call onto an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrVerificationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, identity.ErrBackendUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, identity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageForError returns text that is safe to show the user.
func messageForError(err error) string {
	if errors.Is(err, session.ErrEncoding) || statusForError(err) == http.StatusInternalServerError {
		return "unexpected error"
	}
	return auth.Reason(err)
}

// clientIPFromRequest returns the caller address. RemoteAddr only carries a
// forwarded address when the request came through a trusted proxy.
func clientIPFromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
