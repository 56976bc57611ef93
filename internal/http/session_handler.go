package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"collabit/internal/auth"
	"collabit/internal/identity"
	"collabit/internal/session"
)

type credentialsLogin func(ctx context.Context, creds auth.Credentials, ipAddress string) (auth.Outcome, error)

// SessionHandler serves the password login, session and registration routes.
type SessionHandler struct {
	service  *auth.Service
	sessions *session.Manager
	logger   *slog.Logger
}

// NewSessionHandler returns a handler backed by the auth service.
func NewSessionHandler(service *auth.Service, sessions *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, sessions: sessions, logger: logger}
}

// Login handles POST /auth/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.PasswordLogin)
}

// DirectAuth handles POST /auth/direct-auth, the fallback credentials route.
func (h *SessionHandler) DirectAuth(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.DirectLogin)
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request, run credentialsLogin) {
	var creds auth.Credentials
	if err := decodeJSONBody(w, r, &creds); err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			writeAuthFailure(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeAuthFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	outcome, err := run(r.Context(), creds, clientIPFromRequest(r))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("login failed", "error", err)
		}
		writeAuthFailure(w, status, messageForError(err))
		return
	}

	http.SetCookie(w, outcome.Session.Cookie)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    outcome.Principal,
	})
}

type sessionStatus struct {
	Authenticated bool                `json:"authenticated"`
	User          *identity.Principal `json:"user,omitempty"`
	Provider      identity.Provider   `json:"provider,omitempty"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
}

// Status handles GET /auth/session.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := h.sessions.FromRequest(r)
	if claims == nil {
		writeJSON(w, http.StatusOK, sessionStatus{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, statusFromClaims(claims))
}

// Logout handles DELETE /auth/session.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me. It sits behind the session middleware.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, statusFromClaims(claims))
}

// Register handles POST /auth/register by proxying to the identity backend.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSONBody(w, r, &reg); err != nil {
		writeAuthFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	registered, err := h.service.Register(r.Context(), reg)
	if err != nil {
		status := statusForError(err)
		var backendErr *identity.BackendError
		if errors.As(err, &backendErr) && !errors.Is(err, identity.ErrBackendUnreachable) {
			status = backendErr.Status
		}
		if status == http.StatusInternalServerError {
			h.logger.Error("register failed", "error", err)
		}
		writeAuthFailure(w, status, messageForError(err))
		return
	}

	status := registered.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(registered.Body)
}

func statusFromClaims(claims *session.Claims) sessionStatus {
	principal := claims.Principal()
	status := sessionStatus{
		Authenticated: true,
		User:          &principal,
		Provider:      claims.Provider,
	}
	if claims.ExpiresAt != nil {
		expiresAt := claims.ExpiresAt.Time.UTC()
		status.ExpiresAt = &expiresAt
	}
	return status
}
