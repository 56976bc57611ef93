package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"collabit/internal/auth"
)

// oauthStatePayload holds the CSRF state, the provider it was issued for and
// an optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	Provider   string `json:"p"`
	RedirectTo string `json:"r,omitempty"`
}

// isValidRedirectPath validates that a path is a safe relative redirect.
// It prevents open redirect attacks by ensuring the path:
// - Starts with a single "/" (not "//")
// - Has no scheme or host component
// - Cannot be bypassed via URL encoding
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.Contains(decoded, `\`) {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}

const (
	oauthStateCookieName = "collabit_oauth_state"
	oauthStateCookiePath = "/auth/oauth"
	oauthStateCookieTTL  = 10 * time.Minute
)

// OAuthHandler handles the provider redirect and callback endpoints.
type OAuthHandler struct {
	providers    auth.Providers
	service      *auth.Service
	logger       *slog.Logger
	secureCookie bool
	publicURL    string
}

// NewOAuthHandler creates a new OAuthHandler. publicURL is where the browser
// lands after the callback.
func NewOAuthHandler(providers auth.Providers, service *auth.Service, publicURL string, secureCookie bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		providers:    providers,
		service:      service,
		logger:       logger,
		secureCookie: secureCookie,
		publicURL:    strings.TrimSuffix(publicURL, "/"),
	}
}

// Initiate handles GET /auth/oauth/{provider}.
// Redirects the user to the provider's consent screen.
func (h *OAuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.providers.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     oauthStateCookiePath,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	payload := oauthStatePayload{State: state, Provider: name}
	if redirectTo := r.URL.Query().Get("redirectTo"); isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	http.Redirect(w, r, provider.AuthURL(fullState), http.StatusTemporaryRedirect)
}

// Callback handles GET /auth/oauth/{provider}/callback.
// Exchanges the code, syncs the account and issues the session cookie.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.providers.Lookup(name)
	if err != nil {
		h.redirectWithError(w, r, "invalid_request", "Unknown sign-in provider.")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie", "provider", name)
		h.redirectWithError(w, r, "invalid_request", "Session expired. Please try again.")
		return
	}

	stateBytes, err := base64.RawURLEncoding.DecodeString(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding", "provider", name)
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON", "provider", name)
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	if subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 || statePayload.Provider != name {
		h.logger.Warn("oauth callback: state mismatch", "provider", name)
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	redirectTo := "/"
	if isValidRedirectPath(statePayload.RedirectTo) {
		redirectTo = statePayload.RedirectTo
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     oauthStateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "provider", name, "error", errParam)
		h.redirectWithError(w, r, errParam, r.URL.Query().Get("error_description"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "invalid_request", "Missing authorization code.")
		return
	}

	login, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", "provider", name, "error", err)
		h.redirectWithError(w, r, "exchange_error", "Failed to complete authentication.")
		return
	}

	outcome, err := h.service.OAuthLogin(r.Context(), login, clientIPFromRequest(r))
	if err != nil {
		h.logger.Warn("oauth callback: login rejected", "provider", name, "error", err)
		h.redirectWithError(w, r, "access_denied", messageForError(err))
		return
	}

	http.SetCookie(w, outcome.Session.Cookie)

	h.logger.Info("oauth login successful",
		"provider", name,
		"user_id", outcome.Principal.ID,
		"state", outcome.State,
	)

	http.Redirect(w, r, h.publicURL+redirectTo, http.StatusTemporaryRedirect)
}

// redirectWithError redirects to the login page with error details.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := h.publicURL + "/login?error=" + url.QueryEscape(code)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
