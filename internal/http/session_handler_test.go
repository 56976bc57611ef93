package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"collabit/internal/identity"
	"collabit/internal/session"
)

type loginResponse struct {
	Success bool               `json:"success"`
	User    identity.Principal `json:"user"`
	Error   string             `json:"error"`
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeLogin(t *testing.T, rec *httptest.ResponseRecorder) loginResponse {
	t.Helper()
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, &identityStub{
		login: func(context.Context, string, string) (identity.LoginResult, error) {
			return identity.LoginResult{Principal: principal42()}, nil
		},
	})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	rec := postJSON(handler.Login, "/auth/login", `{"email":"a@x.com","password":"Secret1!"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeLogin(t, rec)
	if !resp.Success || resp.User.ID != "42" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.MaxAge != 2592000 || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	if claims := env.codec.Decode(cookie.Value); claims == nil || claims.Subject != "42" {
		t.Fatalf("expected token for subject 42, got %+v", claims)
	}
}

func TestLoginMapsFailuresToStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"rejected", &identity.BackendError{Kind: identity.ErrInvalidCredentials, Status: 401, Message: "bad password"}, http.StatusUnauthorized, "bad password"},
		{"verification", &identity.BackendError{Kind: identity.ErrVerificationRequired, Status: 403, Message: "Please verify your account"}, http.StatusUnauthorized, "Please verify your account"},
		{"malformed", identity.ErrMalformedResponse, http.StatusBadGateway, "Authentication failed"},
		{"unreachable", identity.ErrBackendUnreachable, http.StatusServiceUnavailable, "Unable to reach the authentication server. Please try again later."},
		{"timeout", identity.ErrTimeout, http.StatusGatewayTimeout, "The authentication server did not respond in time"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &identityStub{
				login: func(context.Context, string, string) (identity.LoginResult, error) {
					return identity.LoginResult{}, tc.err
				},
			})
			handler := NewSessionHandler(env.service, env.sessions, env.logger)

			rec := postJSON(handler.Login, "/auth/login", `{"email":"a@x.com","password":"Secret1!"}`)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			resp := decodeLogin(t, rec)
			if resp.Success || resp.Error != tc.message {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if sessionCookie(rec) != nil {
				t.Fatal("expected no session cookie on failure")
			}
		})
	}
}

func TestDirectAuthRequiresFields(t *testing.T) {
	env := newTestEnv(t, &identityStub{})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	rec := postJSON(handler.DirectAuth, "/auth/direct-auth", `{"email":"a@x.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeLogin(t, rec); resp.Success || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = postJSON(handler.DirectAuth, "/auth/direct-auth", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid JSON, got %d", rec.Code)
	}
}

func TestDirectAuthIssuesSameCookie(t *testing.T) {
	env := newTestEnv(t, &identityStub{
		login: func(context.Context, string, string) (identity.LoginResult, error) {
			return identity.LoginResult{Principal: principal42()}, nil
		},
	})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	rec := postJSON(handler.DirectAuth, "/auth/direct-auth", `{"email":"a@x.com","password":"Secret1!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if claims := env.codec.Decode(cookie.Value); claims == nil || claims.Subject != "42" {
		t.Fatalf("expected token for subject 42, got %+v", claims)
	}
}

func TestSessionStatus(t *testing.T) {
	env := newTestEnv(t, &identityStub{})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	var anonymous map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&anonymous); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if anonymous["authenticated"] != false {
		t.Fatalf("expected unauthenticated status, got %v", anonymous)
	}

	issued, err := env.sessions.Issue(principal42(), "")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(issued.Cookie)
	rec = httptest.NewRecorder()
	handler.Status(rec, req)

	var status sessionStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Authenticated || status.User == nil || status.User.ID != "42" || status.ExpiresAt == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t, &identityStub{})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	req := httptest.NewRequest(http.MethodDelete, "/auth/session", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected expired session cookie, got %+v", cookie)
	}
}

func TestRegisterProxiesBackend(t *testing.T) {
	env := newTestEnv(t, &identityStub{
		register: func(_ context.Context, req identity.RegisterRequest) (identity.Registered, error) {
			if req.Email == "taken@x.com" {
				return identity.Registered{}, &identity.BackendError{Kind: identity.ErrInvalidInput, Status: http.StatusConflict, Message: "email already registered"}
			}
			if req.Email == "down@x.com" {
				return identity.Registered{}, identity.ErrBackendUnreachable
			}
			if req.Email == "pending@x.com" {
				return identity.Registered{Status: http.StatusAccepted, Body: json.RawMessage(`{"pending":true}`)}, nil
			}
			return identity.Registered{Status: http.StatusCreated, Body: json.RawMessage(`{"id":"7"}`)}, nil
		},
	})
	handler := NewSessionHandler(env.service, env.sessions, env.logger)

	rec := postJSON(handler.Register, "/auth/register", `{"name":"A","email":"new@x.com","password":"Secret123!"}`)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"id":"7"`) {
		t.Fatalf("unexpected success response %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(handler.Register, "/auth/register", `{"email":"pending@x.com","password":"pw"}`)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"pending":true`) {
		t.Fatalf("expected backend success status to pass through, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(handler.Register, "/auth/register", `{"email":"taken@x.com","password":"Secret123!"}`)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "email already registered") {
		t.Fatalf("unexpected conflict response %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(handler.Register, "/auth/register", `{"email":"down@x.com","password":"Secret123!"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}
