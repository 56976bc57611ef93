package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout      = 10 * time.Second
	maxResponseBytes    = 1 << 20
	loginPath           = "/api/auth/login"
	registerPath        = "/api/auth/register"
	oauthPath           = "/api/auth/oauth"
	lookupByEmailPath   = "/api/users/byEmail"
	fallbackFailureText = "Authentication failed"
)

// Observer receives one call per backend round trip.
type Observer func(operation, outcome string, elapsed time.Duration)

// Client talks to the remote identity backend.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
	observe Observer
	upserts singleflight.Group
}

// Option configures the Client during construction.
type Option func(*Client)

// WithTimeout bounds every backend call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock overrides the time source used for verification stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver registers a hook that is told about every backend call.
func WithObserver(observe Observer) Option {
	return func(c *Client) {
		c.observe = observe
	}
}

// NewClient constructs a Client for the backend at baseURL.
func NewClient(baseURL string, client *http.Client, opts ...Option) *Client {
	if client == nil {
		client = &http.Client{}
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: defaultTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LoginResult is a successful password login. Bypassed is set when the
// backend demanded email verification and the user was resolved by email
// instead.
type LoginResult struct {
	Principal Principal
	Bypassed  bool
}

// Login authenticates credentials. A 403 answer asking for email
// verification is recovered by looking the user up by email; unverified
// accounts with a matching record are treated as authenticated.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	principal, err := c.Authenticate(ctx, email, password)
	if err == nil {
		return LoginResult{Principal: principal}, nil
	}
	if !errors.Is(err, ErrVerificationRequired) {
		return LoginResult{}, err
	}

	found, lookupErr := c.LookupByEmail(ctx, email)
	if lookupErr != nil || found == nil {
		return LoginResult{}, err
	}
	return LoginResult{Principal: *found, Bypassed: true}, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate posts credentials to the backend without any recovery.
func (c *Client) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Principal{}, ErrInvalidInput
	}

	status, body, err := c.do(ctx, "login", http.MethodPost, loginPath, nil, credentials{Email: email, Password: password})
	if err != nil {
		return Principal{}, err
	}

	if status != http.StatusOK {
		message := extractMessage(body)
		kind := ErrInvalidCredentials
		switch {
		case status == http.StatusForbidden && requiresVerification(message):
			kind = ErrVerificationRequired
		case status >= http.StatusInternalServerError:
			kind = ErrBackendUnreachable
		}
		if message == "" {
			message = fallbackFailureText
		}
		return Principal{}, &BackendError{Kind: kind, Status: status, Message: message}
	}

	return decodePrincipal(body)
}

// LookupByEmail fetches the backend record for email. It returns nil without
// an error when the backend does not know the address.
func (c *Client) LookupByEmail(ctx context.Context, email string) (*Principal, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidInput
	}

	query := url.Values{}
	query.Set("email", email)
	status, body, err := c.do(ctx, "lookup_by_email", http.MethodGet, lookupByEmailPath, query, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound:
		return nil, nil
	case status >= http.StatusInternalServerError:
		return nil, &BackendError{Kind: ErrBackendUnreachable, Status: status, Message: extractMessage(body)}
	default:
		return nil, &BackendError{Kind: ErrInvalidCredentials, Status: status, Message: extractMessage(body)}
	}

	principal, err := decodePrincipal(body)
	if err != nil {
		return nil, err
	}
	return &principal, nil
}

// UpsertOAuth creates or updates the backend account linked to a provider
// login. Concurrent upserts for the same provider account share one backend
// round trip. The shared call is detached from any single caller's
// cancellation and bounded by the client timeout instead; a caller that goes
// away only abandons its own wait.
func (c *Client) UpsertOAuth(ctx context.Context, profile OAuthProfile, link OAuthLink) (*Principal, error) {
	if NormalizeEmail(profile.Email) == "" || link.Provider == "" || link.ProviderAccountID == "" {
		return nil, ErrInvalidInput
	}

	key := string(link.Provider) + ":" + link.ProviderAccountID
	shared := context.WithoutCancel(ctx)
	results := c.upserts.DoChan(key, func() (any, error) {
		existing, err := c.LookupByEmail(shared, profile.Email)
		if err != nil {
			return nil, fmt.Errorf("lookup existing account: %w", err)
		}

		req := NewOAuthSync(profile, link, existing, c.now())
		return c.syncOAuth(shared, req)
	})

	select {
	case <-ctx.Done():
		return nil, classifyTransportError(ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Principal), nil
	}
}

func (c *Client) syncOAuth(ctx context.Context, req OAuthSync) (*Principal, error) {
	status, body, err := c.do(ctx, "upsert_oauth", http.MethodPost, oauthPath, nil, req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		kind := ErrInvalidCredentials
		if status >= http.StatusInternalServerError {
			kind = ErrBackendUnreachable
		}
		return nil, &BackendError{Kind: kind, Status: status, Message: extractMessage(body)}
	}

	principal, err := decodePrincipal(body)
	if err != nil {
		return nil, err
	}
	return &principal, nil
}

// RegisterRequest is forwarded verbatim to the backend's registration endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registered is a successful registration answer from the backend.
type Registered struct {
	Status int
	Body   json.RawMessage
}

// Register creates a new password account. The backend's status and JSON
// answer are returned untouched on success.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (Registered, error) {
	req.Email = NormalizeEmail(req.Email)

	status, body, err := c.do(ctx, "register", http.MethodPost, registerPath, nil, req)
	if err != nil {
		return Registered{}, err
	}

	if status < 200 || status > 299 {
		kind := ErrInvalidInput
		if status >= http.StatusInternalServerError {
			kind = ErrBackendUnreachable
		}
		message := extractMessage(body)
		if message == "" {
			message = "Registration failed"
		}
		return Registered{}, &BackendError{Kind: kind, Status: status, Message: message}
	}

	if !json.Valid(body) {
		return Registered{}, fmt.Errorf("%w: register returned invalid JSON", ErrMalformedResponse)
	}
	return Registered{Status: status, Body: json.RawMessage(body)}, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, payload any) (int, []byte, error) {
	start := time.Now()
	status, body, err := c.roundTrip(ctx, method, path, query, payload)
	if c.observe != nil {
		c.observe(operation, outcomeLabel(status, err), time.Since(start))
	}
	return status, body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build url: %w", ErrBackendUnreachable, err)
	}
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: create request: %w", ErrBackendUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}

	return resp.StatusCode, body, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
}

func decodePrincipal(body []byte) (Principal, error) {
	var principal Principal
	if err := json.Unmarshal(body, &principal); err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(principal.ID) == "" {
		return Principal{}, fmt.Errorf("%w: missing user id", ErrMalformedResponse)
	}
	principal.Email = NormalizeEmail(principal.Email)
	return principal, nil
}

type backendMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func extractMessage(body []byte) string {
	var msg backendMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	if msg.Message != "" {
		return msg.Message
	}
	return msg.Error
}

func requiresVerification(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "verify") || strings.Contains(lowered, "verification")
}

func outcomeLabel(status int, err error) string {
	switch {
	case err == nil && status >= 200 && status <= 299:
		return "ok"
	case err == nil:
		return strconv.Itoa(status)
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unreachable"
	}
}
