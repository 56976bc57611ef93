package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"collabit/internal/audit"
	"collabit/internal/identity"
	"collabit/internal/session"
)

// State is the terminal state of a login attempt.
type State string

const (
	StateVerified State = "verified"
	StateBypassed State = "bypassed"
	StateDegraded State = "degraded"
	StateRejected State = "rejected"
)

// Path names the entry point a login attempt came through.
type Path string

const (
	PathPassword Path = "password"
	PathDirect   Path = "direct"
	PathOAuth    Path = "oauth"
)

// IdentityClient is the subset of the identity backend the service needs.
type IdentityClient interface {
	Login(ctx context.Context, email, password string) (identity.LoginResult, error)
	UpsertOAuth(ctx context.Context, profile identity.OAuthProfile, link identity.OAuthLink) (*identity.Principal, error)
	Register(ctx context.Context, req identity.RegisterRequest) (identity.Registered, error)
}

// SessionIssuer mints session tokens and cookies.
type SessionIssuer interface {
	Issue(principal identity.Principal, provider identity.Provider) (session.Issued, error)
}

// Outcome is a finished, successful login.
type Outcome struct {
	State     State
	Principal identity.Principal
	Provider  identity.Provider
	Session   session.Issued
}

// Service turns login attempts into sessions.
type Service struct {
	identity    IdentityClient
	sessions    SessionIssuer
	recorder    *audit.Recorder
	logger      *slog.Logger
	now         func() time.Time
	recordLogin func(path, state string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder stores every outcome in the login audit log.
func WithRecorder(recorder *audit.Recorder) ServiceOption {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used when normalizing provider profiles.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLoginCounter registers a callback invoked with the path and state of
// every finished attempt.
func WithLoginCounter(fn func(path, state string)) ServiceOption {
	return func(s *Service) {
		s.recordLogin = fn
	}
}

// NewService creates a new auth Service.
func NewService(client IdentityClient, sessions SessionIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		identity: client,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PasswordLogin runs the primary credentials flow.
func (s *Service) PasswordLogin(ctx context.Context, creds Credentials, ipAddress string) (Outcome, error) {
	return s.credentialsLogin(ctx, PathPassword, creds, ipAddress)
}

// DirectLogin runs the fallback credentials flow used when the primary
// session endpoint is unavailable. It produces the same token and cookie.
func (s *Service) DirectLogin(ctx context.Context, creds Credentials, ipAddress string) (Outcome, error) {
	return s.credentialsLogin(ctx, PathDirect, creds, ipAddress)
}

func (s *Service) credentialsLogin(ctx context.Context, path Path, creds Credentials, ipAddress string) (Outcome, error) {
	creds.Email = identity.NormalizeEmail(creds.Email)
	event := audit.Event{Path: string(path), Email: creds.Email, IPAddress: ipAddress}

	if err := creds.Validate(); err != nil {
		return Outcome{}, s.reject(ctx, event, invalidInput(err))
	}

	result, err := s.identity.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return Outcome{}, s.reject(ctx, event, err)
	}

	state := StateVerified
	if result.Bypassed {
		state = StateBypassed
		s.logger.Warn("email verification bypassed",
			"path", path,
			"email", creds.Email,
			"principal_id", result.Principal.ID,
		)
	}

	return s.finish(ctx, event, state, result.Principal, "")
}

// OAuthLogin turns a completed provider exchange into a session. When the
// backend cannot sync the account the provider-asserted identity is used.
func (s *Service) OAuthLogin(ctx context.Context, login ProviderLogin, ipAddress string) (Outcome, error) {
	provider := login.Link.Provider
	profile := login.Profile
	profile.Email = identity.NormalizeEmail(profile.Email)

	event := audit.Event{
		Path:      string(PathOAuth),
		Email:     profile.Email,
		Provider:  string(provider),
		IPAddress: ipAddress,
	}

	if profile.Email == "" || provider == "" || login.Link.ProviderAccountID == "" {
		return Outcome{}, s.reject(ctx, event, identity.ErrInvalidInput)
	}

	principal, err := s.identity.UpsertOAuth(ctx, profile, login.Link)
	if err == nil && principal != nil {
		return s.finish(ctx, event, StateVerified, *principal, provider)
	}

	reason := "backend returned no account"
	if err != nil {
		reason = err.Error()
	}
	s.logger.Warn("oauth account sync failed, using provider identity",
		"provider", provider,
		"email", profile.Email,
		"error", reason,
	)
	event.Reason = reason

	normalized := identity.NormalizeProfile(provider, profile, s.now())
	degraded := identity.Principal{
		ID:            string(provider) + ":" + login.Link.ProviderAccountID,
		Name:          normalized.Name,
		Email:         normalized.Email,
		Image:         normalized.Image,
		EmailVerified: normalized.EmailVerified,
	}
	return s.finish(ctx, event, StateDegraded, degraded, provider)
}

// Register proxies a new account to the identity backend.
func (s *Service) Register(ctx context.Context, reg Registration) (identity.Registered, error) {
	reg.Email = identity.NormalizeEmail(reg.Email)
	if err := reg.Validate(); err != nil {
		return identity.Registered{}, invalidInput(err)
	}
	return s.identity.Register(ctx, identity.RegisterRequest{
		Name:     reg.Name,
		Email:    reg.Email,
		Password: reg.Password,
	})
}

func (s *Service) finish(ctx context.Context, event audit.Event, state State, principal identity.Principal, provider identity.Provider) (Outcome, error) {
	issued, err := s.sessions.Issue(principal, provider)
	if err != nil {
		s.logger.Error("issue session", "error", err, "path", event.Path)
		return Outcome{}, s.reject(ctx, event, err)
	}

	event.State = string(state)
	event.PrincipalID = principal.ID
	s.record(ctx, event)

	return Outcome{
		State:     state,
		Principal: principal,
		Provider:  provider,
		Session:   issued,
	}, nil
}

func (s *Service) reject(ctx context.Context, event audit.Event, err error) error {
	event.State = string(StateRejected)
	if event.Reason == "" {
		event.Reason = Reason(err)
	}
	s.record(ctx, event)
	return err
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	s.recorder.Record(ctx, event)
	if s.recordLogin != nil {
		s.recordLogin(event.Path, event.State)
	}
}

// Reason returns the user-facing text for a failed attempt.
func Reason(err error) string {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Error()
	}
	return identity.Message(err)
}
