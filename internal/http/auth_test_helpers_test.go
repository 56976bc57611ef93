package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"collabit/internal/audit"
	"collabit/internal/auth"
	"collabit/internal/identity"
	"collabit/internal/session"
)

type identityStub struct {
	login       func(ctx context.Context, email, password string) (identity.LoginResult, error)
	upsertOAuth func(ctx context.Context, profile identity.OAuthProfile, link identity.OAuthLink) (*identity.Principal, error)
	register    func(ctx context.Context, req identity.RegisterRequest) (identity.Registered, error)
}

func (s *identityStub) Login(ctx context.Context, email, password string) (identity.LoginResult, error) {
	if s.login != nil {
		return s.login(ctx, email, password)
	}
	return identity.LoginResult{}, errors.New("unexpected login")
}

func (s *identityStub) UpsertOAuth(ctx context.Context, profile identity.OAuthProfile, link identity.OAuthLink) (*identity.Principal, error) {
	if s.upsertOAuth != nil {
		return s.upsertOAuth(ctx, profile, link)
	}
	return nil, errors.New("unexpected upsert")
}

func (s *identityStub) Register(ctx context.Context, req identity.RegisterRequest) (identity.Registered, error) {
	if s.register != nil {
		return s.register(ctx, req)
	}
	return identity.Registered{}, errors.New("unexpected register")
}

type testEnv struct {
	service  *auth.Service
	sessions *session.Manager
	codec    *session.Codec
	events   *audit.MemoryRepository
	logger   *slog.Logger
}

func newTestEnv(t *testing.T, stub *identityStub) *testEnv {
	t.Helper()

	codec, err := session.NewCodec([]byte("http-handler-test-secret-long-enough"))
	if err != nil {
		t.Fatalf("NewCodec returned error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(codec, session.NewCookieManager(false))
	events := audit.NewMemoryRepository(10)
	service := auth.NewService(stub, sessions,
		auth.WithLogger(logger),
		auth.WithRecorder(audit.NewRecorder(events, logger)),
	)

	return &testEnv{service: service, sessions: sessions, codec: codec, events: events, logger: logger}
}

func principal42() identity.Principal {
	return identity.Principal{ID: "42", Name: "A", Email: "a@x.com"}
}
