package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const appendTimeout = 2 * time.Second

// Recorder writes login events without ever failing the caller.
type Recorder struct {
	repo      Repository
	logger    *slog.Logger
	now       func() time.Time
	onFailure func()
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithFailureHook registers fn to be called whenever an event is dropped.
func WithFailureHook(fn func()) RecorderOption {
	return func(r *Recorder) {
		r.onFailure = fn
	}
}

// WithRecorderClock overrides the event timestamp source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a Recorder backed by repo.
func NewRecorder(repo Repository, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stamps and stores event. Failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.repo == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now().UTC()
	}

	// The login response must not depend on the caller still being connected.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := r.repo.Append(ctx, event); err != nil {
		r.logger.Error("record login event", "error", err, "path", event.Path, "state", event.State)
		if r.onFailure != nil {
			r.onFailure()
		}
	}
}
