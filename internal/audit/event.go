package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one finished login attempt.
type Event struct {
	ID          uuid.UUID
	Path        string
	State       string
	Email       string
	PrincipalID string
	Provider    string
	Reason      string
	IPAddress   string
	OccurredAt  time.Time
}

// Repository persists login events. It is append-only; nothing in the
// service reads it back, operators query the table directly.
type Repository interface {
	Append(ctx context.Context, event Event) error
}
