package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts event into login_events.
func (r *PostgresRepository) Append(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO login_events (id, path, state, email, principal_id, provider, reason, ip_address, occurred_at)
		VALUES (:id, :path, :state, :email, :principal_id, :provider, :reason, :ip_address, :occurred_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, newEventRow(event))
	return err
}

type eventRow struct {
	ID          uuid.UUID      `db:"id"`
	Path        string         `db:"path"`
	State       string         `db:"state"`
	Email       string         `db:"email"`
	PrincipalID sql.NullString `db:"principal_id"`
	Provider    sql.NullString `db:"provider"`
	Reason      sql.NullString `db:"reason"`
	IPAddress   string         `db:"ip_address"`
	OccurredAt  time.Time      `db:"occurred_at"`
}

func newEventRow(e Event) eventRow {
	return eventRow{
		ID:          e.ID,
		Path:        e.Path,
		State:       e.State,
		Email:       e.Email,
		PrincipalID: nullString(e.PrincipalID),
		Provider:    nullString(e.Provider),
		Reason:      nullString(e.Reason),
		IPAddress:   e.IPAddress,
		OccurredAt:  e.OccurredAt,
	}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
