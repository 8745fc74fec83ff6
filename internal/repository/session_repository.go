package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/schoolnet/availability-api/internal/models"
)

// SessionRepository reads booked sessions and meetings. The availability
// engine only ever reads them; booking writes happen elsewhere.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, provider_id, role, start_at, end_at, cancelled, outlook_event_id, created_at`

// ListOverlapping returns non-cancelled sessions intersecting [start, end]
// ordered by start.
func (r *SessionRepository) ListOverlapping(ctx context.Context, role models.Role, providerID string, start, end time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE role = $1 AND provider_id = $2 AND start_at <= $3 AND end_at >= $4 AND cancelled = FALSE ORDER BY start_at ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, role, providerID, end, start); err != nil {
		return nil, fmt.Errorf("list overlapping sessions: %w", err)
	}
	return sessions, nil
}

// ListStartingBetween returns non-cancelled sessions whose start falls in
// [start, end] ordered by start. The counselor daily cap counts these per
// local day.
func (r *SessionRepository) ListStartingBetween(ctx context.Context, role models.Role, providerID string, start, end time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE role = $1 AND provider_id = $2 AND start_at >= $3 AND start_at <= $4 AND cancelled = FALSE ORDER BY start_at ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, role, providerID, start, end); err != nil {
		return nil, fmt.Errorf("list sessions by start: %w", err)
	}
	return sessions, nil
}
