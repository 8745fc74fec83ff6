package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolnet/availability-api/internal/models"
)

// AvailabilityRepository provides persistence for explicit availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const windowColumns = `id, provider_id, role, start_at, end_at, location_id, created_at`

// ListOverlapping returns windows intersecting [start, end] ordered by start.
func (r *AvailabilityRepository) ListOverlapping(ctx context.Context, filter models.AvailabilityWindowFilter) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE role = $1 AND provider_id = $2 AND start_at <= $3 AND end_at >= $4`
	args := []interface{}{filter.Role, filter.ProviderID, filter.End, filter.Start}

	if filter.FilterLocation {
		if filter.LocationID == nil {
			query += ` AND location_id IS NULL`
		} else {
			query += fmt.Sprintf(` AND location_id = $%d`, len(args)+1)
			args = append(args, *filter.LocationID)
		}
	}
	query += ` ORDER BY start_at ASC`

	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// Create stores a new availability window.
func (r *AvailabilityRepository) Create(ctx context.Context, window *models.AvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO availability_windows (id, provider_id, role, start_at, end_at, location_id, created_at) VALUES (:id, :provider_id, :role, :start_at, :end_at, :location_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create availability window: %w", err)
	}
	return nil
}

// DeleteContainedIn removes a provider's windows lying entirely inside
// [start, end]. Day replacement uses this to clear the day being replaced.
func (r *AvailabilityRepository) DeleteContainedIn(ctx context.Context, role models.Role, providerID string, start, end time.Time) (int64, error) {
	const query = `DELETE FROM availability_windows WHERE role = $1 AND provider_id = $2 AND start_at >= $3 AND end_at <= $4`
	result, err := r.db.ExecContext(ctx, query, role, providerID, start, end)
	if err != nil {
		return 0, fmt.Errorf("delete availability windows: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return deleted, nil
}
