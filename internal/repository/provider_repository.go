package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/schoolnet/availability-api/internal/models"
)

// ProviderRepository loads tutors and counselors.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

const providerColumns = `id, role, name, timezone, include_all_availability_for_remote, max_meetings_per_day, minutes_between_meetings, microsoft_token, created_at, updated_at`

// FindByID loads a provider by role and id.
func (r *ProviderRepository) FindByID(ctx context.Context, role models.Role, id string) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE role = $1 AND id = $2`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, role, id); err != nil {
		return nil, err
	}
	return &provider, nil
}

// ListByRole returns every provider of a role ordered by name. Used by the
// admin-wide availability listing.
func (r *ProviderRepository) ListByRole(ctx context.Context, role models.Role) ([]models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE role = $1 ORDER BY name ASC`
	var providers []models.Provider
	if err := r.db.SelectContext(ctx, &providers, query, role); err != nil {
		return nil, err
	}
	return providers, nil
}
