package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolnet/availability-api/internal/models"
)

// LocationRepository reads physical locations.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// FindByID loads a location.
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*models.Location, error) {
	const query = `SELECT id, name, created_at FROM locations WHERE id = $1`
	var location models.Location
	if err := r.db.GetContext(ctx, &location, query, id); err != nil {
		return nil, err
	}
	return &location, nil
}

// ExistingIDs reports which of the given location ids exist. Validators use
// it to flag every invalid reference in one pass.
func (r *LocationRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	query, args, err := sqlx.In(`SELECT id FROM locations WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build location id query: %w", err)
	}
	query = r.db.Rebind(query)

	var found []string
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("list existing locations: %w", err)
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}
