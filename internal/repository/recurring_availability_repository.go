package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/schoolnet/availability-api/internal/models"
)

// RecurringAvailabilityRepository persists weekly recurring templates. The
// schedule and locations are JSONB columns decoded into typed maps here so
// the engine never re-validates their shape.
type RecurringAvailabilityRepository struct {
	db *sqlx.DB
}

// NewRecurringAvailabilityRepository creates the repository.
func NewRecurringAvailabilityRepository(db *sqlx.DB) *RecurringAvailabilityRepository {
	return &RecurringAvailabilityRepository{db: db}
}

type recurringAvailabilityRow struct {
	ID         string         `db:"id"`
	ProviderID string         `db:"provider_id"`
	Role       models.Role    `db:"role"`
	Schedule   types.JSONText `db:"schedule"`
	Locations  types.JSONText `db:"locations"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (row *recurringAvailabilityRow) toModel() (*models.RecurringAvailability, error) {
	record := &models.RecurringAvailability{
		ID:         row.ID,
		ProviderID: row.ProviderID,
		Role:       row.Role,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Schedule, &record.Schedule); err != nil {
		return nil, fmt.Errorf("decode recurring schedule: %w", err)
	}
	if err := json.Unmarshal(row.Locations, &record.Locations); err != nil {
		return nil, fmt.Errorf("decode recurring locations: %w", err)
	}
	return record, nil
}

const recurringColumns = `id, provider_id, role, schedule, locations, created_at, updated_at`

// GetByProvider loads a provider's recurring template.
func (r *RecurringAvailabilityRepository) GetByProvider(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_availabilities WHERE role = $1 AND provider_id = $2`
	var row recurringAvailabilityRow
	if err := r.db.GetContext(ctx, &row, query, role, providerID); err != nil {
		return nil, err
	}
	return row.toModel()
}

// Create stores an empty template for the provider. A unique constraint on
// (role, provider_id) plus ON CONFLICT DO NOTHING makes the first-access race
// harmless: the loser's insert is a no-op and both callers re-read the row.
func (r *RecurringAvailabilityRepository) Create(ctx context.Context, record *models.RecurringAvailability) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	row, err := r.toRow(record)
	if err != nil {
		return err
	}

	const query = `INSERT INTO recurring_availabilities (id, provider_id, role, schedule, locations, created_at, updated_at) VALUES (:id, :provider_id, :role, :schedule, :locations, :created_at, :updated_at) ON CONFLICT (role, provider_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create recurring availability: %w", err)
	}
	return nil
}

// Update replaces the stored schedule and locations.
func (r *RecurringAvailabilityRepository) Update(ctx context.Context, record *models.RecurringAvailability) error {
	record.UpdatedAt = time.Now().UTC()

	row, err := r.toRow(record)
	if err != nil {
		return err
	}

	const query = `UPDATE recurring_availabilities SET schedule = :schedule, locations = :locations, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update recurring availability: %w", err)
	}
	return nil
}

func (r *RecurringAvailabilityRepository) toRow(record *models.RecurringAvailability) (*recurringAvailabilityRow, error) {
	schedule, err := json.Marshal(record.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode recurring schedule: %w", err)
	}
	locations, err := json.Marshal(record.Locations)
	if err != nil {
		return nil, fmt.Errorf("encode recurring locations: %w", err)
	}
	return &recurringAvailabilityRow{
		ID:         record.ID,
		ProviderID: record.ProviderID,
		Role:       record.Role,
		Schedule:   types.JSONText(schedule),
		Locations:  types.JSONText(locations),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}, nil
}
