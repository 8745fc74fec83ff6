package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolnet/availability-api/internal/models"
)

func emptyScheduleJSON(t *testing.T) (string, string) {
	t.Helper()
	return `{"fall":{"monday":[],"tuesday":[],"wednesday":[],"thursday":[],"friday":[],"saturday":[],"sunday":[]},"spring":{"monday":[],"tuesday":[],"wednesday":[],"thursday":[],"friday":[],"saturday":[],"sunday":[]},"summer":{"monday":[],"tuesday":[],"wednesday":[],"thursday":[],"friday":[],"saturday":[],"sunday":[]}}`,
		`{"fall":{"monday":null,"tuesday":null,"wednesday":null,"thursday":null,"friday":null,"saturday":null,"sunday":null},"spring":{"monday":null,"tuesday":null,"wednesday":null,"thursday":null,"friday":null,"saturday":null,"sunday":null},"summer":{"monday":null,"tuesday":null,"wednesday":null,"thursday":null,"friday":null,"saturday":null,"sunday":null}}`
}

func TestRecurringAvailabilityRepositoryGetByProvider(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecurringAvailabilityRepository(db)

	schedule := `{"spring":{"monday":[{"start":"09:00","end":"12:00"}],"tuesday":[],"wednesday":[],"thursday":[],"friday":[],"saturday":[],"sunday":[]}}`
	locations := `{"spring":{"monday":"loc-1","tuesday":null,"wednesday":null,"thursday":null,"friday":null,"saturday":null,"sunday":null}}`
	rows := sqlmock.NewRows([]string{"id", "provider_id", "role", "schedule", "locations", "created_at", "updated_at"}).
		AddRow("r1", "tutor-1", "tutor", []byte(schedule), []byte(locations), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, provider_id, role, schedule, locations, created_at, updated_at FROM recurring_availabilities WHERE role = $1 AND provider_id = $2")).
		WithArgs(models.RoleTutor, "tutor-1").
		WillReturnRows(rows)

	record, err := repo.GetByProvider(context.Background(), models.RoleTutor, "tutor-1")
	require.NoError(t, err)
	require.Len(t, record.Schedule[models.TrimesterSpring]["monday"], 1)
	assert.Equal(t, "09:00", record.Schedule[models.TrimesterSpring]["monday"][0].Start)
	require.NotNil(t, record.Locations[models.TrimesterSpring]["monday"])
	assert.Equal(t, "loc-1", *record.Locations[models.TrimesterSpring]["monday"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecurringAvailabilityRepositoryGetDecodeFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecurringAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "provider_id", "role", "schedule", "locations", "created_at", "updated_at"}).
		AddRow("r1", "tutor-1", "tutor", []byte(`{broken`), []byte(`{}`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM recurring_availabilities").
		WithArgs(models.RoleTutor, "tutor-1").
		WillReturnRows(rows)

	_, err := repo.GetByProvider(context.Background(), models.RoleTutor, "tutor-1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecurringAvailabilityRepositoryCreateIsConflictSafe(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecurringAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO recurring_availabilities .*ON CONFLICT \\(role, provider_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	record := &models.RecurringAvailability{
		ProviderID: "tutor-1",
		Role:       models.RoleTutor,
		Schedule:   models.DefaultWeeklySchedule(),
		Locations:  models.DefaultLocationSchedule(),
	}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecurringAvailabilityRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecurringAvailabilityRepository(db)

	mock.ExpectExec("UPDATE recurring_availabilities SET schedule = .*, locations = .*, updated_at = .* WHERE id = .*").
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.RecurringAvailability{
		ID:         "r1",
		ProviderID: "tutor-1",
		Role:       models.RoleTutor,
		Schedule:   models.DefaultWeeklySchedule(),
		Locations:  models.DefaultLocationSchedule(),
	}
	require.NoError(t, repo.Update(context.Background(), record))
	assert.False(t, record.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecurringAvailabilityRepositoryRoundTripShape(t *testing.T) {
	scheduleJSON, locationsJSON := emptyScheduleJSON(t)

	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecurringAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "provider_id", "role", "schedule", "locations", "created_at", "updated_at"}).
		AddRow("r1", "tutor-1", "tutor", []byte(scheduleJSON), []byte(locationsJSON), time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM recurring_availabilities").
		WithArgs(models.RoleTutor, "tutor-1").
		WillReturnRows(rows)

	record, err := repo.GetByProvider(context.Background(), models.RoleTutor, "tutor-1")
	require.NoError(t, err)
	for _, trimester := range models.Trimesters {
		for _, day := range models.OrderedWeekdays {
			assert.NotNil(t, record.Schedule[trimester][day], "every day key survives the round trip")
		}
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
