package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolnet/availability-api/internal/models"
)

var providerTestColumns = []string{
	"id", "role", "name", "timezone", "include_all_availability_for_remote",
	"max_meetings_per_day", "minutes_between_meetings", "microsoft_token",
	"created_at", "updated_at",
}

func TestProviderRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProviderRepository(db)

	rows := sqlmock.NewRows(providerTestColumns).
		AddRow("counselor-1", "counselor", "Dana Reyes", "America/New_York", false, 5, 15, "token", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, role, name, timezone, include_all_availability_for_remote, max_meetings_per_day, minutes_between_meetings, microsoft_token, created_at, updated_at FROM providers WHERE role = $1 AND id = $2")).
		WithArgs(models.RoleCounselor, "counselor-1").
		WillReturnRows(rows)

	provider, err := repo.FindByID(context.Background(), models.RoleCounselor, "counselor-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", provider.Name)
	assert.Equal(t, 15, provider.BufferMinutes())
	require.NotNil(t, provider.DailyMeetingCap())
	assert.Equal(t, 5, *provider.DailyMeetingCap())
	assert.True(t, provider.OutlookLinked())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProviderRepository(db)

	mock.ExpectQuery("SELECT .* FROM providers WHERE").
		WithArgs(models.RoleTutor, "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), models.RoleTutor, "missing")
	// The raw error passes through so the service layer can map it.
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProviderRepository(db)

	rows := sqlmock.NewRows(providerTestColumns).
		AddRow("tutor-1", "tutor", "Alex Kim", "UTC", false, nil, 0, "", time.Now(), time.Now()).
		AddRow("tutor-2", "tutor", "Blair Ochoa", "UTC", true, nil, 0, "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM providers WHERE role = $1 ORDER BY name ASC")).
		WithArgs(models.RoleTutor).
		WillReturnRows(rows)

	providers, err := repo.ListByRole(context.Background(), models.RoleTutor)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "Alex Kim", providers[0].Name)
	assert.Nil(t, providers[0].DailyMeetingCap())
	assert.False(t, providers[0].OutlookLinked())
	assert.NoError(t, mock.ExpectationsWereMet())
}
