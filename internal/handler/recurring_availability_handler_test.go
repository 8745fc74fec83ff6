package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/internal/service"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

type recurringManagerMock struct {
	record *models.RecurringAvailability
	err    error

	lastProviderID string
	lastRequest    service.ReplaceRecurringAvailabilityRequest
	resetCalls     int
}

func (m *recurringManagerMock) Get(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error) {
	m.lastProviderID = providerID
	return m.record, m.err
}

func (m *recurringManagerMock) Replace(ctx context.Context, role models.Role, providerID string, req service.ReplaceRecurringAvailabilityRequest) (*models.RecurringAvailability, error) {
	m.lastProviderID = providerID
	m.lastRequest = req
	return m.record, m.err
}

func (m *recurringManagerMock) Reset(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error) {
	m.resetCalls++
	m.lastProviderID = providerID
	return m.record, m.err
}

func emptyRecurringRecord() *models.RecurringAvailability {
	return &models.RecurringAvailability{
		ID:         "r1",
		ProviderID: "tutor-1",
		Role:       models.RoleTutor,
		Schedule:   models.DefaultWeeklySchedule(),
		Locations:  models.DefaultLocationSchedule(),
	}
}

func TestRecurringAvailabilityHandlerGet(t *testing.T) {
	mock := &recurringManagerMock{record: emptyRecurringRecord()}
	handler := NewRecurringAvailabilityHandler(mock)
	c, w := availabilityTestContext(t, http.MethodGet, "/tutors/tutor-1/recurring-availability", "")
	c.Params = gin.Params{{Key: "id", Value: "tutor-1"}}

	handler.Get(models.RoleTutor)(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tutor-1", mock.lastProviderID)
	assert.Contains(t, w.Body.String(), `"availability"`)
}

func TestRecurringAvailabilityHandlerGetUnknownProvider(t *testing.T) {
	mock := &recurringManagerMock{err: appErrors.Clone(appErrors.ErrNotFound, "tutor not found")}
	handler := NewRecurringAvailabilityHandler(mock)
	c, w := availabilityTestContext(t, http.MethodGet, "/tutors/ghost/recurring-availability", "")
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(models.RoleTutor)(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecurringAvailabilityHandlerReplace(t *testing.T) {
	mock := &recurringManagerMock{record: emptyRecurringRecord()}
	handler := NewRecurringAvailabilityHandler(mock)

	body := `{"trimester":"spring","availability":{"monday":[{"start":"09:00","end":"12:00"}],"tuesday":[],"wednesday":[],"thursday":[],"friday":[],"saturday":[],"sunday":[]},"locations":{"monday":"loc-1"}}`
	c, w := availabilityTestContext(t, http.MethodPut, "/tutors/tutor-1/recurring-availability", body)
	c.Params = gin.Params{{Key: "id", Value: "tutor-1"}}

	handler.Replace(models.RoleTutor)(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "spring", mock.lastRequest.Trimester)
	require.Len(t, mock.lastRequest.Availability["monday"], 1)
	assert.Equal(t, "09:00", mock.lastRequest.Availability["monday"][0].Start)
}

func TestRecurringAvailabilityHandlerReplaceBadJSON(t *testing.T) {
	handler := NewRecurringAvailabilityHandler(&recurringManagerMock{})
	c, w := availabilityTestContext(t, http.MethodPut, "/tutors/tutor-1/recurring-availability", `{"trimester":`)
	c.Params = gin.Params{{Key: "id", Value: "tutor-1"}}

	handler.Replace(models.RoleTutor)(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecurringAvailabilityHandlerReplaceValidationFailure(t *testing.T) {
	mock := &recurringManagerMock{err: appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, "invalid schedule"),
		[]string{"overlapping availability on monday"},
	)}
	handler := NewRecurringAvailabilityHandler(mock)

	body := `{"trimester":"spring","availability":{"monday":[{"start":"09:00","end":"12:00"}]}}`
	c, w := availabilityTestContext(t, http.MethodPut, "/tutors/tutor-1/recurring-availability", body)
	c.Params = gin.Params{{Key: "id", Value: "tutor-1"}}

	handler.Replace(models.RoleTutor)(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "overlapping availability on monday")
}

func TestRecurringAvailabilityHandlerReset(t *testing.T) {
	mock := &recurringManagerMock{record: emptyRecurringRecord()}
	handler := NewRecurringAvailabilityHandler(mock)
	c, w := availabilityTestContext(t, http.MethodDelete, "/tutors/tutor-1/recurring-availability", "")
	c.Params = gin.Params{{Key: "id", Value: "tutor-1"}}

	handler.Reset(models.RoleTutor)(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mock.resetCalls)
}
