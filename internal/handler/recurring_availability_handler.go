package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/internal/service"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
	"github.com/schoolnet/availability-api/pkg/response"
)

type recurringAvailabilityManager interface {
	Get(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error)
	Replace(ctx context.Context, role models.Role, providerID string, req service.ReplaceRecurringAvailabilityRequest) (*models.RecurringAvailability, error)
	Reset(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error)
}

// RecurringAvailabilityHandler manages weekly template endpoints.
type RecurringAvailabilityHandler struct {
	service recurringAvailabilityManager
}

// NewRecurringAvailabilityHandler constructs the handler.
func NewRecurringAvailabilityHandler(svc recurringAvailabilityManager) *RecurringAvailabilityHandler {
	return &RecurringAvailabilityHandler{service: svc}
}

// Get godoc
// @Summary Get the provider's weekly recurring template
// @Tags RecurringAvailability
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/recurring-availability [get]
func (h *RecurringAvailabilityHandler) Get(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := h.service.Get(c.Request.Context(), role, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record, nil)
	}
}

// Replace godoc
// @Summary Replace one trimester of the weekly recurring template
// @Tags RecurringAvailability
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param payload body service.ReplaceRecurringAvailabilityRequest true "Trimester schedule payload"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/recurring-availability [put]
func (h *RecurringAvailabilityHandler) Replace(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ReplaceRecurringAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		record, err := h.service.Replace(c.Request.Context(), role, c.Param("id"), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record, nil)
	}
}

// Reset godoc
// @Summary Reset the weekly recurring template to empty
// @Tags RecurringAvailability
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/recurring-availability [delete]
func (h *RecurringAvailabilityHandler) Reset(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := h.service.Reset(c.Request.Context(), role, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record, nil)
	}
}
