package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/internal/service"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
	"github.com/schoolnet/availability-api/pkg/response"
)

type availabilityComputer interface {
	GetAvailability(ctx context.Context, role models.Role, providerID string, q service.AvailabilityQuery) ([]models.Timespan, error)
	ListAllAvailability(ctx context.Context, role models.Role, q service.AvailabilityQuery) ([]models.Timespan, error)
	IndividualTimeIsAvailable(ctx context.Context, role models.Role, providerID string, start, end time.Time) (bool, error)
	ReplaceDayAvailability(ctx context.Context, role models.Role, providerID string, req service.ReplaceDayAvailabilityRequest) ([]models.AvailabilityWindow, error)
}

// AvailabilityHandler exposes computed availability per provider.
type AvailabilityHandler struct {
	service availabilityComputer
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityComputer) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// List godoc
// @Summary Compute provider availability
// @Tags Availability
// @Produce json
// @Param id path string true "Provider ID, or 'all' (admin only)"
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Param location query string false "Location ID, or 'null' for remote only"
// @Param exclude_sessions query bool false "Subtract booked time (default true)"
// @Param use_recurring_availability query bool false "Fill from recurring template (default true)"
// @Param for_availability_view query bool false "Editing view: skip daily cap and cross-location joining"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability [get]
func (h *AvailabilityHandler) List(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := queryFromRequest(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		providerID := c.Param("id")
		if providerID == "all" {
			claims := claimsFromContext(c)
			if claims == nil || claims.Role != models.RoleAdmin {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin role required"))
				return
			}
			spans, err := h.service.ListAllAvailability(c.Request.Context(), role, q)
			if err != nil {
				response.Error(c, err)
				return
			}
			response.JSON(c, http.StatusOK, spans, nil)
			return
		}

		spans, err := h.service.GetAvailability(c.Request.Context(), role, providerID, q)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, spans, nil)
	}
}

// Check godoc
// @Summary Check whether one slot is fully available
// @Tags Availability
// @Produce json
// @Param id path string true "Provider ID"
// @Param start query string true "Slot start (RFC3339)"
// @Param end query string true "Slot end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability/check [get]
func (h *AvailabilityHandler) Check(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := time.Parse(time.RFC3339, c.Query("start"))
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start must be RFC3339"))
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end must be RFC3339"))
			return
		}
		available, err := h.service.IndividualTimeIsAvailable(c.Request.Context(), role, c.Param("id"), start, end)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"available": available}, nil)
	}
}

// ReplaceDays godoc
// @Summary Replace availability for whole days
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param payload body service.ReplaceDayAvailabilityRequest true "Day replacement payload"
// @Success 201 {object} response.Envelope
// @Router /tutors/{id}/availability [post]
func (h *AvailabilityHandler) ReplaceDays(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ReplaceDayAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		windows, err := h.service.ReplaceDayAvailability(c.Request.Context(), role, c.Param("id"), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, windows)
	}
}

func queryFromRequest(c *gin.Context) (service.AvailabilityQuery, error) {
	q := service.NewAvailabilityQuery()

	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, appErrors.Clone(appErrors.ErrValidation, "start must be RFC3339")
		}
		q.Start = start
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, appErrors.Clone(appErrors.ErrValidation, "end must be RFC3339")
		}
		q.End = end
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return q, appErrors.Clone(appErrors.ErrValidation, "end must not precede start")
	}

	q.ExcludeBooked = boolQuery(c, "exclude_sessions", true)
	q.UseRecurring = boolQuery(c, "use_recurring_availability", true)

	// The editing view wants raw windows back, so capped days stay visible
	// and spans at different locations are not merged.
	if boolQuery(c, "for_availability_view", false) {
		q.ApplyDailyCap = false
		q.JoinCrossLocation = false
	}

	if raw, ok := c.GetQuery("location"); ok {
		q.AllLocationsAndRemote = false
		if raw != "null" && raw != "" {
			location := raw
			q.LocationID = &location
		}
	}

	return q, nil
}

func boolQuery(c *gin.Context, key string, fallback bool) bool {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
