package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

type availabilityWindowRepository interface {
	ListOverlapping(ctx context.Context, filter models.AvailabilityWindowFilter) ([]models.AvailabilityWindow, error)
	Create(ctx context.Context, window *models.AvailabilityWindow) error
	DeleteContainedIn(ctx context.Context, role models.Role, providerID string, start, end time.Time) (int64, error)
}

type sessionReader interface {
	ListOverlapping(ctx context.Context, role models.Role, providerID string, start, end time.Time) ([]models.Session, error)
	ListStartingBetween(ctx context.Context, role models.Role, providerID string, start, end time.Time) ([]models.Session, error)
}

type recurringTemplateSource interface {
	GetOrCreate(ctx context.Context, provider *models.Provider) (*models.RecurringAvailability, bool, error)
}

// CalendarClient is the external calendar collaborator. Implementations fetch
// busy events for a provider; the engine substitutes an empty list when the
// fetch fails.
type CalendarClient interface {
	FetchEvents(ctx context.Context, provider *models.Provider, start, end time.Time) ([]models.OutlookEvent, error)
}

type fetchObserver interface {
	ObserveOutlookFetch(success bool)
}

// AvailabilityQuery parameterizes an availability computation. Use
// NewAvailabilityQuery for the standard defaults; every stage can be toggled
// off individually.
type AvailabilityQuery struct {
	Start time.Time
	End   time.Time

	// ExcludeBooked subtracts already-booked time from the results.
	ExcludeBooked bool
	// UseRecurring fills days without explicit windows from the weekly template.
	UseRecurring bool
	// AllLocationsAndRemote disables location scoping entirely.
	AllLocationsAndRemote bool
	// LocationID scopes results to one location (nil = remote) when
	// AllLocationsAndRemote is false.
	LocationID *string
	// JoinCrossLocation merges abutting spans even at different locations.
	JoinCrossLocation bool
	// ApplyDailyCap blacks out days where a counselor hit their meeting cap.
	ApplyDailyCap bool
}

// NewAvailabilityQuery returns a query with the standard defaults: the next
// four weeks starting at today's UTC midnight, all stages enabled.
func NewAvailabilityQuery() AvailabilityQuery {
	return AvailabilityQuery{
		ExcludeBooked:         true,
		UseRecurring:          true,
		AllLocationsAndRemote: true,
		JoinCrossLocation:     true,
		ApplyDailyCap:         true,
	}
}

// AvailabilityService computes bookable free time for tutors and counselors.
// Every call recomputes from scratch; nothing is cached, so results always
// reflect the latest bookings.
type AvailabilityService struct {
	providers     providerReader
	windows       availabilityWindowRepository
	sessions      sessionReader
	recurring     recurringTemplateSource
	calendar      CalendarClient
	metrics       fetchObserver
	validator     *validator.Validate
	logger        *zap.Logger
	defaultWindow time.Duration
}

// NewAvailabilityService builds the service. calendar and metrics may be nil.
func NewAvailabilityService(providers providerReader, windows availabilityWindowRepository, sessions sessionReader, recurring recurringTemplateSource, calendar CalendarClient, metrics fetchObserver, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		providers:     providers,
		windows:       windows,
		sessions:      sessions,
		recurring:     recurring,
		calendar:      calendar,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		defaultWindow: 4 * 7 * 24 * time.Hour,
	}
}

// SetDefaultWindow overrides the default query window length.
func (s *AvailabilityService) SetDefaultWindow(window time.Duration) {
	if window > 0 {
		s.defaultWindow = window
	}
}

// GetAvailability resolves the provider and computes their free time.
func (s *AvailabilityService) GetAvailability(ctx context.Context, role models.Role, providerID string, q AvailabilityQuery) ([]models.Timespan, error) {
	provider, err := s.findProvider(ctx, role, providerID)
	if err != nil {
		return nil, err
	}
	return s.ComputeAvailability(ctx, provider, q)
}

// ListAllAvailability computes availability for every provider of the role.
func (s *AvailabilityService) ListAllAvailability(ctx context.Context, role models.Role, q AvailabilityQuery) ([]models.Timespan, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid provider role: %s", role))
	}
	providers, err := s.providers.ListByRole(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list providers")
	}

	all := make([]models.Timespan, 0)
	for i := range providers {
		spans, err := s.ComputeAvailability(ctx, &providers[i], q)
		if err != nil {
			return nil, err
		}
		all = append(all, spans...)
	}
	return all, nil
}

// ComputeAvailability runs the full pipeline for an already-loaded provider:
// materialize candidates, subtract booked time, apply the counselor daily
// cap, then adjoin abutting fragments.
func (s *AvailabilityService) ComputeAvailability(ctx context.Context, provider *models.Provider, q AvailabilityQuery) ([]models.Timespan, error) {
	if !provider.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid provider role: %s", provider.Role))
	}
	q = s.withDefaults(q)

	spans, err := s.materialize(ctx, provider, q)
	if err != nil {
		return nil, err
	}

	if q.ExcludeBooked {
		booked, err := s.collectBooked(ctx, provider, q.Start, q.End)
		if err != nil {
			return nil, err
		}
		spans = subtractBooked(spans, booked, provider.Location())
	}

	if q.ApplyDailyCap {
		spans, err = s.applyDailyCap(ctx, provider, q.Start, q.End, spans)
		if err != nil {
			return nil, err
		}
	}

	return adjoinSpans(spans, q.JoinCrossLocation), nil
}

// IndividualTimeIsAvailable reports whether one proposed slot is fully
// covered by the provider's availability, i.e. the degenerate one-window query.
func (s *AvailabilityService) IndividualTimeIsAvailable(ctx context.Context, role models.Role, providerID string, start, end time.Time) (bool, error) {
	q := NewAvailabilityQuery()
	q.Start = start
	q.End = end
	spans, err := s.GetAvailability(ctx, role, providerID, q)
	if err != nil {
		return false, err
	}
	for _, span := range spans {
		if !span.Start.After(start) && !span.End.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

// DayWindowInput is one proposed window inside a day-replacement payload.
type DayWindowInput struct {
	Start      string  `json:"start" validate:"required"`
	End        string  `json:"end" validate:"required"`
	LocationID *string `json:"location"`
}

// ReplaceDayAvailabilityRequest replaces a provider's availability on the
// listed days wholesale. TimezoneOffsetMinutes is the JS getTimezoneOffset
// convention (UTC minus local, in minutes). An empty window list marks the
// day as having no availability; the recurring template is suppressed for
// it.
type ReplaceDayAvailabilityRequest struct {
	TimezoneOffsetMinutes int                         `json:"timezone_offset"`
	Days                  map[string][]DayWindowInput `json:"availability" validate:"required"`
}

// ReplaceDayAvailability validates and applies per-day replacement windows,
// returning the created rows for exactly the days posted.
func (s *AvailabilityService) ReplaceDayAvailability(ctx context.Context, role models.Role, providerID string, req ReplaceDayAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	provider, err := s.findProvider(ctx, role, providerID)
	if err != nil {
		return nil, err
	}

	// JS reports UTC-minus-local; Go zone offsets are local-minus-UTC.
	zone := time.FixedZone("client", -req.TimezoneOffsetMinutes*60)

	type dayEntry struct {
		date    time.Time
		key     string
		windows []DayWindowInput
	}
	entries := make([]dayEntry, 0, len(req.Days))
	for rawDate, windows := range req.Days {
		date, err := time.ParseInLocation("2006-01-02", rawDate, zone)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date: %s", rawDate))
		}
		entries = append(entries, dayEntry{date: date, key: rawDate, windows: windows})
	}

	for _, entry := range entries {
		ok, message, err := ValidateDaySchedule(entry.date, entry.windows, zone)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("validation error for date %s: %s", entry.key, message))
		}
	}

	created := make([]models.AvailabilityWindow, 0)
	for _, entry := range entries {
		dayStart := time.Date(entry.date.Year(), entry.date.Month(), entry.date.Day(), 0, 0, 0, 0, zone)
		if _, err := s.windows.DeleteContainedIn(ctx, provider.Role, provider.ID, dayStart, dayStart.Add(24*time.Hour)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear existing availability")
		}

		if len(entry.windows) == 0 {
			// Zero-length marker window: keeps the recurring template from
			// applying to this day.
			marker := models.AvailabilityWindow{
				ID:         uuid.NewString(),
				ProviderID: provider.ID,
				Role:       provider.Role,
				Start:      dayStart.Add(12 * time.Hour),
				End:        dayStart.Add(12 * time.Hour),
			}
			if err := s.windows.Create(ctx, &marker); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability marker")
			}
			created = append(created, marker)
			continue
		}

		for _, input := range entry.windows {
			start, err := time.Parse(time.RFC3339, input.Start)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid datetime: %s", input.Start))
			}
			end, err := time.Parse(time.RFC3339, input.End)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid datetime: %s", input.End))
			}
			window := models.AvailabilityWindow{
				ID:         uuid.NewString(),
				ProviderID: provider.ID,
				Role:       provider.Role,
				Start:      start,
				End:        end,
				LocationID: input.LocationID,
			}
			if err := s.windows.Create(ctx, &window); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability window")
			}
			created = append(created, window)
		}
	}
	return created, nil
}

func (s *AvailabilityService) withDefaults(q AvailabilityQuery) AvailabilityQuery {
	if q.Start.IsZero() {
		now := time.Now().UTC()
		q.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if q.End.IsZero() {
		q.End = q.Start.Add(s.defaultWindow)
	}
	return q
}

func (s *AvailabilityService) findProvider(ctx context.Context, role models.Role, id string) (*models.Provider, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid provider role: %s", role))
	}
	provider, err := s.providers.FindByID(ctx, role, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", role))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load provider")
	}
	return provider, nil
}
