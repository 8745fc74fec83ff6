package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

type recurringAvailabilityRepository interface {
	GetByProvider(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error)
	Create(ctx context.Context, record *models.RecurringAvailability) error
	Update(ctx context.Context, record *models.RecurringAvailability) error
}

type providerReader interface {
	FindByID(ctx context.Context, role models.Role, id string) (*models.Provider, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Provider, error)
}

type locationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// ReplaceRecurringAvailabilityRequest replaces one trimester of a provider's
// weekly template. Days must all be present; locations are optional.
type ReplaceRecurringAvailabilityRequest struct {
	Trimester    string                        `json:"trimester" validate:"required"`
	Availability map[string][]models.ClockSpan `json:"availability" validate:"required"`
	Locations    map[string]*string            `json:"locations"`
}

// RecurringAvailabilityService manages weekly recurring templates.
type RecurringAvailabilityService struct {
	repo      recurringAvailabilityRepository
	providers providerReader
	locations locationReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecurringAvailabilityService builds the service.
func NewRecurringAvailabilityService(repo recurringAvailabilityRepository, providers providerReader, locations locationReader, validate *validator.Validate, logger *zap.Logger) *RecurringAvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurringAvailabilityService{
		repo:      repo,
		providers: providers,
		locations: locations,
		validator: validate,
		logger:    logger,
	}
}

// GetOrCreate returns the provider's template, creating an empty one on first
// access. The create is idempotent; racing callers both end up reading the
// same row.
func (s *RecurringAvailabilityService) GetOrCreate(ctx context.Context, provider *models.Provider) (*models.RecurringAvailability, bool, error) {
	record, err := s.repo.GetByProvider(ctx, provider.Role, provider.ID)
	if err == nil {
		return record, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring availability")
	}

	fresh := &models.RecurringAvailability{
		ProviderID: provider.ID,
		Role:       provider.Role,
		Schedule:   models.DefaultWeeklySchedule(),
		Locations:  models.DefaultLocationSchedule(),
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring availability")
	}

	// Re-read so a racing create's winner is what everyone observes.
	record, err = s.repo.GetByProvider(ctx, provider.Role, provider.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload recurring availability")
	}
	return record, true, nil
}

// Get resolves the provider and returns their template, creating it if needed.
func (s *RecurringAvailabilityService) Get(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error) {
	provider, err := s.findProvider(ctx, role, providerID)
	if err != nil {
		return nil, err
	}
	record, _, err := s.GetOrCreate(ctx, provider)
	return record, err
}

// Replace swaps out a single trimester's schedule (and optionally locations)
// after validating the full resulting template.
func (s *RecurringAvailabilityService) Replace(ctx context.Context, role models.Role, providerID string, req ReplaceRecurringAvailabilityRequest) (*models.RecurringAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring availability payload")
	}
	trimester := models.Trimester(req.Trimester)
	if !validTrimester(trimester) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid trimester: %s", req.Trimester))
	}

	provider, err := s.findProvider(ctx, role, providerID)
	if err != nil {
		return nil, err
	}
	record, _, err := s.GetOrCreate(ctx, provider)
	if err != nil {
		return nil, err
	}

	schedule := copyWeeklySchedule(record.Schedule)
	schedule[trimester] = req.Availability
	locations := copyLocationSchedule(record.Locations)
	if req.Locations != nil {
		locations[trimester] = req.Locations
	}

	if err := s.ValidateWeeklySchedule(schedule); err != nil {
		return nil, err
	}
	if err := s.ValidateLocationSchedule(ctx, locations); err != nil {
		return nil, err
	}

	record.Schedule = schedule
	record.Locations = locations
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update recurring availability")
	}
	return record, nil
}

// Reset restores the empty default template. The row itself is never deleted.
func (s *RecurringAvailabilityService) Reset(ctx context.Context, role models.Role, providerID string) (*models.RecurringAvailability, error) {
	provider, err := s.findProvider(ctx, role, providerID)
	if err != nil {
		return nil, err
	}
	record, _, err := s.GetOrCreate(ctx, provider)
	if err != nil {
		return nil, err
	}

	record.Schedule = models.DefaultWeeklySchedule()
	record.Locations = models.DefaultLocationSchedule()
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset recurring availability")
	}
	return record, nil
}

// ValidateWeeklySchedule checks a full proposed template: every trimester and
// weekday key present, every time parseable ("24:00" legal as a day's end),
// spans well-formed and non-overlapping within a day. All violations are
// accumulated and reported together.
func (s *RecurringAvailabilityService) ValidateWeeklySchedule(schedule models.WeeklySchedule) error {
	var details []string

	for _, trimester := range models.Trimesters {
		days, ok := schedule[trimester]
		if !ok {
			details = append(details, fmt.Sprintf("missing trimester: %s", trimester))
			continue
		}
		for _, day := range models.OrderedWeekdays {
			spans, ok := days[day]
			if !ok {
				details = append(details, fmt.Sprintf("missing day key in %s: %s", trimester, day))
				continue
			}
			details = append(details, validateDaySpans(trimester, day, spans)...)
		}
	}

	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid recurring availability"), details)
	}
	return nil
}

func validateDaySpans(trimester models.Trimester, day string, spans []models.ClockSpan) []string {
	var details []string

	type parsedSpan struct {
		start clockTime
		end   clockTime
	}
	parsed := make([]parsedSpan, 0, len(spans))
	for _, span := range spans {
		start, err := parseClockTime(span.Start)
		if err != nil {
			details = append(details, fmt.Sprintf("invalid time on %s %s: %s", trimester, day, span.Start))
			continue
		}
		end, err := parseClockTime(span.End)
		if err != nil {
			details = append(details, fmt.Sprintf("invalid time on %s %s: %s", trimester, day, span.End))
			continue
		}
		parsed = append(parsed, parsedSpan{start: start, end: end})
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].start.before(parsed[j].start) })
	for i, span := range parsed {
		if !span.start.before(span.end) {
			details = append(details, fmt.Sprintf("invalid time span on %s: %02d:%02d-%02d:%02d", day, span.start.hour, span.start.minute, span.end.hour, span.end.minute))
		}
		if i+1 < len(parsed) && parsed[i+1].start.before(span.end) {
			details = append(details, fmt.Sprintf("overlapping availability on %s", day))
		}
	}
	return details
}

// ValidateLocationSchedule checks key completeness and that every referenced
// location exists, reporting all offenders at once.
func (s *RecurringAvailabilityService) ValidateLocationSchedule(ctx context.Context, locations models.LocationSchedule) error {
	var details []string
	referenced := make(map[string]bool)

	for _, trimester := range models.Trimesters {
		days, ok := locations[trimester]
		if !ok {
			details = append(details, fmt.Sprintf("missing trimester in locations: %s", trimester))
			continue
		}
		for _, day := range models.OrderedWeekdays {
			id, ok := days[day]
			if !ok {
				details = append(details, fmt.Sprintf("missing day key in locations.%s: %s", trimester, day))
				continue
			}
			if id != nil {
				referenced[*id] = true
			}
		}
	}

	if len(referenced) > 0 {
		ids := make([]string, 0, len(referenced))
		for id := range referenced {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		existing, err := s.locations.ExistingIDs(ctx, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify locations")
		}
		for _, id := range ids {
			if !existing[id] {
				details = append(details, fmt.Sprintf("invalid location: %s", id))
			}
		}
	}

	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid recurring availability locations"), details)
	}
	return nil
}

func (s *RecurringAvailabilityService) findProvider(ctx context.Context, role models.Role, id string) (*models.Provider, error) {
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

func validTrimester(t models.Trimester) bool {
	for _, candidate := range models.Trimesters {
		if t == candidate {
			return true
		}
	}
	return false
}

func copyWeeklySchedule(schedule models.WeeklySchedule) models.WeeklySchedule {
	out := make(models.WeeklySchedule, len(schedule))
	for trimester, days := range schedule {
		copied := make(map[string][]models.ClockSpan, len(days))
		for day, spans := range days {
			copied[day] = append([]models.ClockSpan(nil), spans...)
		}
		out[trimester] = copied
	}
	return out
}

func copyLocationSchedule(locations models.LocationSchedule) models.LocationSchedule {
	out := make(models.LocationSchedule, len(locations))
	for trimester, days := range locations {
		copied := make(map[string]*string, len(days))
		for day, id := range days {
			copied[day] = id
		}
		out[trimester] = copied
	}
	return out
}
