package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/pkg/config"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

// graphTimeLayout is how Microsoft Graph renders event times: local wall
// clock with fractional seconds and no zone designator.
const graphTimeLayout = "2006-01-02T15:04:05"

// Client fetches calendar events from Microsoft Graph. Access tokens are
// exchanged per provider from their stored refresh token and cached in Redis
// so repeated availability queries do not hammer the token endpoint.
type Client struct {
	cfg    config.OutlookConfig
	http   *http.Client
	redis  *redis.Client
	logger *zap.Logger
}

// NewClient constructs a Graph client. redisClient may be nil, in which case
// tokens are exchanged on every fetch.
func NewClient(cfg config.OutlookConfig, redisClient *redis.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		redis:  redisClient,
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID       string        `json:"id"`
	Start    graphDateTime `json:"start"`
	End      graphDateTime `json:"end"`
	IsAllDay bool          `json:"isAllDay"`
	ShowAs   string        `json:"showAs"`
}

type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// FetchEvents returns the provider's busy calendar events overlapping
// [start, end]. Events marked free are dropped; the caller decides how to
// interpret all-day events.
func (c *Client) FetchEvents(ctx context.Context, provider *models.Provider, start, end time.Time) ([]models.OutlookEvent, error) {
	token, err := c.accessToken(ctx, provider)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("startDateTime", start.UTC().Format(time.RFC3339))
	query.Set("endDateTime", end.UTC().Format(time.RFC3339))
	query.Set("$top", "200")
	query.Set("$select", "id,start,end,isAllDay,showAs")

	next := fmt.Sprintf("%s/me/calendarview?%s", strings.TrimRight(c.cfg.BaseURL, "/"), query.Encode())

	events := make([]models.OutlookEvent, 0)
	for next != "" {
		page, link, err := c.fetchPage(ctx, next, token)
		if err != nil {
			return nil, err
		}
		for _, raw := range page {
			if strings.EqualFold(raw.ShowAs, "free") {
				continue
			}
			event, err := toEvent(raw)
			if err != nil {
				c.logger.Warn("skipping unparsable calendar event",
					zap.String("event_id", raw.ID), zap.Error(err))
				continue
			}
			events = append(events, event)
		}
		next = link
	}
	return events, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL, token string) ([]graphEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "failed to build calendar request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "calendar request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, "", appErrors.Wrap(
			fmt.Errorf("graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "calendar request rejected")
	}

	var payload calendarViewResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "failed to decode calendar response")
	}
	return payload.Value, payload.NextLink, nil
}

func (c *Client) accessToken(ctx context.Context, provider *models.Provider) (string, error) {
	cacheKey := "outlook:token:" + string(provider.Role) + ":" + provider.ID

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && err != redis.Nil {
			c.logger.Warn("token cache read failed", zap.Error(err))
		}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", provider.MicrosoftToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/Calendars.Read offline_access")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", appErrors.Wrap(
			fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "token exchange rejected")
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrIntegration.Code, appErrors.ErrIntegration.Status, "failed to decode token response")
	}
	if payload.AccessToken == "" {
		return "", appErrors.Clone(appErrors.ErrIntegration, "token response missing access token")
	}

	if c.redis != nil {
		ttl := c.cfg.TokenCacheTTL
		if payload.ExpiresIn > 0 {
			issued := time.Duration(payload.ExpiresIn) * time.Second
			if issued < ttl {
				ttl = issued
			}
		}
		if err := c.redis.Set(ctx, cacheKey, payload.AccessToken, ttl).Err(); err != nil {
			c.logger.Warn("token cache write failed", zap.Error(err))
		}
	}
	return payload.AccessToken, nil
}

func toEvent(raw graphEvent) (models.OutlookEvent, error) {
	start, err := parseGraphTime(raw.Start)
	if err != nil {
		return models.OutlookEvent{}, err
	}
	end, err := parseGraphTime(raw.End)
	if err != nil {
		return models.OutlookEvent{}, err
	}
	return models.OutlookEvent{
		ExternalID: raw.ID,
		Start:      start,
		End:        end,
		IsAllDay:   raw.IsAllDay,
	}, nil
}

func parseGraphTime(value graphDateTime) (time.Time, error) {
	text := value.DateTime
	if i := strings.IndexByte(text, '.'); i >= 0 {
		text = text[:i]
	}
	loc := time.UTC
	if value.TimeZone != "" && !strings.EqualFold(value.TimeZone, "UTC") {
		parsed, err := time.LoadLocation(value.TimeZone)
		if err == nil {
			loc = parsed
		}
	}
	t, err := time.ParseInLocation(graphTimeLayout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid graph datetime %q: %w", value.DateTime, err)
	}
	return t.UTC(), nil
}
