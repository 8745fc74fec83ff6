package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/pkg/config"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

func graphTestProvider() *models.Provider {
	return &models.Provider{
		ID:             "counselor-1",
		Role:           models.RoleCounselor,
		Timezone:       "America/New_York",
		MicrosoftToken: "refresh-token",
	}
}

func tokenHandler(t *testing.T, tokenCalls *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-token", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-token",
			"expires_in":   3600,
		})
	}
}

func newGraphClient(tokenURL, baseURL string) *Client {
	return NewClient(config.OutlookConfig{
		Enabled:       true,
		BaseURL:       baseURL,
		TokenURL:      tokenURL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		Timeout:       5 * time.Second,
		TokenCacheTTL: time.Minute,
	}, nil, zap.NewNop())
}

func graphEventBody(id, start, end, showAs string, allDay bool) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"start":    map[string]string{"dateTime": start, "timeZone": "UTC"},
		"end":      map[string]string{"dateTime": end, "timeZone": "UTC"},
		"isAllDay": allDay,
		"showAs":   showAs,
	}
}

func TestClientFetchEvents(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/me/calendarview", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		assert.NotEmpty(t, r.URL.Query().Get("startDateTime"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				graphEventBody("evt-1", "2026-02-02T14:00:00.0000000", "2026-02-02T15:00:00.0000000", "busy", false),
				graphEventBody("evt-2", "2026-02-02T16:00:00", "2026-02-02T17:00:00", "free", false),
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	events, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// The free event is dropped; the busy event's fractional seconds are trimmed.
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ExternalID)
	assert.Equal(t, time.Date(2026, 2, 2, 14, 0, 0, 0, time.UTC), events[0].Start)
	assert.False(t, events[0].IsAllDay)
	assert.Equal(t, 1, tokenCalls)
}

func TestClientFetchEventsFollowsPaging(t *testing.T) {
	tokenCalls := 0
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/me/calendarview", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				graphEventBody("evt-1", "2026-02-02T09:00:00", "2026-02-02T10:00:00", "busy", false),
			},
			"@odata.nextLink": server.URL + "/page2",
		})
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				graphEventBody("evt-2", "2026-02-02T11:00:00", "2026-02-02T12:00:00", "busy", false),
			},
		})
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	events, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-2", events[1].ExternalID)
	// One token exchange covers both pages.
	assert.Equal(t, 1, tokenCalls)
}

func TestClientFetchEventsAllDayFlag(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/me/calendarview", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				graphEventBody("evt-1", "2026-02-02T00:00:00", "2026-02-03T00:00:00", "busy", true),
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	events, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsAllDay)
}

func TestClientFetchEventsSkipsUnparsable(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/me/calendarview", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				graphEventBody("evt-bad", "not-a-time", "2026-02-02T10:00:00", "busy", false),
				graphEventBody("evt-ok", "2026-02-02T11:00:00", "2026-02-02T12:00:00", "busy", false),
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	events, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-ok", events[0].ExternalID)
}

func TestClientFetchEventsRejectedByGraph(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/me/calendarview", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	_, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIntegration.Code, appErrors.FromError(err).Code)
}

func TestClientTokenExchangeRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	_, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIntegration.Code, appErrors.FromError(err).Code)
}

func TestClientTokenResponseMissingAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"expires_in":3600}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newGraphClient(server.URL+"/token", server.URL)
	_, err := client.FetchEvents(context.Background(), graphTestProvider(),
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access token")
}

func TestParseGraphTimeHonorsZone(t *testing.T) {
	parsed, err := parseGraphTime(graphDateTime{DateTime: "2026-02-02T09:00:00", TimeZone: "America/New_York"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 2, 14, 0, 0, 0, time.UTC), parsed)

	parsed, err = parseGraphTime(graphDateTime{DateTime: "2026-02-02T09:00:00.1234567", TimeZone: ""})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC), parsed)

	_, err = parseGraphTime(graphDateTime{DateTime: "garbage"})
	require.Error(t, err)
}
