package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.CRMConfig{
		BaseURL: baseURL,
		APIKey:  "secret",
		BotID:   "bot-1",
		Timeout: 5 * time.Second,
	}, nil)
}

func TestSyncBookingPatchesContact(t *testing.T) {
	var patched map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/contacts/search":
			require.Equal(t, "sam@example.com", r.URL.Query().Get("email"))
			require.Equal(t, "bot-1", r.URL.Query().Get("botId"))
			json.NewEncoder(w).Encode(map[string]any{"contacts": []map[string]any{{"_id": "c-42"}}})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v2/contacts/c-42":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SyncBooking(context.Background(), "sam@example.com", "2026-09-07T14:00:00+01:00", "Jane Doe")
	require.NoError(t, err)

	attrs, ok := patched["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-09-07T14:00:00+01:00", attrs["booking_time"])
	assert.Equal(t, "Jane Doe", attrs["demo_session_coach"])
}

func TestSyncBookingMissingContactIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.NoError(t, client.SyncBooking(context.Background(), "nobody@example.com", "", "Jane Doe"))
}

func TestSyncBookingSkipsWhenUnconfigured(t *testing.T) {
	client := NewClient(config.CRMConfig{}, nil)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.SyncBooking(context.Background(), "sam@example.com", "", "Jane Doe"))
}

func TestSyncBookingPropagatesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.Error(t, client.SyncBooking(context.Background(), "sam@example.com", "", "Jane Doe"))
}
