package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(&oauth2.Token{AccessToken: "test-token"}, srv.URL)
	return c, srv
}

func TestCheckAvailabilityParsesBusySlots(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/freeBusy", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{
				"primary": map[string]any{
					"busy": []map[string]string{
						{"start": "2026-04-15T10:00:00Z", "end": "2026-04-15T10:30:00Z"},
					},
				},
			},
		})
	})
	defer srv.Close()

	busy, err := c.CheckAvailability(context.Background(), "biz-1",
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, 10, busy[0].Start.Hour())
}

func TestCreateEventReturnsIDAndLink(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/events")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "evt_1", "htmlLink": "https://calendar.example/evt_1"})
	})
	defer srv.Close()

	id, link, err := c.CreateEvent(context.Background(), "biz-1", "Checkup",
		time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC), "")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", id)
	assert.Equal(t, "https://calendar.example/evt_1", link)
}

func TestCreateEventSurfacesBackendError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	defer srv.Close()

	_, _, err := c.CreateEvent(context.Background(), "biz-1", "Checkup", time.Now(), time.Now().Add(time.Hour), "")
	assert.Error(t, err)
}
