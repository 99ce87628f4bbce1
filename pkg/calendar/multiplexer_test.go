package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeTokenStore struct {
	calls atomic.Int32
	url   string
}

func (f *fakeTokenStore) CalendarToken(ctx context.Context, businessID string) (*oauth2.Token, error) {
	f.calls.Add(1)
	return &oauth2.Token{AccessToken: "tok-" + businessID}, nil
}

func TestMultiplexerCachesClientPerBusiness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"calendars":{"primary":{"busy":[]}}}`))
	}))
	defer srv.Close()

	tokens := &fakeTokenStore{}
	mux := NewMultiplexer(tokens, srv.URL)

	_, err := mux.CheckAvailability(context.Background(), "biz-1", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = mux.CheckAvailability(context.Background(), "biz-1", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int32(1), tokens.calls.Load())
}

func TestMultiplexerResolvesDistinctTokensPerBusiness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"calendars":{"primary":{"busy":[]}}}`))
	}))
	defer srv.Close()

	tokens := &fakeTokenStore{}
	mux := NewMultiplexer(tokens, srv.URL)

	_, err := mux.CheckAvailability(context.Background(), "biz-1", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = mux.CheckAvailability(context.Background(), "biz-2", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int32(2), tokens.calls.Load())
}
