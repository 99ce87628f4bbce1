package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

// TokenStore resolves the stored OAuth token for a business's connected
// calendar account, from the tool_connection table.
type TokenStore interface {
	CalendarToken(ctx context.Context, businessID string) (*oauth2.Token, error)
}

// Multiplexer implements bridge.CalendarProvider across every business by
// lazily building and caching one Client per business id. A single
// voicebridge process serves many agents, each with its own connected
// calendar account, so there is no single token to construct at startup.
type Multiplexer struct {
	tokens  TokenStore
	baseURL string

	mu      sync.Mutex
	clients map[string]*Client
}

var _ bridge.CalendarProvider = (*Multiplexer)(nil)

// NewMultiplexer builds a Multiplexer resolving tokens via tokens.
func NewMultiplexer(tokens TokenStore, baseURL string) *Multiplexer {
	return &Multiplexer{
		tokens:  tokens,
		baseURL: baseURL,
		clients: make(map[string]*Client),
	}
}

// CheckAvailability implements bridge.CalendarProvider.
func (m *Multiplexer) CheckAvailability(ctx context.Context, businessID string, timeMin, timeMax time.Time) ([]bridge.BusyInterval, error) {
	client, err := m.clientFor(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return client.CheckAvailability(ctx, businessID, timeMin, timeMax)
}

// CreateEvent implements bridge.CalendarProvider.
func (m *Multiplexer) CreateEvent(ctx context.Context, businessID, summary string, start, end time.Time, description string) (string, string, error) {
	client, err := m.clientFor(ctx, businessID)
	if err != nil {
		return "", "", err
	}
	return client.CreateEvent(ctx, businessID, summary, start, end, description)
}

func (m *Multiplexer) clientFor(ctx context.Context, businessID string) (*Client, error) {
	m.mu.Lock()
	client, ok := m.clients[businessID]
	m.mu.Unlock()
	if ok {
		return client, nil
	}

	token, err := m.tokens.CalendarToken(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("calendar: resolve token for business %s: %w", businessID, err)
	}

	client = New(token, m.baseURL)
	m.mu.Lock()
	m.clients[businessID] = client
	m.mu.Unlock()
	return client, nil
}
