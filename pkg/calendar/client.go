// Package calendar implements the calendar provider consumed by the
// Function-Call Dispatcher (C5): free-busy lookups and event creation
// against a Google Calendar-shaped HTTP API. Token refresh is provider
// internal per the spec and is not handled here.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

// DefaultBaseURL is the Google Calendar v3 API root.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Client implements bridge.CalendarProvider against a single business's
// connected calendar account.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ bridge.CalendarProvider = (*Client)(nil)

// New builds a Client authorized with token. The token is used as-is:
// neither this client nor the tool_connection store refreshes an expired
// token, so requests made with one fail with the backend's error.
func New(token *oauth2.Token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token)),
		baseURL:    baseURL,
	}
}

type freeBusyRequest struct {
	TimeMin string               `json:"timeMin"`
	TimeMax string               `json:"timeMax"`
	Items   []freeBusyCalendarID `json:"items"`
}

type freeBusyCalendarID struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"busy"`
	} `json:"calendars"`
}

// CheckAvailability implements bridge.CalendarProvider.
func (c *Client) CheckAvailability(ctx context.Context, businessID string, timeMin, timeMax time.Time) ([]bridge.BusyInterval, error) {
	reqBody, err := json.Marshal(freeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []freeBusyCalendarID{{ID: "primary"}},
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: marshal freeBusy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/freeBusy", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: freeBusy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("calendar: freeBusy status %d: %s", resp.StatusCode, body)
	}

	var parsed freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("calendar: decode freeBusy response: %w", err)
	}

	var busy []bridge.BusyInterval
	for _, cal := range parsed.Calendars {
		for _, slot := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, slot.Start)
			end, err2 := time.Parse(time.RFC3339, slot.End)
			if err1 != nil || err2 != nil {
				continue
			}
			busy = append(busy, bridge.BusyInterval{Start: start, End: end})
		}
	}
	return busy, nil
}

type createEventRequest struct {
	Summary     string           `json:"summary"`
	Description string           `json:"description,omitempty"`
	Start       createEventPoint `json:"start"`
	End         createEventPoint `json:"end"`
}

type createEventPoint struct {
	DateTime string `json:"dateTime"`
}

type createEventResponse struct {
	ID      string `json:"id"`
	HTMLURL string `json:"htmlLink"`
}

// CreateEvent implements bridge.CalendarProvider.
func (c *Client) CreateEvent(ctx context.Context, businessID, summary string, start, end time.Time, description string) (string, string, error) {
	reqBody, err := json.Marshal(createEventRequest{
		Summary:     summary,
		Description: description,
		Start:       createEventPoint{DateTime: start.Format(time.RFC3339)},
		End:         createEventPoint{DateTime: end.Format(time.RFC3339)},
	})
	if err != nil {
		return "", "", fmt.Errorf("calendar: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calendars/primary/events", bytes.NewReader(reqBody))
	if err != nil {
		return "", "", fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("calendar: create event request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("calendar: create event status %d: %s", resp.StatusCode, body)
	}

	var parsed createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("calendar: decode create event response: %w", err)
	}
	return parsed.ID, parsed.HTMLURL, nil
}
