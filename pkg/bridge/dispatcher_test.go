package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birddigital/voicebridge/pkg/realtime"
)

type fakeRetriever struct {
	results []RetrievalResult
	err     error
}

func (f fakeRetriever) SemanticSearch(ctx context.Context, agentID, query string, k int, minSimilarity float64) ([]RetrievalResult, error) {
	return f.results, f.err
}

type fakeCalendar struct {
	busy      []BusyInterval
	createErr error
}

func (f fakeCalendar) CheckAvailability(ctx context.Context, businessID string, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	return f.busy, nil
}

func (f fakeCalendar) CreateEvent(ctx context.Context, businessID, summary string, start, end time.Time, description string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return "evt_1", "https://calendar.example/evt_1", nil
}

func TestDispatchSearchKnowledgeBaseFound(t *testing.T) {
	d := &Dispatcher{Retriever: fakeRetriever{results: []RetrievalResult{
		{Text: "We are open Sundays 10-2", Similarity: 0.81, Filename: "hours.pdf"},
		{Text: "Holiday hours vary", Similarity: 0.77, Filename: "hours.pdf"},
	}}}

	item := realtime.OutputItem{CallID: "c_12", Name: "search_knowledge_base", Arguments: `{"query":"hours Sunday"}`}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, rearm)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, true, parsed["found"])
	assert.Len(t, parsed["results"], 2)
}

func TestDispatchSearchKnowledgeBaseNotFound(t *testing.T) {
	d := &Dispatcher{Retriever: fakeRetriever{}}
	item := realtime.OutputItem{CallID: "c_1", Name: "search_knowledge_base", Arguments: `{"query":"nothing"}`}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, rearm)
	assert.Contains(t, out, `"found":false`)
}

func TestDispatchCallIDAnsweredAtMostOnce(t *testing.T) {
	d := &Dispatcher{Retriever: fakeRetriever{}}
	item := realtime.OutputItem{CallID: "c_1", Name: "search_knowledge_base", Arguments: `{"query":"x"}`}

	out1, rearm1, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	require.NotEmpty(t, out1)
	assert.True(t, rearm1)

	out2, rearm2, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.Empty(t, out2)
	assert.False(t, rearm2)
}

func TestDispatchEndCallDoesNotRearm(t *testing.T) {
	called := make(chan string, 1)
	d := &Dispatcher{OnEndCall: func(ctx context.Context, reason string) { called <- reason }}

	item := realtime.OutputItem{CallID: "c_9", Name: "end_call", Arguments: `{"reason":"Customer satisfied"}`}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, rearm)
	assert.Contains(t, out, `"success":true`)

	select {
	case reason := <-called:
		assert.Equal(t, "Customer satisfied", reason)
	case <-time.After(6 * time.Second):
		t.Fatal("OnEndCall was not invoked within the grace period")
	}
}

func TestDispatchCreateCalendarEventConflictRejection(t *testing.T) {
	// The date must lie inside the booking horizon, or the past/horizon
	// check rejects the request before free-busy is consulted.
	day := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	busyStart, _ := time.ParseInLocation("2006-01-02 15:04", day+" 10:00", time.Local)
	busyEnd, _ := time.ParseInLocation("2006-01-02 15:04", day+" 10:30", time.Local)

	d := &Dispatcher{
		Calendar: fakeCalendar{busy: []BusyInterval{{Start: busyStart, End: busyEnd}}},
		Settings: CalendarSettings{
			DefaultDurationMin: 30,
			BusinessHoursStart: "09:00",
			BusinessHoursEnd:   "17:00",
			BookingHorizonDays: 30,
			AllowConflicts:     false,
		},
	}

	item := realtime.OutputItem{
		CallID:    "c_conflict",
		Name:      "create_calendar_event",
		Arguments: `{"summary":"Checkup","date":"` + day + `","start_time":"10:00"}`,
	}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, rearm)
	assert.Contains(t, out, "conflict")
}

func TestDispatchCreateCalendarEventOutsideBusinessHours(t *testing.T) {
	d := &Dispatcher{
		Calendar: fakeCalendar{},
		Settings: CalendarSettings{
			DefaultDurationMin: 30,
			BusinessHoursStart: "09:00",
			BusinessHoursEnd:   "17:00",
			BookingHorizonDays: 30,
		},
	}
	item := realtime.OutputItem{
		CallID:    "c_late",
		Name:      "create_calendar_event",
		Arguments: `{"summary":"Late visit","date":"2026-04-15","start_time":"20:00"}`,
	}
	out, _, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.Contains(t, out, "business hours")
}

func TestDispatchCreateCalendarEventSucceeds(t *testing.T) {
	d := &Dispatcher{
		Calendar: fakeCalendar{},
		Settings: CalendarSettings{
			DefaultDurationMin: 30,
			BusinessHoursStart: "09:00",
			BusinessHoursEnd:   "17:00",
			BookingHorizonDays: 365,
			AllowConflicts:     true,
		},
	}
	future := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	item := realtime.OutputItem{
		CallID:    "c_ok",
		Name:      "create_calendar_event",
		Arguments: `{"summary":"Checkup","date":"` + future + `","start_time":"10:00"}`,
	}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, rearm)
	assert.Contains(t, out, "evt_1")
}

func TestDispatchArgumentParseErrorReturnsErrorPayload(t *testing.T) {
	d := &Dispatcher{}
	item := realtime.OutputItem{CallID: "c_bad", Name: "check_calendar", Arguments: `not json`}
	out, rearm, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, rearm)
	assert.Contains(t, out, "error")
}
