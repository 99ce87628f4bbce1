package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/birddigital/voicebridge/pkg/realtime"
)

// RetrievalResult is one knowledge-base chunk returned to the LLM.
type RetrievalResult struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Filename   string  `json:"filename"`
}

// Retriever is consumed by search_knowledge_base. Implemented by
// pkg/retrieval.
type Retriever interface {
	SemanticSearch(ctx context.Context, agentID, query string, k int, minSimilarity float64) ([]RetrievalResult, error)
}

// BusyInterval is one busy slot reported by a calendar provider.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// CalendarProvider is consumed by check_calendar and create_calendar_event.
// Implemented by pkg/calendar.
type CalendarProvider interface {
	CheckAvailability(ctx context.Context, businessID string, timeMin, timeMax time.Time) ([]BusyInterval, error)
	CreateEvent(ctx context.Context, businessID, summary string, start, end time.Time, description string) (eventID, link string, err error)
}

const (
	knowledgeBaseTopK          = 3
	knowledgeBaseMinSimilarity = 0.5
	endCallGoodbyeGracePeriod  = 4 * time.Second
	calendarBackendCallTimeout = 8 * time.Second
)

// Dispatcher implements C5: it routes function_call items emitted by C2 to
// the appropriate tool and formats the JSON result that is round-tripped
// back as a function_call_output.
type Dispatcher struct {
	AgentID    string
	BusinessID string

	Retriever Retriever
	Calendar  CalendarProvider
	Settings  CalendarSettings

	// OnEndCall is invoked once end_call is dispatched, after the grace
	// period for goodbye audio has elapsed. It must finalize the Session.
	OnEndCall func(ctx context.Context, reason string)

	answered map[string]bool
}

// Dispatch routes a single function_call item. It returns the JSON payload
// to send back as the function_call_output and whether the caller must
// follow up with a response.create. end_call is the only tool that returns
// rearm=false.
//
// Every call_id is answered at most once; a repeated call_id is a no-op
// returning rearm=false so the caller never double-sends.
func (d *Dispatcher) Dispatch(ctx context.Context, item realtime.OutputItem) (outputJSON string, rearm bool, err error) {
	if d.answered == nil {
		d.answered = make(map[string]bool)
	}
	if d.answered[item.CallID] {
		return "", false, nil
	}
	d.answered[item.CallID] = true

	switch item.Name {
	case "search_knowledge_base":
		return d.dispatchSearchKnowledgeBase(ctx, item.Arguments)
	case "end_call":
		return d.dispatchEndCall(ctx, item.Arguments)
	case "check_calendar":
		return d.dispatchCheckCalendar(ctx, item.Arguments)
	case "create_calendar_event":
		return d.dispatchCreateCalendarEvent(ctx, item.Arguments)
	default:
		return errorOutput(fmt.Sprintf("unknown tool %q", item.Name)), true, nil
	}
}

func (d *Dispatcher) dispatchSearchKnowledgeBase(ctx context.Context, argsJSON string) (string, bool, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorOutput("could not parse arguments"), true, nil
	}

	results, err := d.Retriever.SemanticSearch(ctx, d.AgentID, args.Query, knowledgeBaseTopK, knowledgeBaseMinSimilarity)
	if err != nil {
		return errorOutput("knowledge base is temporarily unavailable"), true, nil
	}
	if len(results) == 0 {
		out, _ := json.Marshal(map[string]any{
			"found":   false,
			"message": "No relevant information was found.",
		})
		return string(out), true, nil
	}

	out, _ := json.Marshal(map[string]any{
		"found":   true,
		"results": results,
		"summary": fmt.Sprintf("Found %d relevant passage(s).", len(results)),
	})
	return string(out), true, nil
}

func (d *Dispatcher) dispatchEndCall(ctx context.Context, argsJSON string) (string, bool, error) {
	var args struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal([]byte(argsJSON), &args)

	if d.OnEndCall != nil {
		go func() {
			graceCtx, cancel := context.WithTimeout(ctx, endCallGoodbyeGracePeriod)
			defer cancel()
			<-graceCtx.Done()
			// Only fire on natural elapse. If ctx was cancelled first (carrier
			// hangup, max duration reached), the session is already finalizing
			// through another path.
			if errors.Is(graceCtx.Err(), context.DeadlineExceeded) {
				d.OnEndCall(context.Background(), args.Reason)
			}
		}()
	}

	out, _ := json.Marshal(map[string]any{
		"success": true,
		"message": "Ending the call now.",
	})
	return string(out), false, nil
}

func (d *Dispatcher) dispatchCheckCalendar(ctx context.Context, argsJSON string) (string, bool, error) {
	var args struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorOutput("could not parse arguments"), true, nil
	}

	day, err := time.Parse("2006-01-02", args.Date)
	if err != nil {
		return errorOutput("date must be in YYYY-MM-DD format"), true, nil
	}

	cctx, cancel := context.WithTimeout(ctx, calendarBackendCallTimeout)
	defer cancel()

	busy, err := d.Calendar.CheckAvailability(cctx, d.BusinessID, day, day.Add(24*time.Hour))
	if err != nil {
		return errorOutput("calendar is temporarily unavailable"), true, nil
	}

	out, _ := json.Marshal(map[string]any{"busy": busy})
	return string(out), true, nil
}

func (d *Dispatcher) dispatchCreateCalendarEvent(ctx context.Context, argsJSON string) (string, bool, error) {
	var args struct {
		Summary     string `json:"summary"`
		Date        string `json:"date"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorOutput("could not parse arguments"), true, nil
	}

	start, err := parseDateTime(args.Date, args.StartTime)
	if err != nil {
		return errorOutput("start time is invalid"), true, nil
	}

	var end time.Time
	if args.EndTime == "" {
		// (a) no end_time: derive it from the provider's default duration.
		end = start.Add(time.Duration(d.Settings.DefaultDurationMin) * time.Minute)
	} else {
		end, err = parseDateTime(args.Date, args.EndTime)
		if err != nil {
			return errorOutput("end time is invalid"), true, nil
		}
	}

	// (b) reject outside business hours.
	if !withinBusinessHours(start, end, d.Settings.BusinessHoursStart, d.Settings.BusinessHoursEnd) {
		return errorOutput("the requested time is outside business hours"), true, nil
	}

	// (c) reject in the past or beyond the booking horizon.
	now := time.Now()
	if start.Before(now) {
		return errorOutput("the requested date is in the past"), true, nil
	}
	if start.After(now.AddDate(0, 0, d.Settings.BookingHorizonDays)) {
		return errorOutput("the requested date is beyond the booking horizon"), true, nil
	}

	cctx, cancel := context.WithTimeout(ctx, calendarBackendCallTimeout)
	defer cancel()

	// (d) if conflicts are disallowed, check free-busy and reject on overlap.
	if !d.Settings.AllowConflicts {
		busy, err := d.Calendar.CheckAvailability(cctx, d.BusinessID, start, end)
		if err != nil {
			return errorOutput("calendar is temporarily unavailable"), true, nil
		}
		for _, b := range busy {
			if start.Before(b.End) && end.After(b.Start) {
				return errorOutput("that time has a scheduling conflict"), true, nil
			}
		}
	}

	// (e) create the event.
	id, link, err := d.Calendar.CreateEvent(cctx, d.BusinessID, args.Summary, start, end, args.Description)
	if err != nil {
		return errorOutput("could not create the calendar event"), true, nil
	}

	out, _ := json.Marshal(map[string]any{
		"id":   id,
		"link": link,
	})
	return string(out), true, nil
}

func parseDateTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
}

func withinBusinessHours(start, end time.Time, openClock, closeClock string) bool {
	open, err1 := time.Parse("15:04", openClock)
	closeT, err2 := time.Parse("15:04", closeClock)
	if err1 != nil || err2 != nil {
		return true
	}
	startClock := time.Date(0, 1, 1, start.Hour(), start.Minute(), 0, 0, time.UTC)
	endClock := time.Date(0, 1, 1, end.Hour(), end.Minute(), 0, 0, time.UTC)
	openClockT := time.Date(0, 1, 1, open.Hour(), open.Minute(), 0, 0, time.UTC)
	closeClockT := time.Date(0, 1, 1, closeT.Hour(), closeT.Minute(), 0, 0, time.UTC)
	return !startClock.Before(openClockT) && !endClock.After(closeClockT)
}

func errorOutput(message string) string {
	out, _ := json.Marshal(map[string]any{"error": message})
	return string(out)
}
