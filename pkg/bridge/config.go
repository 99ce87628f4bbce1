package bridge

import "context"

// BusinessContext is the portion of a business's profile the instruction
// builder quotes verbatim into the system prompt.
type BusinessContext struct {
	DisplayName  string
	Address      string
	ContactEmail string
	Phone        string
}

// CalendarSettings configures the calendar tool provider for one agent.
type CalendarSettings struct {
	Enabled            bool   `json:"enabled"`
	DefaultDurationMin int    `json:"default_duration_minutes"`
	BusinessHoursStart string `json:"business_hours_start"` // "HH:MM", local to the business
	BusinessHoursEnd   string `json:"business_hours_end"`
	BookingHorizonDays int    `json:"booking_horizon_days"`
	AllowConflicts     bool   `json:"allow_conflicts"`
}

// ToolSettings bundles the per-provider settings resolved for one agent.
// Zero-value fields mean "provider disabled".
type ToolSettings struct {
	KnowledgeBaseEnabled bool
	Calendar             CalendarSettings
}

// AgentConfigSnapshot is the immutable per-call view of an agent's
// configuration, resolved once at call open and never mutated mid-call.
type AgentConfigSnapshot struct {
	AgentID      string
	BusinessID   string
	Model        string
	Voice        string
	SystemPrompt string
	Greeting     string
	Goodbye      string
	Business     BusinessContext
	PhoneNumber  string
	Tools        ToolSettings
}

// ConfigLoader resolves the agent config snapshot at call open. Implemented
// by pkg/store against the agent, business, phone_number and
// tool_connection tables.
type ConfigLoader interface {
	LoadSnapshot(ctx context.Context, agentID string) (*AgentConfigSnapshot, error)
}
