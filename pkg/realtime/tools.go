package realtime

// ToolKind enumerates the function-call tools the Bridge can expose to
// the LLM, replacing the source's duck-typed per-agent tool list with a
// small tagged set.
type ToolKind int

const (
	ToolSearchKnowledgeBase ToolKind = iota
	ToolEndCall
	ToolCheckCalendar
	ToolCreateCalendarEvent
)

// Name returns the function name the LLM will call and C5 routes on.
func (k ToolKind) Name() string {
	switch k {
	case ToolSearchKnowledgeBase:
		return "search_knowledge_base"
	case ToolEndCall:
		return "end_call"
	case ToolCheckCalendar:
		return "check_calendar"
	case ToolCreateCalendarEvent:
		return "create_calendar_event"
	default:
		return ""
	}
}

// BuildToolCatalog assembles the JSON-schema tool definitions for the
// given enabled kinds, in the order supplied.
func BuildToolCatalog(kinds []ToolKind) []ToolSchema {
	schemas := make([]ToolSchema, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case ToolSearchKnowledgeBase:
			schemas = append(schemas, ToolSchema{
				Type:        "function",
				Name:        k.Name(),
				Description: "Search the business's knowledge base for information relevant to the caller's question.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The caller's question, rephrased as a search query.",
						},
					},
					"required": []string{"query"},
				},
			})
		case ToolEndCall:
			schemas = append(schemas, ToolSchema{
				Type:        "function",
				Name:        k.Name(),
				Description: "End the call after saying goodbye to the caller.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"reason": map[string]any{
							"type":        "string",
							"description": "Why the call is ending.",
						},
					},
					"required": []string{"reason"},
				},
			})
		case ToolCheckCalendar:
			schemas = append(schemas, ToolSchema{
				Type:        "function",
				Name:        k.Name(),
				Description: "Check calendar availability for a given date.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{
							"type":        "string",
							"description": "Date to check, formatted YYYY-MM-DD.",
						},
					},
					"required": []string{"date"},
				},
			})
		case ToolCreateCalendarEvent:
			schemas = append(schemas, ToolSchema{
				Type:        "function",
				Name:        k.Name(),
				Description: "Book a calendar appointment.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"summary":     map[string]any{"type": "string"},
						"date":        map[string]any{"type": "string", "description": "YYYY-MM-DD"},
						"start_time":  map[string]any{"type": "string", "description": "HH:MM, 24h"},
						"end_time":    map[string]any{"type": "string", "description": "HH:MM, 24h; derived from the default duration if omitted"},
						"description": map[string]any{"type": "string"},
					},
					"required": []string{"summary", "date", "start_time"},
				},
			})
		}
	}
	return schemas
}
