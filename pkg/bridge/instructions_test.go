package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInstructionsIncludesGreetingAndGoodbyeDefaults(t *testing.T) {
	snap := &AgentConfigSnapshot{
		SystemPrompt: "You are a friendly assistant.",
		Business:     BusinessContext{DisplayName: "Acme Dental"},
	}

	out := BuildInstructions(snap)
	assert.Contains(t, out, defaultGreeting)
	assert.Contains(t, out, defaultGoodbye)
	assert.Contains(t, out, "Acme Dental")
}

func TestBuildInstructionsUsesConfiguredGreetingOverDefault(t *testing.T) {
	snap := &AgentConfigSnapshot{
		Greeting: "Welcome to Acme Dental, how can I help?",
		Goodbye:  "Take care!",
	}

	out := BuildInstructions(snap)
	assert.Contains(t, out, "Welcome to Acme Dental, how can I help?")
	assert.Contains(t, out, "Take care!")
	assert.NotContains(t, out, defaultGreeting)
}

func TestBuildInstructionsMentionsToolsOnlyWhenEnabled(t *testing.T) {
	withTools := &AgentConfigSnapshot{
		Tools: ToolSettings{
			KnowledgeBaseEnabled: true,
			Calendar: CalendarSettings{
				Enabled:            true,
				BusinessHoursStart: "09:00",
				BusinessHoursEnd:   "17:00",
				DefaultDurationMin: 30,
				BookingHorizonDays: 30,
			},
		},
	}
	out := BuildInstructions(withTools)
	assert.Contains(t, out, "search_knowledge_base")
	assert.Contains(t, out, "check_calendar")
	assert.Contains(t, out, "09:00-17:00")

	noTools := &AgentConfigSnapshot{}
	out = BuildInstructions(noTools)
	assert.NotContains(t, out, "# Tools")
}

func TestModelAndVoiceDefaults(t *testing.T) {
	assert.Equal(t, DefaultModel, modelOrDefault(""))
	assert.Equal(t, "gpt-4o-realtime-custom", modelOrDefault("gpt-4o-realtime-custom"))
	assert.Equal(t, DefaultVoice, voiceOrDefault(""))
	assert.Equal(t, "verse", voiceOrDefault("verse"))
}
