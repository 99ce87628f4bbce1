package bridge

import "sync"

// TurnState is who currently holds the floor in a call.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAgentSpeaking
	TurnUserSpeaking
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAgentSpeaking:
		return "agent-speaking"
	case TurnUserSpeaking:
		return "user-speaking"
	default:
		return "unknown"
	}
}

// TruncateInstruction is what the caller must send to C2 on barge-in.
type TruncateInstruction struct {
	ItemID       string
	ContentIndex int
	ElapsedMs    int
}

// TurnMachine implements the C4 state machine. It owns no I/O: callers feed
// it events and act on the returned instructions. All fields are guarded by
// mu so a Session's C2 and C3 read loops can both drive it concurrently.
type TurnMachine struct {
	mu sync.Mutex

	state                  TurnState
	lastAssistantItem      string
	responseStartTimestamp int64
	markQueue              []string
	latestMediaTimestamp   int64
}

// NewTurnMachine returns a machine in the idle state.
func NewTurnMachine() *TurnMachine {
	return &TurnMachine{state: TurnIdle}
}

// State returns the current turn state.
func (t *TurnMachine) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ObserveMediaTimestamp records the carrier's monotonically increasing
// millisecond timestamp from an inbound media envelope.
func (t *TurnMachine) ObserveMediaTimestamp(ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latestMediaTimestamp = ts
}

// OnOutboundAudioDelta records an outbound audio delta for itemID. Every
// delta pushes a "responsePart" correlator onto the mark queue (mirrored by
// the caller sending a mark on C3); isNewItem additionally reports whether
// this is the first delta of a new assistant item, in which case
// last_assistant_item and response_start_timestamp are (re)anchored.
func (t *TurnMachine) OnOutboundAudioDelta(itemID string) (markName string, isNewItem bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasIdle := t.state != TurnAgentSpeaking
	t.state = TurnAgentSpeaking
	isNewItem = wasIdle || t.lastAssistantItem != itemID
	if isNewItem {
		t.lastAssistantItem = itemID
		t.responseStartTimestamp = t.latestMediaTimestamp
	}

	t.markQueue = append(t.markQueue, "responsePart")
	return "responsePart", isNewItem
}

// OnSpeechStarted handles a caller barge-in. If an assistant item is in
// flight it returns a truncate instruction the caller must send on C2
// before clearing C3; ok is false when there is nothing to truncate.
func (t *TurnMachine) OnSpeechStarted() (instr TruncateInstruction, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = TurnUserSpeaking
	t.markQueue = nil

	if t.lastAssistantItem == "" {
		return TruncateInstruction{}, false
	}

	elapsed := t.latestMediaTimestamp - t.responseStartTimestamp
	if elapsed < 0 {
		elapsed = 0
	}
	instr = TruncateInstruction{
		ItemID:       t.lastAssistantItem,
		ContentIndex: 0,
		ElapsedMs:    int(elapsed),
	}
	t.lastAssistantItem = ""
	t.responseStartTimestamp = 0
	return instr, true
}

// OnMarkAck pops the head of the mark queue on a carrier mark
// acknowledgement.
func (t *TurnMachine) OnMarkAck() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.markQueue) > 0 {
		t.markQueue = t.markQueue[1:]
	}
}

// OnResponseDone transitions to idle once a response completes with no
// further deltas pending.
func (t *TurnMachine) OnResponseDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TurnIdle
}

// MarkQueueDepth reports the estimate of unplayed outbound frames.
func (t *TurnMachine) MarkQueueDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.markQueue)
}

// LastAssistantItem reports the item id currently in flight, or "".
func (t *TurnMachine) LastAssistantItem() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAssistantItem
}
