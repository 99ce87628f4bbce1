package bridge

import "errors"

// Sentinel errors surfaced by the Session Orchestrator. Transport and
// protocol errors are wrapped with fmt.Errorf("...: %w", ...) around these
// where the caller needs to distinguish the failure class.
var (
	// ErrAgentNotFound mirrors telephony.ErrAgentNotFound for callers that
	// only depend on pkg/bridge.
	ErrAgentNotFound = errors.New("bridge: agent not found")

	// ErrTrialExhausted mirrors the ingress trial-policy rejection.
	ErrTrialExhausted = errors.New("bridge: trial exhausted")

	// ErrStartTimeout is returned when the carrier never sends a start
	// envelope within the bounded attempt count.
	ErrStartTimeout = errors.New("bridge: carrier start envelope timeout")

	// ErrTelephonyChannel marks a fatal error on the C3 link.
	ErrTelephonyChannel = errors.New("bridge: telephony channel error")

	// ErrRealtimeChannel marks a fatal error on the C2 link.
	ErrRealtimeChannel = errors.New("bridge: realtime channel error")

	// ErrSessionClosed marks an operation on a session that has already
	// closed. The Session Orchestrator in this package does not return it.
	ErrSessionClosed = errors.New("bridge: session closed")
)
