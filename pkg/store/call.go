package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/birddigital/voicebridge/pkg/bridge"
	"github.com/birddigital/voicebridge/pkg/telephony"
)

// CallSchema is the SQL DDL for the conversation table the Bridge treats
// as the Call row described by the data model.
const CallSchema = `
CREATE TABLE IF NOT EXISTS conversation (
    id           TEXT PRIMARY KEY,
    agent_id     TEXT NOT NULL,
    caller_e164  TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'in-progress',
    resolution   TEXT,
    started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at     TIMESTAMPTZ
);
`

// CallStore implements telephony.CallAllocator and bridge.CallStore against
// the conversation table.
type CallStore struct {
	db DB
}

var (
	_ telephony.CallAllocator = (*CallStore)(nil)
	_ bridge.CallStore        = (*CallStore)(nil)
)

// NewCallStore constructs a CallStore over an open pool or connection.
func NewCallStore(db DB) *CallStore {
	return &CallStore{db: db}
}

// AllocateCall inserts a conversation row with status=in-progress and
// started_at=now, as required at ingress (C8) before the carrier opens the
// media channel.
func (s *CallStore) AllocateCall(ctx context.Context, agentID, callerE164 string) (string, error) {
	callID := uuid.New().String()
	const q = `
		INSERT INTO conversation (id, agent_id, caller_e164, status, started_at)
		VALUES ($1, $2, $3, 'in-progress', now())`
	if _, err := s.db.Exec(ctx, q, callID, agentID, callerE164); err != nil {
		return "", fmt.Errorf("store: allocate call: %w", err)
	}
	return callID, nil
}

// FinalizeCall sets the terminal status and ended_at exactly once. A
// second call for the same id is a no-op thanks to the WHERE clause, which
// is what makes Session-close idempotent from the store's side.
func (s *CallStore) FinalizeCall(ctx context.Context, callID, status string) error {
	const q = `
		UPDATE conversation
		SET status = $2, ended_at = now()
		WHERE id = $1 AND ended_at IS NULL`
	if _, err := s.db.Exec(ctx, q, callID, status); err != nil {
		return fmt.Errorf("store: finalize call: %w", err)
	}
	return nil
}
