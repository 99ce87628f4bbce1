package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

// MessageSchema is the SQL DDL for the append-only message table.
const MessageSchema = `
CREATE TABLE IF NOT EXISTS message (
    id            TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
    role          TEXT NOT NULL,
    content       TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conversation_id);
`

// MessageStore implements bridge.MessageStore against the message table.
type MessageStore struct {
	db DB
}

var _ bridge.MessageStore = (*MessageStore)(nil)

// NewMessageStore constructs a MessageStore over an open pool or connection.
func NewMessageStore(db DB) *MessageStore {
	return &MessageStore{db: db}
}

// InsertMessage appends one transcript row. Rows are append-only; a call's
// two roles may interleave freely.
func (s *MessageStore) InsertMessage(ctx context.Context, callID, role, text string) error {
	const q = `
		INSERT INTO message (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, now())`
	if _, err := s.db.Exec(ctx, q, uuid.New().String(), callID, role, text); err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}
