package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"github.com/birddigital/voicebridge/pkg/bridge"
	"github.com/birddigital/voicebridge/pkg/calendar"
	"github.com/birddigital/voicebridge/pkg/telephony"
)

// AgentSchema is the SQL DDL for the agent/business/phone_number/
// tool_connection tables the Bridge reads at call open.
const AgentSchema = `
CREATE TABLE IF NOT EXISTS business (
    id                   TEXT PRIMARY KEY,
    display_name         TEXT NOT NULL,
    address              TEXT NOT NULL DEFAULT '',
    contact_email        TEXT NOT NULL DEFAULT '',
    phone                TEXT NOT NULL DEFAULT '',
    subscription_active  BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS agent (
    id            TEXT PRIMARY KEY,
    business_id   TEXT NOT NULL REFERENCES business(id),
    model         TEXT NOT NULL,
    voice         TEXT NOT NULL,
    system_prompt TEXT NOT NULL DEFAULT '',
    greeting      TEXT NOT NULL DEFAULT '',
    goodbye       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS phone_number (
    e164      TEXT PRIMARY KEY,
    agent_id  TEXT NOT NULL REFERENCES agent(id)
);

CREATE TABLE IF NOT EXISTS tool_connection (
    business_id TEXT NOT NULL REFERENCES business(id),
    provider    TEXT NOT NULL,
    settings    JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (business_id, provider)
);
`

// AgentStore resolves agents by number and assembles the immutable
// per-call configuration snapshot, and answers the subscription policy
// predicates the ingress webhook enforces.
type AgentStore struct {
	db DB
}

var (
	_ telephony.AgentResolver      = (*AgentStore)(nil)
	_ telephony.SubscriptionPolicy = (*AgentStore)(nil)
	_ bridge.ConfigLoader          = (*AgentStore)(nil)
	_ calendar.TokenStore          = (*AgentStore)(nil)
)

// calendarTokenSettings is the shape of tool_connection.settings for the
// google-calendar/calendar provider's OAuth credential.
type calendarTokenSettings struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// NewAgentStore constructs an AgentStore over an open pool or connection.
func NewAgentStore(db DB) *AgentStore {
	return &AgentStore{db: db}
}

// ResolveAgentByPhoneNumber implements telephony.AgentResolver.
func (s *AgentStore) ResolveAgentByPhoneNumber(ctx context.Context, to string) (telephony.AgentRef, error) {
	const q = `
		SELECT a.id, a.business_id
		FROM phone_number p
		JOIN agent a ON a.id = p.agent_id
		WHERE p.e164 = $1`
	var ref telephony.AgentRef
	err := s.db.QueryRow(ctx, q, to).Scan(&ref.AgentID, &ref.BusinessID)
	if errors.Is(err, pgx.ErrNoRows) {
		return telephony.AgentRef{}, telephony.ErrAgentNotFound
	}
	if err != nil {
		return telephony.AgentRef{}, fmt.Errorf("store: resolve agent: %w", err)
	}
	return ref, nil
}

// HasActiveSubscription implements telephony.SubscriptionPolicy.
func (s *AgentStore) HasActiveSubscription(ctx context.Context, businessID string) (bool, error) {
	const q = `SELECT subscription_active FROM business WHERE id = $1`
	var active bool
	if err := s.db.QueryRow(ctx, q, businessID).Scan(&active); err != nil {
		return false, fmt.Errorf("store: check subscription: %w", err)
	}
	return active, nil
}

// CompletedMinutes implements telephony.SubscriptionPolicy.
func (s *AgentStore) CompletedMinutes(ctx context.Context, agentID string) (float64, error) {
	const q = `
		SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at))) / 60.0, 0)
		FROM conversation
		WHERE agent_id = $1 AND status = 'completed'`
	var minutes float64
	if err := s.db.QueryRow(ctx, q, agentID).Scan(&minutes); err != nil {
		return 0, fmt.Errorf("store: completed minutes: %w", err)
	}
	return minutes, nil
}

// LoadSnapshot implements bridge.ConfigLoader. It resolves the agent's
// model/voice/prompt, its owning business context, the bound phone number,
// and every enabled tool provider's settings into one immutable snapshot.
func (s *AgentStore) LoadSnapshot(ctx context.Context, agentID string) (*bridge.AgentConfigSnapshot, error) {
	const agentQ = `
		SELECT a.id, a.model, a.voice, a.system_prompt, a.greeting, a.goodbye,
		       b.id, b.display_name, b.address, b.contact_email, b.phone
		FROM agent a
		JOIN business b ON b.id = a.business_id
		WHERE a.id = $1`

	snap := &bridge.AgentConfigSnapshot{}
	err := s.db.QueryRow(ctx, agentQ, agentID).Scan(
		&snap.AgentID, &snap.Model, &snap.Voice, &snap.SystemPrompt, &snap.Greeting, &snap.Goodbye,
		&snap.BusinessID, &snap.Business.DisplayName, &snap.Business.Address, &snap.Business.ContactEmail, &snap.Business.Phone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, telephony.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load agent: %w", err)
	}

	const phoneQ = `SELECT e164 FROM phone_number WHERE agent_id = $1 LIMIT 1`
	_ = s.db.QueryRow(ctx, phoneQ, agentID).Scan(&snap.PhoneNumber)

	const toolsQ = `SELECT provider, settings FROM tool_connection WHERE business_id = $1`
	rows, err := s.db.Query(ctx, toolsQ, snap.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("store: load tool connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var settingsJSON []byte
		if err := rows.Scan(&provider, &settingsJSON); err != nil {
			return nil, fmt.Errorf("store: scan tool connection: %w", err)
		}
		applyToolSettings(&snap.Tools, provider, settingsJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate tool connections: %w", err)
	}

	return snap, nil
}

// CalendarToken implements calendar.TokenStore. It reads the business's
// connected google-calendar credential out of tool_connection.settings.
func (s *AgentStore) CalendarToken(ctx context.Context, businessID string) (*oauth2.Token, error) {
	const q = `
		SELECT settings FROM tool_connection
		WHERE business_id = $1 AND provider IN ('google-calendar', 'calendar')
		LIMIT 1`
	var settingsJSON []byte
	err := s.db.QueryRow(ctx, q, businessID).Scan(&settingsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: no calendar connection for business %s", businessID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load calendar token: %w", err)
	}

	var creds calendarTokenSettings
	if err := json.Unmarshal(settingsJSON, &creds); err != nil {
		return nil, fmt.Errorf("store: parse calendar token: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}, nil
}

func applyToolSettings(tools *bridge.ToolSettings, provider string, settingsJSON []byte) {
	switch provider {
	case "knowledge_base":
		tools.KnowledgeBaseEnabled = true
	case "google-calendar", "calendar":
		var cal bridge.CalendarSettings
		if err := json.Unmarshal(settingsJSON, &cal); err == nil {
			cal.Enabled = true
			tools.Calendar = cal
		}
	}
}
