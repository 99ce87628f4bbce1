// Package telephony implements the Telephony Link (C3), the Affinity
// Router (C7), and the Ingress Webhook (C8): the carrier-facing side of
// the Bridge.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the carrier media-stream protocol's JSON message shape,
// discriminated by Event.
type Envelope struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload is the "start" envelope body: stream/call identifiers
// plus the custom parameters the Ingress Webhook attached.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

// MediaPayload is the "media" envelope body.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MarkPayload is the "mark" envelope body.
type MarkPayload struct {
	Name string `json:"name"`
}

// ErrStartTimeout is returned by AwaitStart when too many non-start
// envelopes arrive before the start envelope does.
var ErrStartTimeout = fmt.Errorf("telephony: start envelope not received within bound")

// maxPreStartAttempts bounds how many non-start envelopes (e.g. a
// stray "connected" handshake) the Bridge tolerates before giving up.
const maxPreStartAttempts = 10

// MediaStream is one call's duplex channel to the carrier's media-stream
// protocol. Reads must come from a single goroutine; writes are safe for
// concurrent use.
type MediaStream struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex

	streamSID string

	pingCancel context.CancelFunc
}

// Upgrade promotes an HTTP request to a MediaStream connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*MediaStream, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("telephony: upgrade: %w", err)
	}
	ms := &MediaStream{conn: conn}
	ms.startKeepalive()
	return ms, nil
}

func (m *MediaStream) startKeepalive() {
	ctx, cancel := context.WithCancel(context.Background())
	m.pingCancel = cancel
	m.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	m.conn.SetPingHandler(func(string) error {
		m.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.writeMu.Lock()
				err := m.conn.WriteMessage(websocket.PingMessage, nil)
				m.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

// ReadEnvelope blocks for the next inbound envelope.
func (m *MediaStream) ReadEnvelope() (*Envelope, error) {
	_, data, err := m.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("telephony: read: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("telephony: decode envelope: %w", err)
	}
	return &env, nil
}

// AwaitStart reads past any number of non-start envelopes (e.g. the
// carrier's initial "connected" handshake) until the "start" envelope
// arrives, up to a small bounded attempt count.
func (m *MediaStream) AwaitStart() (*StartPayload, error) {
	for attempt := 0; attempt < maxPreStartAttempts; attempt++ {
		env, err := m.ReadEnvelope()
		if err != nil {
			return nil, err
		}
		if env.Event == "start" && env.Start != nil {
			m.streamSID = env.Start.StreamSID
			return env.Start, nil
		}
	}
	return nil, ErrStartTimeout
}

// SendMedia writes an outbound audio frame.
func (m *MediaStream) SendMedia(payloadB64 string) error {
	return m.writeEnvelope(Envelope{
		Event:     "media",
		StreamSID: m.streamSID,
		Media:     &MediaPayload{Payload: payloadB64},
	})
}

// SendClear requests the carrier drop any buffered agent audio, used on barge-in.
func (m *MediaStream) SendClear() error {
	return m.writeEnvelope(Envelope{Event: "clear", StreamSID: m.streamSID})
}

// SendMark emits a named correlator after an outbound audio delta.
func (m *MediaStream) SendMark(name string) error {
	return m.writeEnvelope(Envelope{
		Event:     "mark",
		StreamSID: m.streamSID,
		Mark:      &MarkPayload{Name: name},
	})
}

func (m *MediaStream) writeEnvelope(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("telephony: marshal envelope: %w", err)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("telephony: write: %w", err)
	}
	return nil
}

// Close closes the underlying connection. Idempotent.
func (m *MediaStream) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.pingCancel != nil {
		m.pingCancel()
	}
	m.writeMu.Lock()
	_ = m.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	m.writeMu.Unlock()
	return m.conn.Close()
}
