// Package realtime implements the Realtime Link (C2): the long-lived
// duplex JSON event channel to the remote LLM endpoint. It owns framing
// and send serialization only — interpreting events is the Session
// Orchestrator's job.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/birddigital/voicebridge/pkg/audio"
)

func encodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

const defaultBaseURL = "wss://api.openai.com/v1/realtime"

// SessionConfig carries everything needed to build the session.update
// event sent once at open.
type SessionConfig struct {
	Model             string
	Voice             string
	Instructions      string
	AudioFormat       audio.Format
	TranscriptionModel string
	SilenceDurationMs int
	Threshold         float64
	Tools             []ToolSchema
}

// Link is a single session's duplex channel to the LLM endpoint.
// Not safe for concurrent Send* calls from multiple goroutines other
// than the serialization already provided internally; Events() must be
// drained by exactly one reader.
type Link struct {
	conn   *websocket.Conn
	events chan InboundEvent

	sendMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Open dials the LLM endpoint, sends the initial session configuration,
// and starts the background read loop. apiKey is sent as a bearer token;
// an empty baseURL uses the production OpenAI Realtime endpoint.
func Open(ctx context.Context, apiKey, baseURL string, cfg SessionConfig) (*Link, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	wsURL := fmt.Sprintf("%s?model=%s", baseURL, cfg.Model)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + apiKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	linkCtx, cancel := context.WithCancel(context.Background())
	link := &Link{
		conn:   conn,
		events: make(chan InboundEvent, 64),
		ctx:    linkCtx,
		cancel: cancel,
	}

	if err := link.sendSessionUpdate(cfg); err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "session configuration failed")
		return nil, fmt.Errorf("realtime: session.update: %w", err)
	}

	go link.readLoop()
	return link, nil
}

func (l *Link) sendSessionUpdate(cfg SessionConfig) error {
	body := sessionUpdateBody{
		Type:         "realtime",
		Model:        cfg.Model,
		Voice:        cfg.Voice,
		Instructions: cfg.Instructions,
		Tools:        cfg.Tools,
		ToolChoice:   "auto",
		OutputModal:  []string{"audio"},
		Audio: audioConfig{
			Input: audioIOConfig{
				Format:         formatSpec{Type: wireFormatName(cfg.AudioFormat)},
				Transcription:  &transcription{Model: cfg.TranscriptionModel},
				NoiseReduction: &noiseReduction{Type: "near_field"},
				TurnDetection: &turnDetection{
					Type:              "server_vad",
					SilenceDurationMs: cfg.SilenceDurationMs,
					Threshold:         cfg.Threshold,
				},
			},
			Output: audioIOConfig{
				Format: formatSpec{Type: wireFormatName(cfg.AudioFormat)},
			},
		},
	}
	return l.writeJSON(sessionUpdateMessage{Type: "session.update", Session: body})
}

func wireFormatName(f audio.Format) string {
	if f == audio.FormatLinearPCM24k {
		return "audio/pcm24"
	}
	return "audio/pcmu"
}

// Events returns the channel of decoded inbound events. It is closed
// when the link terminates; the close itself is the only signal that
// the channel has ended (no event is delivered for it).
func (l *Link) Events() <-chan InboundEvent {
	return l.events
}

func (l *Link) readLoop() {
	defer close(l.events)
	for {
		_, data, err := l.conn.Read(l.ctx)
		if err != nil {
			return
		}
		var evt InboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		select {
		case l.events <- evt:
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Link) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.conn.Write(l.ctx, websocket.MessageText, data)
}

// AppendAudio sends one base64-framed audio chunk to the input buffer.
func (l *Link) AppendAudio(rawFrame []byte) error {
	return l.writeJSON(audioAppendMessage{
		Type:  "input_audio_buffer.append",
		Audio: encodeB64(rawFrame),
	})
}

// CreateUserTextItem injects a synthetic user-text conversation item,
// used for the "[Call connected]" greeting trigger.
func (l *Link) CreateUserTextItem(text string) error {
	return l.writeJSON(itemCreateMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	})
}

// CreateFunctionCallOutput posts a tool result back, tagged with the
// call_id the LLM is waiting on.
func (l *Link) CreateFunctionCallOutput(callID, outputJSON string) error {
	return l.writeJSON(itemCreateMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: outputJSON,
		},
	})
}

// RequestResponse triggers generation of the next assistant response.
func (l *Link) RequestResponse() error {
	return l.writeJSON(simpleTypeMessage{Type: "response.create"})
}

// Truncate tells the LLM to drop generated audio for item past elapsedMs.
func (l *Link) Truncate(itemID string, contentIndex, elapsedMs int) error {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	return l.writeJSON(truncateMessage{
		Type:         "conversation.item.truncate",
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   elapsedMs,
	})
}

// Cancel manually interrupts the in-flight response.
func (l *Link) Cancel() error {
	return l.writeJSON(simpleTypeMessage{Type: "response.cancel"})
}

// Close terminates the link. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
