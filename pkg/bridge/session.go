package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/birddigital/voicebridge/pkg/audio"
	"github.com/birddigital/voicebridge/pkg/realtime"
	"github.com/birddigital/voicebridge/pkg/telephony"
)

// DefaultMaxSessionDuration is the hard upper bound on a call's lifetime
// when no override is configured.
const DefaultMaxSessionDuration = 60 * time.Minute

// CallStore is the persistence surface the Orchestrator needs for a Call
// row beyond allocation (which telephony.CallAllocator already covers).
type CallStore interface {
	telephony.CallAllocator
	FinalizeCall(ctx context.Context, callID, status string) error
}

// MessageStore appends transcript rows as they complete.
type MessageStore interface {
	InsertMessage(ctx context.Context, callID, role, text string) error
}

// MetricsSink receives Bridge-level counters. A nil sink is a valid no-op.
type MetricsSink interface {
	SessionStarted()
	SessionEnded()
	AudioFrameSent()
	AudioFrameDropped()
	MarkQueueDepth(n int)
	FunctionCallDuration(tool string, d time.Duration)
}

// Factory holds the collaborators shared across every call and produces one
// Session per media-stream upgrade. It implements telephony.SessionStarter.
type Factory struct {
	Loader   ConfigLoader
	Calls    CallStore
	Messages MessageStore

	Retriever Retriever
	Calendar  CalendarProvider

	RealtimeAPIKey     string
	RealtimeBaseURL    string
	TranscriptionModel string

	MaxSessionDuration time.Duration
	Logger             *slog.Logger
	Metrics            MetricsSink
}

var _ telephony.SessionStarter = (*Factory)(nil)

// StartSession implements telephony.SessionStarter. It is called on its own
// goroutine by the media-stream handler once the WebSocket upgrade
// completes; it owns the rest of the call's lifetime.
func (f *Factory) StartSession(ms *telephony.MediaStream, agentID string) {
	s := &session{
		factory: f,
		ms:      ms,
		agentID: agentID,
		turn:    NewTurnMachine(),
		logger:  f.logger(),
	}
	s.run()
}

func (f *Factory) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (f *Factory) maxDuration() time.Duration {
	if f.MaxSessionDuration > 0 {
		return f.MaxSessionDuration
	}
	return DefaultMaxSessionDuration
}

// session is the in-memory per-call object described by the spec's Session
// type: it owns the C2 and C3 links, the audio codec, the turn state, and
// the bookkeeping needed to finalize the Call row exactly once.
type session struct {
	factory *Factory
	ms      *telephony.MediaStream
	agentID string
	callID  string

	link  *realtime.Link
	codec *audio.Codec
	turn  *TurnMachine
	disp  *Dispatcher

	transcriptMu  sync.Mutex
	transcriptBuf strings.Builder

	logger *slog.Logger

	closeOnce   sync.Once
	statusMu    sync.Mutex
	finalStatus string
}

// setFinalStatus records the session's terminal Call status. The first
// caller wins: a graceful end_call status set by onEndCall must survive the
// channel errors that closing the links then triggers in run()'s loops.
func (s *session) setFinalStatus(status string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if s.finalStatus == "" {
		s.finalStatus = status
	}
}

func (s *session) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.factory.maxDuration())
	defer cancel()

	if err := s.open(ctx); err != nil {
		s.logger.Error("bridge: session open failed", "agent_id", s.agentID, "err", err)
		s.ms.Close()
		return
	}

	if s.factory.Metrics != nil {
		s.factory.Metrics.SessionStarted()
		defer s.factory.Metrics.SessionEnded()
	}

	g, gctx := errgroup.WithContext(ctx)

	unblock := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			s.ms.Close()
			s.link.Close()
		case <-unblock:
		}
	}()
	defer close(unblock)

	g.Go(func() error { return s.runTelephonyLoop(gctx) })
	g.Go(func() error { return s.runRealtimeLoop(gctx) })

	if err := g.Wait(); err != nil {
		s.logger.Info("bridge: session ended", "call_id", s.callID, "reason", err)
		switch {
		case errors.Is(err, ErrTelephonyChannel), errors.Is(err, ErrRealtimeChannel):
			s.setFinalStatus("failed")
		case errors.Is(err, context.DeadlineExceeded):
			s.setFinalStatus("completed")
		}
	}

	s.finalize(context.Background())
}

func (s *session) open(ctx context.Context) error {
	start, err := s.ms.AwaitStart()
	if err != nil {
		return ErrStartTimeout
	}
	s.callID = start.CustomParameters["conversation_id"]

	snap, err := s.factory.Loader.LoadSnapshot(ctx, s.agentID)
	if err != nil {
		return err
	}

	s.codec = audio.NewCodec(audio.FormatMulawPassthrough)
	s.disp = &Dispatcher{
		AgentID:    s.agentID,
		BusinessID: snap.BusinessID,
		Retriever:  s.factory.Retriever,
		Calendar:   s.factory.Calendar,
		Settings:   snap.Tools.Calendar,
		OnEndCall:  s.onEndCall,
	}

	cfg := realtime.SessionConfig{
		Model:              modelOrDefault(snap.Model),
		Voice:              voiceOrDefault(snap.Voice),
		Instructions:       BuildInstructions(snap),
		AudioFormat:        s.codec.Format(),
		TranscriptionModel: s.factory.TranscriptionModel,
		SilenceDurationMs:  500,
		Threshold:          0.6,
		Tools:              realtime.BuildToolCatalog(toolKinds(snap.Tools)),
	}

	link, err := realtime.Open(ctx, s.factory.RealtimeAPIKey, s.factory.RealtimeBaseURL, cfg)
	if err != nil {
		return err
	}
	s.link = link

	if err := s.link.CreateUserTextItem("[Call connected]"); err != nil {
		return err
	}
	return s.link.RequestResponse()
}

func toolKinds(t ToolSettings) []realtime.ToolKind {
	kinds := []realtime.ToolKind{realtime.ToolEndCall}
	if t.KnowledgeBaseEnabled {
		kinds = append(kinds, realtime.ToolSearchKnowledgeBase)
	}
	if t.Calendar.Enabled {
		kinds = append(kinds, realtime.ToolCheckCalendar, realtime.ToolCreateCalendarEvent)
	}
	return kinds
}

// runTelephonyLoop is the C3 main task: carrier media in, agent audio out.
func (s *session) runTelephonyLoop(ctx context.Context) error {
	for {
		env, err := s.ms.ReadEnvelope()
		if err != nil {
			return ErrTelephonyChannel
		}

		switch env.Event {
		case "media":
			if env.Media == nil {
				continue
			}
			s.turn.ObserveMediaTimestamp(parseTimestamp(env.Media.Timestamp))
			raw, err := s.codec.DecodeCarrierToLLM(env.Media.Payload)
			if err != nil {
				s.logger.Warn("bridge: carrier decode failed", "call_id", s.callID, "err", err)
				continue
			}
			if err := s.link.AppendAudio(raw); err != nil {
				return ErrRealtimeChannel
			}
		case "mark":
			s.turn.OnMarkAck()
			if s.factory.Metrics != nil {
				s.factory.Metrics.MarkQueueDepth(s.turn.MarkQueueDepth())
			}
		case "stop":
			return nil
		case "connected":
			// handshake acknowledgement, ignored.
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// runRealtimeLoop is the C2 background task: LLM events in, agent audio and
// transcripts and function calls dispatched.
func (s *session) runRealtimeLoop(ctx context.Context) error {
	for ev := range s.link.Events() {
		switch ev.Type {
		case realtime.EventSpeechStarted:
			instr, ok := s.turn.OnSpeechStarted()
			if ok {
				if err := s.link.Truncate(instr.ItemID, instr.ContentIndex, instr.ElapsedMs); err != nil {
					s.logger.Warn("bridge: truncate send failed", "call_id", s.callID, "err", err)
				}
			}
			if err := s.ms.SendClear(); err != nil {
				return ErrTelephonyChannel
			}

		case realtime.EventInputTranscriptDone:
			s.insertMessage(ctx, "user", ev.Transcript)

		case realtime.EventOutputAudioDelta:
			s.turn.OnOutboundAudioDelta(ev.ItemID)
			raw, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				if s.factory.Metrics != nil {
					s.factory.Metrics.AudioFrameDropped()
				}
				continue
			}
			payload, err := s.codec.EncodeLLMToCarrier(raw)
			if err != nil {
				if s.factory.Metrics != nil {
					s.factory.Metrics.AudioFrameDropped()
				}
				continue
			}
			if err := s.ms.SendMedia(payload); err != nil {
				return ErrTelephonyChannel
			}
			if s.factory.Metrics != nil {
				s.factory.Metrics.AudioFrameSent()
			}
			if err := s.ms.SendMark("responsePart"); err != nil {
				return ErrTelephonyChannel
			}

		case realtime.EventOutputTranscriptDelta:
			s.transcriptMu.Lock()
			s.transcriptBuf.WriteString(ev.Delta)
			s.transcriptMu.Unlock()

		case realtime.EventOutputTranscriptDone:
			s.transcriptMu.Lock()
			text := s.transcriptBuf.String()
			s.transcriptBuf.Reset()
			s.transcriptMu.Unlock()
			s.insertMessage(ctx, "agent", text)

		case realtime.EventOutputItemDone:
			if ev.Item != nil && ev.Item.IsFunctionCall() {
				s.dispatch(ctx, *ev.Item)
			}

		case realtime.EventError:
			if ev.Error != nil && ev.Error.IsTruncationOvershoot() {
				continue
			}
			s.logger.Warn("bridge: realtime error event", "call_id", s.callID, "detail", ev.Error)
		}
	}
	return ErrRealtimeChannel
}

func (s *session) dispatch(ctx context.Context, item realtime.OutputItem) {
	started := time.Now()
	output, rearm, err := s.disp.Dispatch(ctx, item)
	if s.factory.Metrics != nil {
		s.factory.Metrics.FunctionCallDuration(item.Name, time.Since(started))
	}
	if err != nil || output == "" {
		return
	}
	if err := s.link.CreateFunctionCallOutput(item.CallID, output); err != nil {
		s.logger.Warn("bridge: function output send failed", "call_id", s.callID, "err", err)
		return
	}
	if rearm {
		if err := s.link.RequestResponse(); err != nil {
			s.logger.Warn("bridge: response.create after tool failed", "call_id", s.callID, "err", err)
		}
	}
}

func (s *session) onEndCall(ctx context.Context, reason string) {
	s.logger.Info("bridge: end_call", "call_id", s.callID, "reason", reason)
	s.setFinalStatus("completed")
	s.ms.Close()
	s.link.Close()
}

func (s *session) insertMessage(ctx context.Context, role, text string) {
	if text == "" || s.factory.Messages == nil {
		return
	}
	if err := s.factory.Messages.InsertMessage(ctx, s.callID, role, text); err != nil {
		s.logger.Error("bridge: message insert failed", "call_id", s.callID, "err", err)
	}
}

// finalize ensures the Call row is written with a terminal status exactly
// once, regardless of which path ended the session.
func (s *session) finalize(ctx context.Context) {
	s.closeOnce.Do(func() {
		if s.link != nil {
			s.link.Close()
		}
		if s.ms != nil {
			s.ms.Close()
		}
		if s.callID == "" || s.factory.Calls == nil {
			return
		}
		status := s.finalStatus
		if status == "" {
			status = "completed"
		}
		if err := s.factory.Calls.FinalizeCall(ctx, s.callID, status); err != nil {
			s.logger.Error("bridge: call finalize failed", "call_id", s.callID, "err", err)
		}
	})
}

func parseTimestamp(s string) int64 {
	var v int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return v
		}
		v = v*10 + int64(c-'0')
	}
	return v
}

