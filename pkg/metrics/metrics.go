// Package metrics wraps the OpenTelemetry Metrics API with the small set
// of instruments the Bridge needs: active-session gauge, audio frame
// counters, mark-queue depth, and function-call latency.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

const meterName = "github.com/birddigital/voicebridge"

// Bridge implements bridge.MetricsSink by recording against OpenTelemetry
// instruments.
type Bridge struct {
	sessionsActive     metric.Int64UpDownCounter
	audioFramesSent    metric.Int64Counter
	audioFramesDropped metric.Int64Counter
	markQueueDepth     metric.Int64Gauge
	functionCallDur    metric.Float64Histogram
}

var _ bridge.MetricsSink = (*Bridge)(nil)

// New creates a fully initialized Bridge using mp.
func New(mp metric.MeterProvider) (*Bridge, error) {
	m := mp.Meter(meterName)
	b := &Bridge{}
	var err error

	if b.sessionsActive, err = m.Int64UpDownCounter("voicebridge.sessions.active",
		metric.WithDescription("Number of in-progress calls."),
	); err != nil {
		return nil, err
	}
	if b.audioFramesSent, err = m.Int64Counter("voicebridge.audio.frames_sent",
		metric.WithDescription("Outbound audio frames delivered to the carrier."),
	); err != nil {
		return nil, err
	}
	if b.audioFramesDropped, err = m.Int64Counter("voicebridge.audio.frames_dropped",
		metric.WithDescription("Outbound audio frames dropped due to decode/encode failure."),
	); err != nil {
		return nil, err
	}
	if b.markQueueDepth, err = m.Int64Gauge("voicebridge.mark_queue.depth",
		metric.WithDescription("Estimated number of unplayed outbound audio frames."),
	); err != nil {
		return nil, err
	}
	if b.functionCallDur, err = m.Float64Histogram("voicebridge.function_call.duration",
		metric.WithDescription("Latency of a tool dispatch."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return b, nil
}

// SessionStarted implements bridge.MetricsSink.
func (b *Bridge) SessionStarted() { b.sessionsActive.Add(context.Background(), 1) }

// SessionEnded implements bridge.MetricsSink.
func (b *Bridge) SessionEnded() { b.sessionsActive.Add(context.Background(), -1) }

// AudioFrameSent implements bridge.MetricsSink.
func (b *Bridge) AudioFrameSent() { b.audioFramesSent.Add(context.Background(), 1) }

// AudioFrameDropped implements bridge.MetricsSink.
func (b *Bridge) AudioFrameDropped() { b.audioFramesDropped.Add(context.Background(), 1) }

// MarkQueueDepth implements bridge.MetricsSink.
func (b *Bridge) MarkQueueDepth(n int) {
	b.markQueueDepth.Record(context.Background(), int64(n))
}

// FunctionCallDuration implements bridge.MetricsSink.
func (b *Bridge) FunctionCallDuration(tool string, d time.Duration) {
	b.functionCallDur.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("tool", tool)))
}
