// Package audio implements the carrier-wire-to-LLM-wire audio codec: μ-law
// decode/encode, polyphase resampling, and frame chunking.
package audio

import "fmt"

// Format identifies the negotiated LLM-side audio representation. The
// carrier side is always μ-law 8kHz; Format only varies the LLM leg.
type Format int

const (
	// FormatMulawPassthrough carries μ-law 8kHz unchanged in both
	// directions. Preferred: zero resampling, zero quality loss.
	FormatMulawPassthrough Format = iota
	// FormatLinearPCM24k carries 16-bit signed little-endian linear PCM
	// at 24kHz on the LLM leg, requiring polyphase resampling against
	// the carrier's μ-law 8kHz.
	FormatLinearPCM24k
)

func (f Format) String() string {
	switch f {
	case FormatMulawPassthrough:
		return "mulaw-passthrough"
	case FormatLinearPCM24k:
		return "linear-pcm-24k"
	default:
		return fmt.Sprintf("audio.Format(%d)", int(f))
	}
}

// ParseFormat maps the LLM session's negotiated audio format identifier
// to a Format. Unknown identifiers default to pass-through, matching
// the spec's preference for pass-through as the canonical mode.
func ParseFormat(s string) Format {
	switch s {
	case "audio/pcm24", "linear-pcm-24k", "pcm16-24khz":
		return FormatLinearPCM24k
	default:
		return FormatMulawPassthrough
	}
}

const (
	// CarrierSampleRate is the telephony leg's fixed sample rate.
	CarrierSampleRate = 8000
	// LinearSampleRate is the LLM leg's sample rate when FormatLinearPCM24k is negotiated.
	LinearSampleRate = 24000
	// FrameMillis is the carrier's fixed frame duration.
	FrameMillis = 20
	// FrameBytes is the carrier's fixed μ-law frame size (160 samples, 1 byte each).
	FrameBytes = CarrierSampleRate * FrameMillis / 1000
)
