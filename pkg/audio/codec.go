package audio

import (
	"encoding/base64"
	"fmt"
)

// Codec adapts between the carrier's fixed μ-law 8kHz wire format and
// whichever format the LLM session negotiated. It owns the resampler
// state for linear mode, so one Codec belongs to exactly one Session.
type Codec struct {
	format  Format
	toLLM   *Resampler // 8kHz -> 24kHz, nil in pass-through mode
	fromLLM *Resampler // 24kHz -> 8kHz, nil in pass-through mode
}

// NewCodec builds a Codec for the given negotiated LLM audio format.
func NewCodec(format Format) *Codec {
	c := &Codec{format: format}
	if format == FormatLinearPCM24k {
		c.toLLM = NewResampler(CarrierSampleRate, LinearSampleRate)
		c.fromLLM = NewResampler(LinearSampleRate, CarrierSampleRate)
	}
	return c
}

// DecodeCarrierToLLM takes a base64-encoded carrier μ-law frame and
// returns the raw bytes to append to the LLM session's audio buffer:
// unchanged μ-law in pass-through mode, or linear PCM16LE at 24kHz in
// linear mode.
func (c *Codec) DecodeCarrierToLLM(b64Frame string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64Frame)
	if err != nil {
		return nil, fmt.Errorf("audio: decode carrier frame: %w", err)
	}
	if c.format == FormatMulawPassthrough {
		return raw, nil
	}
	samples := DecodeMulaw(raw)
	upsampled := c.toLLM.Process(samples)
	return int16ToLEBytes(upsampled), nil
}

// EncodeLLMToCarrier takes raw bytes received from the LLM session
// (μ-law or PCM16LE depending on the negotiated format) and returns a
// base64 string ready for the carrier's media frame payload field.
func (c *Codec) EncodeLLMToCarrier(llmBytes []byte) (string, error) {
	if c.format == FormatMulawPassthrough {
		return base64.StdEncoding.EncodeToString(llmBytes), nil
	}
	if len(llmBytes)%2 != 0 {
		return "", fmt.Errorf("audio: linear PCM frame has odd byte length %d", len(llmBytes))
	}
	samples := leBytesToInt16(llmBytes)
	downsampled := c.fromLLM.Process(samples)
	mulaw := EncodeMulaw(downsampled)
	return base64.StdEncoding.EncodeToString(mulaw), nil
}

// Format reports the negotiated LLM-side audio format.
func (c *Codec) Format() Format {
	return c.format
}

// Chunk splits buffer into fixed-size frames of msPerFrame milliseconds
// of audio at the given sample rate and width, discarding any short
// trailing remainder rather than padding it.
func Chunk(buffer []byte, msPerFrame, sampleRate, sampleWidth int) [][]byte {
	if msPerFrame <= 0 || sampleRate <= 0 || sampleWidth <= 0 {
		return nil
	}
	bytesPerChunk := (sampleRate * msPerFrame / 1000) * sampleWidth
	if bytesPerChunk <= 0 {
		return nil
	}
	var chunks [][]byte
	for i := 0; i+bytesPerChunk <= len(buffer); i += bytesPerChunk {
		chunks = append(chunks, buffer[i:i+bytesPerChunk])
	}
	return chunks
}
