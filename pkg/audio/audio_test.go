package audio

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulawRoundTripIsLossy(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 1000, -1000, 32000, -32000} {
		enc := EncodeMulawSample(s)
		dec := DecodeMulawSample(enc)
		assert.InDelta(t, float64(s), float64(dec), 1200, "mulaw round trip for %d", s)
	}
}

func TestCodecPassthroughIsIdentity(t *testing.T) {
	codec := NewCodec(FormatMulawPassthrough)
	raw := make([]byte, FrameBytes)
	for i := range raw {
		raw[i] = byte(i)
	}
	frame := base64.StdEncoding.EncodeToString(raw)

	decoded, err := codec.DecodeCarrierToLLM(frame)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	reencoded, err := codec.EncodeLLMToCarrier(decoded)
	require.NoError(t, err)
	assert.Equal(t, frame, reencoded)
}

func TestCodecLinearModeRoundTripSNR(t *testing.T) {
	const (
		sampleRate = CarrierSampleRate
		freqHz     = 440.0
		numSamples = 800 // 100ms at 8kHz
	)

	// Build a pure tone, mu-law encode it as the carrier would send it.
	tone := make([]int16, numSamples)
	for i := range tone {
		tone[i] = int16(8000 * math.Sin(2*math.Pi*freqHz*float64(i)/sampleRate))
	}
	mulaw := EncodeMulaw(tone)

	codec := NewCodec(FormatLinearPCM24k)

	var reconstructed []int16
	for _, frame := range Chunk(mulaw, FrameMillis, sampleRate, 1) {
		llmBytes, err := codec.DecodeCarrierToLLM(base64.StdEncoding.EncodeToString(frame))
		require.NoError(t, err)

		carrierB64, err := codec.EncodeLLMToCarrier(llmBytes)
		require.NoError(t, err)

		back, err := base64.StdEncoding.DecodeString(carrierB64)
		require.NoError(t, err)
		reconstructed = append(reconstructed, DecodeMulaw(back)...)
	}

	require.NotEmpty(t, reconstructed)

	// Measure SNR over the stationary segment, skipping the filter's
	// startup transient at the head of the stream. Each resampler's
	// linear-phase FIR delays the signal by half its length (30 taps at
	// 24kHz, i.e. 10 samples at 8kHz), so the round trip lags the input by
	// 20 carrier samples; compare each input sample with its delayed copy.
	const delay = 20
	skip := 200
	if len(reconstructed) <= skip+100 {
		skip = 0
	}
	n := len(tone)
	if len(reconstructed) < n {
		n = len(reconstructed)
	}

	var signalPower, noisePower float64
	for i := skip; i+delay < n; i++ {
		signalPower += float64(tone[i]) * float64(tone[i])
		diff := float64(tone[i]) - float64(reconstructed[i+delay])
		noisePower += diff * diff
	}
	if noisePower == 0 {
		noisePower = 1e-9
	}
	snrDB := 10 * math.Log10(signalPower/noisePower)
	assert.Greater(t, snrDB, 10.0, "expected reasonable SNR after round trip through linear mode")
}

func TestChunkDropsPartialTrailingFrame(t *testing.T) {
	buffer := make([]byte, FrameBytes+10) // one full frame plus a short remainder
	chunks := Chunk(buffer, FrameMillis, CarrierSampleRate, 1)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], FrameBytes)
}

func TestResampleClipsToInt16Range(t *testing.T) {
	r := NewResampler(CarrierSampleRate, LinearSampleRate)
	input := make([]int16, 160)
	for i := range input {
		input[i] = math.MaxInt16
	}
	out := r.Process(input)
	for _, s := range out {
		assert.LessOrEqual(t, int(s), math.MaxInt16)
		assert.GreaterOrEqual(t, int(s), math.MinInt16)
	}
}
