package flac

import (
	"bytes"
	"math"
	"testing"
)

func synthSamples(channels, n int) [][]int32 {
	out := make([][]int32, channels)
	for c := range out {
		out[c] = make([]int32, n)
		for i := range out[c] {
			// A cheap, deterministic waveform: a triangle wave offset
			// per channel so left/right decorrelate usefully.
			period := 200 + c*37
			phase := i % period
			if phase > period/2 {
				phase = period - phase
			}
			out[c][i] = int32(phase*500 - 20000)
		}
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const (
		channels   = 2
		sampleRate = 44100
		bps        = 16
		n          = 20000
	)
	samples := synthSamples(channels, n)

	cfg := DefaultEncoderConfig(channels, sampleRate, bps)
	cfg.VerifyOnEncode = true

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, cfg)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.WriteSamples(samples, n); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if dec.StreamInfo.Channels != channels {
		t.Fatalf("channels: want %d got %d", channels, dec.StreamInfo.Channels)
	}
	if dec.StreamInfo.SampleRate != sampleRate {
		t.Fatalf("sample rate: want %d got %d", sampleRate, dec.StreamInfo.SampleRate)
	}

	got := make([][]int32, channels)
	for c := range got {
		got[c] = make([]int32, 0, n)
	}
	var errCount int
	dec.OnError = func(err error) error {
		errCount++
		return nil
	}
	dec.OnWrite = func(info FrameInfo, channels [][]int32) error {
		for c := range got {
			got[c] = append(got[c], channels[c]...)
		}
		return nil
	}
	if err := dec.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if errCount != 0 {
		t.Fatalf("unexpected non-fatal errors: %d", errCount)
	}

	for c := 0; c < channels; c++ {
		if len(got[c]) != n {
			t.Fatalf("channel %d: want %d samples got %d", c, n, len(got[c]))
		}
		for i := range got[c] {
			if got[c][i] != samples[c][i] {
				t.Fatalf("channel %d sample %d: want %d got %d", c, i, samples[c][i], got[c][i])
			}
		}
	}
}

// sinusoidSamples synthesizes a quantized sine wave per channel (§8
// scenario C): smooth and curved rather than piecewise-linear, so the
// model search's LPC candidates win out over the fixed predictors that
// already cover synthSamples's triangle wave. This exercises the
// quantized-LPC residual/restore path of the round trip.
func sinusoidSamples(channels, n int, bps int) [][]int32 {
	peak := float64(int64(1)<<(bps-1) - 1)
	out := make([][]int32, channels)
	for c := range out {
		out[c] = make([]int32, n)
		freq := 440.0 + float64(c)*110.0
		for i := range out[c] {
			v := 0.6 * peak * math.Sin(2*math.Pi*freq*float64(i)/44100.0)
			out[c][i] = int32(math.Round(v))
		}
	}
	return out
}

func TestEncodeDecodeRoundTripLPC(t *testing.T) {
	const (
		channels   = 2
		sampleRate = 44100
		bps        = 16
		n          = 20000
	)
	samples := sinusoidSamples(channels, n, bps)

	cfg := DefaultEncoderConfig(channels, sampleRate, bps)
	cfg.VerifyOnEncode = true
	cfg.ExhaustiveModelSearch = true

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, cfg)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.WriteSamples(samples, n); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	got := make([][]int32, channels)
	for c := range got {
		got[c] = make([]int32, 0, n)
	}
	dec.OnError = func(err error) error {
		t.Fatalf("unexpected non-fatal decode error: %v", err)
		return nil
	}
	dec.OnWrite = func(info FrameInfo, channels [][]int32) error {
		for c := range got {
			got[c] = append(got[c], channels[c]...)
		}
		return nil
	}
	if err := dec.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for c := 0; c < channels; c++ {
		if len(got[c]) != n {
			t.Fatalf("channel %d: want %d samples got %d", c, n, len(got[c]))
		}
		for i := range got[c] {
			if got[c][i] != samples[c][i] {
				t.Fatalf("channel %d sample %d: want %d got %d", c, i, samples[c][i], got[c][i])
			}
		}
	}
}

func TestEncodeDecodeMetadataCallback(t *testing.T) {
	const (
		channels   = 1
		sampleRate = 8000
		bps        = 8
		n          = 1000
	)
	samples := synthSamples(channels, n)

	cfg := DefaultEncoderConfig(channels, sampleRate, bps)
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, cfg)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.WriteSamples(samples, n); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	var sawStreamInfo bool
	dec.OnMetadata = func(blockType uint8, body interface{}) {
		if blockType == 0 {
			sawStreamInfo = true
		}
	}
	if err := dec.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !sawStreamInfo {
		t.Fatal("OnMetadata never saw the STREAMINFO block")
	}
}
