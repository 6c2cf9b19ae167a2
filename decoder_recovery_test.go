package flac

import (
	"bytes"
	"testing"
)

// TestDecodeRecoversFromCorruptFrame flips a single byte in the middle
// of an encoded stream's frame data and checks that the decoder
// reports the damaged frame through OnError, skips it, and keeps
// decoding the frames that follow rather than aborting.
func TestDecodeRecoversFromCorruptFrame(t *testing.T) {
	const (
		channels   = 2
		sampleRate = 44100
		bps        = 16
		n          = 50000
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

	data := buf.Bytes()
	mid := len(data) / 2
	data[mid] ^= 0xFF

	dec, err := NewDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	// The corrupted frame's samples will never match STREAMINFO's MD5;
	// this test is about non-fatal recovery, not whole-stream checksum.
	dec.checkMD5 = false

	var reported []error
	dec.OnError = func(err error) error {
		reported = append(reported, err)
		return nil
	}
	var framesWritten int
	dec.OnWrite = func(info FrameInfo, channels [][]int32) error {
		framesWritten++
		return nil
	}

	if err := dec.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(reported) == 0 {
		t.Fatal("expected at least one non-fatal error from the corrupted frame")
	}
	if framesWritten == 0 {
		t.Fatal("expected at least one frame to still decode around the corruption")
	}
}
