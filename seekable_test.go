package flac

import (
	"bytes"
	"testing"
)

func TestSeekableDecoderSeekAbsolute(t *testing.T) {
	const (
		channels   = 2
		sampleRate = 44100
		bps        = 16
		n          = 200000
	)
	samples := synthSamples(channels, n)

	cfg := DefaultEncoderConfig(channels, sampleRate, bps)
	cfg.SeekTableInterval = 20000

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

	sd, err := NewSeekableDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewSeekableDecoder: %v", err)
	}
	if sd.SeekTable == nil {
		t.Fatal("expected a seek table to have been written")
	}

	const target = 123456

	landed, err := sd.SeekAbsolute(target)
	if err != nil {
		t.Fatalf("SeekAbsolute: %v", err)
	}
	if landed > target {
		t.Fatalf("landed sample %d is after target %d", landed, target)
	}
	if target-landed >= uint64(sd.StreamInfo.MaxBlockSize) {
		t.Fatalf("landed sample %d too far before target %d (block size %d)", landed, target, sd.StreamInfo.MaxBlockSize)
	}

	var got [][]int32
	sd.OnWrite = func(info FrameInfo, channels [][]int32) error {
		if got == nil {
			got = make([][]int32, info.Channels)
		}
		for c := range got {
			got[c] = append(got[c], channels[c]...)
		}
		return nil
	}
	sd.OnError = func(err error) error {
		t.Fatalf("unexpected decode error after seek: %v", err)
		return nil
	}
	if err := sd.Decode(); err != nil {
		t.Fatalf("Decode after seek: %v", err)
	}

	for c := 0; c < channels; c++ {
		for i := 0; landed+uint64(i) < n && i < 100; i++ {
			want := samples[c][landed+uint64(i)]
			have := got[c][i]
			if want != have {
				t.Fatalf("channel %d sample %d after landing: want %d got %d", c, i, want, have)
			}
		}
	}
}
