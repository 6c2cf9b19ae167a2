package frame

import (
	"bytes"
	"math"
	"testing"

	"github.com/losslessaudio/flac/internal/bits"
	"github.com/losslessaudio/flac/internal/lpc"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []*Header{
		{BlockSize: 4096, SampleRate: 44100, ChannelAsgn: ChannelIndependent, BitsPerSample: 16, Num: 0},
		{BlockSize: 192, SampleRate: 48000, ChannelAsgn: ChannelMidSide, BitsPerSample: 24, Num: 7},
		{BlockSize: 1000, SampleRate: 22050, ChannelAsgn: ChannelLeftSide, BitsPerSample: 16, Num: 123456},
	}
	for _, h := range cases {
		buf := &bytes.Buffer{}
		w := bits.NewWriter(buf)
		if err := WriteHeader(w, h, 44100, 16); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if err := w.ZeroPadToByte(); err != nil {
			t.Fatal(err)
		}

		r := bits.NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadHeader(r, 44100, 16)
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if got.BlockSize != h.BlockSize || got.SampleRate != h.SampleRate ||
			got.ChannelAsgn != h.ChannelAsgn || got.Num != h.Num {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func constantSubframe(value int32, n int) *Subframe {
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = value
	}
	return &Subframe{Type: SubframeConstant, Samples: samples}
}

func fixedSubframe(samples []int32, order int) *Subframe {
	return &Subframe{Type: SubframeFixed, Order: order, Samples: samples}
}

func TestSubframeConstantRoundTrip(t *testing.T) {
	sf := constantSubframe(-100, 64)
	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteSubframe(w, sf, 16); err != nil {
		t.Fatalf("WriteSubframe: %v", err)
	}
	if err := w.ZeroPadToByte(); err != nil {
		t.Fatal(err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadSubframe(r, 16, 64)
	if err != nil {
		t.Fatalf("ReadSubframe: %v", err)
	}
	for i, v := range got.Samples {
		if v != -100 {
			t.Fatalf("sample %d = %d, want -100", i, v)
		}
	}
}

func TestSubframeFixedRoundTrip(t *testing.T) {
	samples := make([]int32, 256)
	for i := range samples {
		samples[i] = int32((i * 37) % 101 - 50)
	}
	sf := fixedSubframe(samples, 2)

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteSubframe(w, sf, 16); err != nil {
		t.Fatalf("WriteSubframe: %v", err)
	}
	if err := w.ZeroPadToByte(); err != nil {
		t.Fatal(err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadSubframe(r, 16, 256)
	if err != nil {
		t.Fatalf("ReadSubframe: %v", err)
	}
	for i := range samples {
		if got.Samples[i] != samples[i] {
			t.Fatalf("sample %d mismatch: got %d want %d", i, got.Samples[i], samples[i])
		}
	}
}

func TestSubframeWastedBitsRoundTrip(t *testing.T) {
	samples := make([]int32, 32)
	for i := range samples {
		samples[i] = int32(i%7) * 8 // all divisible by 8, so 3 wasted bits
	}
	sf := &Subframe{Type: SubframeVerbatim, WastedBits: WastedBitsOf(samples), Samples: samples}
	if sf.WastedBits != 3 {
		t.Fatalf("WastedBitsOf = %d, want 3", sf.WastedBits)
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteSubframe(w, sf, 16); err != nil {
		t.Fatalf("WriteSubframe: %v", err)
	}
	if err := w.ZeroPadToByte(); err != nil {
		t.Fatal(err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadSubframe(r, 16, 32)
	if err != nil {
		t.Fatalf("ReadSubframe: %v", err)
	}
	for i := range samples {
		if got.Samples[i] != samples[i] {
			t.Fatalf("sample %d mismatch: got %d want %d", i, got.Samples[i], samples[i])
		}
	}
}

// TestSubframeLPCRoundTrip exercises the quantized-LPC write/read path
// with a real predictor fit by the same analysis the encoder uses, not
// a zero-shift stand-in: the residual must be computed against the
// exact quantized coefficients, shift, and precision that
// readPredictedSubframe inverts, or the round trip silently diverges.
func TestSubframeLPCRoundTrip(t *testing.T) {
	const (
		n     = 4096
		order = 4
	)
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(8000 * math.Sin(2*math.Pi*float64(i)/37.0))
	}

	autoc := lpc.Autocorrelate(samples, order)
	coeffsByOrder, _ := lpc.LevinsonDurbin(autoc, order)
	q, err := lpc.Quantize(coeffsByOrder[order-1], 14)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}

	sf := &Subframe{
		Type:      SubframeLPC,
		Order:     order,
		QLPCoeffs: q.Coeffs,
		Shift:     q.Shift,
		Precision: q.Precision,
		Samples:   samples,
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := WriteSubframe(w, sf, 16); err != nil {
		t.Fatalf("WriteSubframe: %v", err)
	}
	if err := w.ZeroPadToByte(); err != nil {
		t.Fatal(err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ReadSubframe(r, 16, n)
	if err != nil {
		t.Fatalf("ReadSubframe: %v", err)
	}
	for i := range samples {
		if got.Samples[i] != samples[i] {
			t.Fatalf("sample %d mismatch: got %d want %d", i, got.Samples[i], samples[i])
		}
	}
}

func TestFrameRoundTripIndependent(t *testing.T) {
	const n = 128
	left := make([]int32, n)
	right := make([]int32, n)
	for i := 0; i < n; i++ {
		left[i] = int32(i % 50)
		right[i] = int32(-(i % 30))
	}

	fr := &Frame{
		Header: Header{BlockSize: n, SampleRate: 44100, ChannelAsgn: ChannelIndependent, BitsPerSample: 16, Num: 0},
		Subframes: []*Subframe{
			fixedSubframe(left, 1),
			fixedSubframe(right, 1),
		},
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := Write(w, fr, 44100, 16); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := Read(r, 44100, 16, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	out := [][]int32{make([]int32, n), make([]int32, n)}
	Decorrelate(got, out)
	for i := 0; i < n; i++ {
		if out[0][i] != left[i] || out[1][i] != right[i] {
			t.Fatalf("sample %d mismatch: got (%d,%d) want (%d,%d)", i, out[0][i], out[1][i], left[i], right[i])
		}
	}
}

func TestFrameRoundTripMidSide(t *testing.T) {
	const n = 256
	left := make([]int32, n)
	right := make([]int32, n)
	for i := 0; i < n; i++ {
		left[i] = int32(i % 200)
		right[i] = -int32(i % 200)
	}

	corr := Correlate(ChannelMidSide, [][]int32{left, right})

	fr := &Frame{
		Header: Header{BlockSize: n, SampleRate: 48000, ChannelAsgn: ChannelMidSide, BitsPerSample: 16, Num: 0},
		Subframes: []*Subframe{
			fixedSubframe(corr[0], 1),
			fixedSubframe(corr[1], 1),
		},
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := Write(w, fr, 48000, 16); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := bits.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := Read(r, 48000, 16, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	out := [][]int32{make([]int32, n), make([]int32, n)}
	Decorrelate(got, out)
	for i := 0; i < n; i++ {
		if out[0][i] != left[i] || out[1][i] != right[i] {
			t.Fatalf("sample %d mismatch: got (%d,%d) want (%d,%d)", i, out[0][i], out[1][i], left[i], right[i])
		}
	}
}

func TestFrameCRCMismatchDetected(t *testing.T) {
	const n = 64
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(i)
	}
	fr := &Frame{
		Header:    Header{BlockSize: n, SampleRate: 44100, ChannelAsgn: ChannelIndependent, BitsPerSample: 16, Num: 0},
		Subframes: []*Subframe{fixedSubframe(samples, 1)},
	}

	buf := &bytes.Buffer{}
	w := bits.NewWriter(buf)
	if err := Write(w, fr, 44100, 16); err != nil {
		t.Fatalf("Write: %v", err)
	}

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	r := bits.NewReader(bytes.NewReader(corrupted))
	_, err := Read(r, 44100, 16, 1)
	if err != ErrFrameCRCMismatch {
		t.Fatalf("expected ErrFrameCRCMismatch, got %v", err)
	}
}
