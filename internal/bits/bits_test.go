package bits

import (
	"bytes"
	"testing"
)

func TestZigZagRoundTrip(t *testing.T) {
	for v := int64(-1000); v <= 1000; v++ {
		got := DecodeZigZag(EncodeZigZag(v))
		if got != v {
			t.Fatalf("zigzag round-trip mismatch: v=%d got=%d", v, got)
		}
	}
}

func TestSignExtend(t *testing.T) {
	cases := []struct {
		x uint64
		n uint8
		want int64
	}{
		{0b011, 3, 3},
		{0b010, 3, 2},
		{0b111, 3, -1},
		{0b100, 3, -4},
		{0, 8, 0},
		{0xFF, 8, -1},
	}
	for _, c := range cases {
		got := SignExtend(c.x, c.n)
		if got != c.want {
			t.Errorf("SignExtend(%#b, %d) = %d, want %d", c.x, c.n, got, c.want)
		}
	}
}

func TestRiceRoundTrip(t *testing.T) {
	for k := uint8(0); k <= 30; k++ {
		for _, v := range []int64{0, 1, -1, 2, -2, 100, -100, 1 << 20, -(1 << 20)} {
			buf := &bytes.Buffer{}
			w := NewWriter(buf)
			if err := w.WriteRice(v, k); err != nil {
				t.Fatalf("WriteRice(%d,%d): %v", v, k, err)
			}
			if err := w.ZeroPadToByte(); err != nil {
				t.Fatalf("pad: %v", err)
			}
			r := NewReader(bytes.NewReader(buf.Bytes()))
			got, err := r.ReadRice(k)
			if err != nil {
				t.Fatalf("ReadRice(%d): %v", k, err)
			}
			if got != v {
				t.Errorf("rice round-trip k=%d v=%d got=%d", k, v, got)
			}
		}
	}
}

func TestUTF8RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 2047, 2048, 65535, 65536,
		1 << 20, 1 << 25, 1 << 30, 1<<36 - 1}
	for _, v := range values {
		buf := &bytes.Buffer{}
		w := NewWriter(buf)
		if err := w.WriteUTF8Uint(v); err != nil {
			t.Fatalf("WriteUTF8Uint(%d): %v", v, err)
		}
		r := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := r.ReadUTF8Uint()
		if err != nil {
			t.Fatalf("ReadUTF8Uint: %v", err)
		}
		if got != v {
			t.Errorf("utf8 round-trip v=%d got=%d", v, got)
		}
	}
}

func TestUTF8InvalidSentinel(t *testing.T) {
	// A lone continuation byte is not a valid lead byte.
	r := NewReader(bytes.NewReader([]byte{0x80, 0x80}))
	got, err := r.ReadUTF8Uint()
	if err != nil {
		t.Fatalf("ReadUTF8Uint: %v", err)
	}
	if got != InvalidUTF8 {
		t.Errorf("expected InvalidUTF8 sentinel, got %#x", got)
	}
}

func TestUnaryRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2, 7, 8, 9, 40} {
		buf := &bytes.Buffer{}
		w := NewWriter(buf)
		if err := w.WriteUnary(v); err != nil {
			t.Fatalf("WriteUnary(%d): %v", v, err)
		}
		if err := w.ZeroPadToByte(); err != nil {
			t.Fatalf("pad: %v", err)
		}
		r := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := r.ReadUnary()
		if err != nil {
			t.Fatalf("ReadUnary: %v", err)
		}
		if got != v {
			t.Errorf("unary round-trip v=%d got=%d", v, got)
		}
	}
}

func TestCRCAccumulation(t *testing.T) {
	data := []byte("fLaC-test-frame-body")
	buf := &bytes.Buffer{}
	w := NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	r := NewReader(bytes.NewReader(buf.Bytes()))
	for range data {
		if _, err := r.ReadByte(); err != nil {
			t.Fatal(err)
		}
	}
	if w.CRC8() != r.CRC8() {
		t.Errorf("crc8 mismatch: write=%#x read=%#x", w.CRC8(), r.CRC8())
	}
	if w.CRC16() != r.CRC16() {
		t.Errorf("crc16 mismatch: write=%#x read=%#x", w.CRC16(), r.CRC16())
	}
}
