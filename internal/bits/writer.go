package bits

import (
	"io"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/crc"
)

var errOutOfUTF8Range = errors.New("bits: value exceeds 36-bit UTF-8 varint range")

// Writer is a MSB-first bit writer with rolling CRC-8/CRC-16
// accumulation over the bytes it produces, mirroring Reader.
type Writer struct {
	bw    *bitio.Writer
	crc8  *crc.CRC8
	crc16 *crc.CRC16
}

// NewWriter returns a Writer that flushes completed bytes to w, also
// feeding them to its CRC-8/CRC-16 accumulators.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{
		crc8:  crc.NewCRC8(),
		crc16: crc.NewCRC16(),
	}
	sink := io.MultiWriter(w, wr.crc8, wr.crc16)
	wr.bw = bitio.NewWriter(sink)
	return wr
}

// ResetCRC8 zeroes the running CRC-8 accumulator. Must be called at a
// byte boundary.
func (w *Writer) ResetCRC8() { w.crc8.Reset() }

// ResetCRC16 zeroes the running CRC-16 accumulator. Must be called at
// a byte boundary.
func (w *Writer) ResetCRC16() { w.crc16.Reset() }

// CRC8 returns the CRC-8 accumulated since the last ResetCRC8.
func (w *Writer) CRC8() byte { return w.crc8.Sum8() }

// CRC16 returns the CRC-16 accumulated since the last ResetCRC16.
func (w *Writer) CRC16() uint16 { return w.crc16.Sum16() }

// WriteUint writes the low n bits (n<=64) of value, MSB-first.
func (w *Writer) WriteUint(value uint64, n uint8) error {
	if n == 0 {
		return nil
	}
	return w.bw.WriteBits(value, n)
}

// WriteInt writes the low n bits of the two's complement
// representation of value.
func (w *Writer) WriteInt(value int64, n uint8) error {
	return w.WriteUint(Trunc(value, n), n)
}

// WriteBool writes a single bit.
func (w *Writer) WriteBool(b bool) error {
	var v uint64
	if b {
		v = 1
	}
	return w.WriteUint(v, 1)
}

// WriteByte writes a full byte. Implements io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	return w.WriteUint(uint64(b), 8)
}

// Write writes p byte-by-byte. The writer must already be byte
// aligned; it is after every WriteByte/Write call and after
// ZeroPadToByte.
func (w *Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		if err := w.WriteByte(b); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// WriteZeroes writes n zero bits.
func (w *Writer) WriteZeroes(n int) error {
	for n >= 32 {
		if err := w.WriteUint(0, 32); err != nil {
			return err
		}
		n -= 32
	}
	if n > 0 {
		return w.WriteUint(0, uint8(n))
	}
	return nil
}

// WriteUnary encodes v as v zero bits followed by a one bit.
func (w *Writer) WriteUnary(v uint64) error {
	for v >= 32 {
		if err := w.WriteUint(0, 32); err != nil {
			return err
		}
		v -= 32
	}
	// v zero bits then a one: that's v+1 bits with value 1.
	return w.WriteUint(1, uint8(v)+1)
}

// WriteRice Rice-codes the signed integer v with parameter k.
func (w *Writer) WriteRice(v int64, k uint8) error {
	u := EncodeZigZag(v)
	if err := w.WriteUnary(u >> k); err != nil {
		return err
	}
	if k > 0 {
		return w.WriteUint(u&(1<<k-1), k)
	}
	return nil
}

// WriteUTF8Uint encodes v (up to 36 bits) using the extended "UTF-8"
// layout of §4.1/§6.1.
func (w *Writer) WriteUTF8Uint(v uint64) error {
	switch {
	case v <= max1:
		return w.WriteUint(v, 8)
	case v <= max2:
		return w.writeUTF8(v, lead2, 5, 1)
	case v <= max3:
		return w.writeUTF8(v, lead3, 4, 2)
	case v <= max4:
		return w.writeUTF8(v, lead4, 3, 3)
	case v <= max5:
		return w.writeUTF8(v, lead5, 2, 4)
	case v <= max6:
		return w.writeUTF8(v, lead6, 1, 5)
	case v <= max7:
		return w.writeUTF8(v, lead7, 0, 6)
	default:
		return errOutOfUTF8Range
	}
}

func (w *Writer) writeUTF8(v uint64, leadMask byte, leadBits uint, cont int) error {
	lead := uint64(leadMask) | (v>>(6*uint(cont)))&(1<<leadBits-1)
	if err := w.WriteUint(lead, 8); err != nil {
		return err
	}
	for i := cont - 1; i >= 0; i-- {
		b := uint64(contByte) | (v>>(6*uint(i)))&contMask
		if err := w.WriteUint(b, 8); err != nil {
			return err
		}
	}
	return nil
}

// ZeroPadToByte writes zero bits up to the next byte boundary.
func (w *Writer) ZeroPadToByte() error {
	skipped, err := w.bw.Align()
	_ = skipped
	return err
}

// Close flushes any pending partial byte (as zero bits) and closes the
// underlying writer if it implements io.Closer.
func (w *Writer) Close() error {
	return w.bw.Close()
}
