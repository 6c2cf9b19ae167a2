// Package bits implements the MSB-first bit buffer shared by the FLAC
// encoder and decoder (§4.1): bitfield reads/writes, UTF-8-style
// varints, Rice codes, unary codes, and rolling CRC-8/CRC-16 taps over
// byte-aligned spans.
//
// The buffer itself is provided by github.com/icza/bitio; this package
// layers the FLAC-specific codings and the CRC bookkeeping on top of
// it, the way the teacher's enc_frame.go and utf8_encode.go do.
package bits

import (
	"io"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/crc"
)

// ErrTruncatedStream is returned when a read runs past the end of the
// underlying byte source before the requested bits are available
// (§4.1 failure mode).
var ErrTruncatedStream = errors.New("bits: truncated stream")

// Reader is a MSB-first bit reader with pluggable refill and rolling
// CRC-8/CRC-16 accumulation over the bytes it consumes.
//
// CRC accumulation happens at the byte level: every time the
// underlying bitio.Reader pulls a fresh byte from the wrapped
// io.Reader, that byte is fed to both checksums. This naturally
// satisfies the "full bytes only" rule of §4.1, since a byte is only
// ever handed to the hash once it has been read in its entirety from
// the source, regardless of how many of its bits have been consumed
// by ReadUint/ReadRice/etc. so far.
type Reader struct {
	br    *bitio.Reader
	crc8  *crc.CRC8
	crc16 *crc.CRC16
	tee   *teeReader
}

// teeReader duplicates every byte pulled from src into crc8 and crc16.
// It is a thin stand-in for io.TeeReader that lets the CRC taps be
// reset mid-stream (io.TeeReader's destination is fixed at
// construction).
type teeReader struct {
	src   io.Reader
	crc8  *crc.CRC8
	crc16 *crc.CRC16
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.crc8.Write(p[:n])
		t.crc16.Write(p[:n])
	}
	return n, err
}

// NewReader returns a Reader pulling bytes from r on demand.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{
		crc8:  crc.NewCRC8(),
		crc16: crc.NewCRC16(),
	}
	rd.tee = &teeReader{src: r, crc8: rd.crc8, crc16: rd.crc16}
	rd.br = bitio.NewReader(rd.tee)
	return rd
}

// ResetCRC8 zeroes the running CRC-8 accumulator.
func (r *Reader) ResetCRC8() { r.crc8.Reset() }

// ResetCRC16 zeroes the running CRC-16 accumulator.
func (r *Reader) ResetCRC16() { r.crc16.Reset() }

// FeedCRC manually folds p into both CRC accumulators. It exists for
// callers that scan ahead for a sync pattern byte-by-byte before
// constructing the rest of a header (§4.4 SearchForFrameSync): once
// the sync bytes are found and CRC is reset to start counting from
// them, those already-consumed bytes must still be accounted for.
func (r *Reader) FeedCRC(p []byte) {
	r.crc8.Write(p)
	r.crc16.Write(p)
}

// CRC8 returns the CRC-8 accumulated since the last ResetCRC8.
func (r *Reader) CRC8() byte { return r.crc8.Sum8() }

// CRC16 returns the CRC-16 accumulated since the last ResetCRC16.
func (r *Reader) CRC16() uint16 { return r.crc16.Sum16() }

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncatedStream
	}
	return err
}

// ReadUint reads an n-bit (n<=64) unsigned bitfield, MSB-first.
func (r *Reader) ReadUint(n uint8) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		return 0, wrapErr(err)
	}
	return v, nil
}

// ReadInt reads an n-bit two's complement bitfield, sign-extended to
// 64 bits.
func (r *Reader) ReadInt(n uint8) (int64, error) {
	u, err := r.ReadUint(n)
	if err != nil {
		return 0, err
	}
	return SignExtend(u, n), nil
}

// ReadBool reads a single bit as a boolean.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint(1)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadByte reads the next 8 bits as a byte. Implements io.ByteReader so
// that a Reader can itself be wrapped by io.TeeReader or similar.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.ReadUint(8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// ReadUnary decodes a unary-coded integer: the number of leading zero
// bits before the terminating one bit (§4.1).
func (r *Reader) ReadUnary() (uint64, error) {
	var x uint64
	for {
		bit, err := r.ReadUint(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			return x, nil
		}
		x++
	}
}

// ReadRice decodes a Rice-coded signed integer with parameter k.
func (r *Reader) ReadRice(k uint8) (int64, error) {
	high, err := r.ReadUnary()
	if err != nil {
		return 0, err
	}
	var low uint64
	if k > 0 {
		low, err = r.ReadUint(k)
		if err != nil {
			return 0, err
		}
	}
	u := high<<k | low
	return DecodeZigZag(u), nil
}

// ReadUTF8Uint decodes an extended "UTF-8" coded integer of up to 36
// bits (§4.1, §6.1). Malformed lead/continuation bytes yield
// InvalidUTF8 rather than an error, matching §8 property 4.
func (r *Reader) ReadUTF8Uint() (uint64, error) {
	b0, err := r.ReadUint(8)
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return b0, nil
	case b0&0xE0 == lead2:
		return r.readUTF8Cont(b0&0x1F, 1)
	case b0&0xF0 == lead3:
		return r.readUTF8Cont(b0&0x0F, 2)
	case b0&0xF8 == lead4:
		return r.readUTF8Cont(b0&0x07, 3)
	case b0&0xFC == lead5:
		return r.readUTF8Cont(b0&0x03, 4)
	case b0&0xFE == lead6:
		return r.readUTF8Cont(b0&0x01, 5)
	case b0 == lead7:
		return r.readUTF8Cont(0, 6)
	default:
		return InvalidUTF8, nil
	}
}

func (r *Reader) readUTF8Cont(lead uint64, n int) (uint64, error) {
	x := lead
	for i := 0; i < n; i++ {
		b, err := r.ReadUint(8)
		if err != nil {
			return 0, err
		}
		if b&0xC0 != contByte {
			return InvalidUTF8, nil
		}
		x = x<<6 | (b & contMask)
	}
	return x, nil
}

// Align discards any bits remaining in the current partially-consumed
// byte, returning the number of bits skipped. Callers that need to
// know whether they are already byte-aligned (e.g. before scanning for
// a frame sync code) can compare the returned count to zero.
func (r *Reader) Align() (uint8, error) {
	skipped, err := r.br.Align()
	return skipped, wrapErr(err)
}
