// Package frame implements the audio frame layer (§3, §4.2, §6.1): the
// frame header, the per-channel subframes it introduces, and the
// zero-pad/CRC-16 footer that closes a frame. Encoding and decoding
// are bit-exact with each other by construction, since both sides
// share the bit buffer's codings (internal/bits) and the same code
// tables defined here.
package frame

import (
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/bits"
)

// SyncCode is the 14-bit frame sync pattern (§6.1), followed by two
// reserved bits that must be zero.
const SyncCode = 0x3FFE

// ChannelAssignment selects how the frame's subframes map to output
// channels (§3, §4.4).
type ChannelAssignment uint8

const (
	// ChannelIndependent through an 8th independent channel code 0..7;
	// NChannels returns how many are actually present.
	ChannelIndependent ChannelAssignment = 0
	ChannelLeftSide    ChannelAssignment = 8
	ChannelRightSide   ChannelAssignment = 9
	ChannelMidSide     ChannelAssignment = 10
)

// NChannels returns the number of subframes present given this
// assignment code and the STREAMINFO channel count (only meaningful
// for independent assignments, where the code itself carries the
// count minus one).
func (c ChannelAssignment) NChannels() int {
	if c < 8 {
		return int(c) + 1
	}
	return 2
}

// IsStereoDecorrelated reports whether this assignment requires
// recombination on decode (§4.4).
func (c ChannelAssignment) IsStereoDecorrelated() bool {
	return c >= ChannelLeftSide && c <= ChannelMidSide
}

// blockSizeCode maps a blocksize to its 4-bit header code and whether
// an explicit tail value must follow the header (§4.2). The "hint"
// codes 0b0110/0b0111 indicate an 8-bit or 16-bit tail carrying
// blocksize-1.
func blockSizeCode(n int) (code uint8, tailBits uint8) {
	switch n {
	case 192:
		return 0b0001, 0
	case 576, 1152, 2304, 4608:
		for i, v := range [4]int{576, 1152, 2304, 4608} {
			if v == n {
				return uint8(0b0010 + i), 0
			}
		}
	case 256, 512, 1024, 2048, 4096, 8192, 16384, 32768:
		for i, v := range [8]int{256, 512, 1024, 2048, 4096, 8192, 16384, 32768} {
			if v == n {
				return uint8(0b1000 + i), 0
			}
		}
	}
	if n >= 1 && n <= 256 {
		return 0b0110, 8
	}
	return 0b0111, 16
}

func blockSizeFromCode(code uint8) (n int, tailBits uint8) {
	switch {
	case code == 0b0001:
		return 192, 0
	case code >= 0b0010 && code <= 0b0101:
		return 576 << (code - 0b0010), 0
	case code == 0b0110:
		return 0, 8
	case code == 0b0111:
		return 0, 16
	case code >= 0b1000:
		return 256 << (code - 0b1000), 0
	}
	return 0, 0
}

var enumeratedSampleRates = [12]int{
	0, 88200, 176400, 192000, 8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
}

// sampleRateCode maps a sample rate to its 4-bit header code (§4.2),
// 0 meaning "read from STREAMINFO", or a hint code with an explicit
// tail when the rate is not in the enumerated table.
func sampleRateCode(hz int, streamRate int) (code uint8, tailBits uint8, tailUnit int) {
	if hz == streamRate {
		return 0, 0, 0
	}
	for i, v := range enumeratedSampleRates {
		if i == 0 {
			continue
		}
		if v == hz {
			return uint8(i), 0, 0
		}
	}
	switch {
	case hz%1000 == 0 && hz/1000 < 256:
		return 0b1100, 8, 1000
	case hz < 1<<16:
		return 0b1101, 16, 1
	case hz%10 == 0 && hz/10 < 1<<16:
		return 0b1110, 16, 10
	}
	return 0b1111, 0, 0
}

func sampleRateFromCode(code uint8) (hz int, tailBits uint8, tailUnit int) {
	if code == 0 {
		return 0, 0, 0
	}
	if code >= 1 && code <= 11 {
		return enumeratedSampleRates[code], 0, 0
	}
	switch code {
	case 0b1100:
		return 0, 8, 1000
	case 0b1101:
		return 0, 16, 1
	case 0b1110:
		return 0, 16, 10
	}
	return -1, 0, 0
}

var enumeratedBitsPerSample = [8]int{0, 8, 12, 0, 16, 20, 24, 0}

func bpsCode(bps int) uint8 {
	for i, v := range enumeratedBitsPerSample {
		if v == bps {
			return uint8(i)
		}
	}
	return 0
}

func bpsFromCode(code uint8) (bps int, reserved bool) {
	v := enumeratedBitsPerSample[code]
	if v == 0 && code != 0 {
		return 0, true
	}
	return v, false
}

// Header is a fully parsed frame header (§3, §6.1).
type Header struct {
	BlockSize     int
	SampleRate    int
	ChannelAsgn   ChannelAssignment
	BitsPerSample int
	// Num is the frame number when the stream uses a fixed blocksize,
	// or the absolute sample number of the frame's first sample
	// otherwise; the caller interprets it using the stream's
	// blocksize policy.
	Num uint64
}

// ErrBadHeader is reported when a frame header fails CRC-8 validation
// or carries non-zero reserved bits (§4.4).
var ErrBadHeader = errors.New("frame: bad header")

// WriteHeader serializes h, computing and appending the trailing
// CRC-8 over the header bytes (§4.2). streamRate and streamBPS are the
// STREAMINFO values used to decide whether explicit codes can be
// omitted.
func WriteHeader(w *bits.Writer, h *Header, streamRate, streamBPS int) error {
	w.ResetCRC8()

	if err := w.WriteUint(SyncCode, 14); err != nil {
		return err
	}
	if err := w.WriteUint(0, 2); err != nil { // reserved
		return err
	}

	bsCode, bsTail := blockSizeCode(h.BlockSize)
	if err := w.WriteUint(uint64(bsCode), 4); err != nil {
		return err
	}

	srCode, srTail, srUnit := sampleRateCode(h.SampleRate, streamRate)
	if err := w.WriteUint(uint64(srCode), 4); err != nil {
		return err
	}

	if err := w.WriteUint(uint64(h.ChannelAsgn), 4); err != nil {
		return err
	}

	bCode := bpsCode(h.BitsPerSample)
	if h.BitsPerSample == streamBPS {
		bCode = 0
	}
	if err := w.WriteUint(uint64(bCode), 3); err != nil {
		return err
	}

	if err := w.WriteUint(0, 1); err != nil { // reserved
		return err
	}

	if err := w.WriteUTF8Uint(h.Num); err != nil {
		return err
	}

	if bsTail > 0 {
		if err := w.WriteUint(uint64(h.BlockSize-1), bsTail); err != nil {
			return err
		}
	}
	if srTail > 0 {
		if err := w.WriteUint(uint64(h.SampleRate/srUnit), srTail); err != nil {
			return err
		}
	}

	crc8 := w.CRC8()
	return w.WriteUint(uint64(crc8), 8)
}

// ReadHeader parses a frame header, validating its CRC-8. On CRC or
// reserved-bit failure it returns ErrBadHeader; the caller should
// resynchronize rather than treat this as fatal (§4.4).
//
// It reads and validates the sync code itself, resetting CRC-8 first.
// A decoder that has already located and consumed the sync word while
// scanning for it (§4.4 SearchForFrameSync) should use
// ReadHeaderAfterSync instead, after seeding CRC-8 with those bytes
// via Reader.FeedCRC.
func ReadHeader(r *bits.Reader, streamRate, streamBPS int) (*Header, error) {
	r.ResetCRC8()

	sync, err := r.ReadUint(14)
	if err != nil {
		return nil, err
	}
	reserved1, err := r.ReadUint(2)
	if err != nil {
		return nil, err
	}
	if sync != SyncCode {
		return nil, ErrBadHeader
	}

	return readHeaderBody(r, reserved1, streamRate, streamBPS)
}

// ReadHeaderAfterSync parses the remainder of a frame header given
// that the caller already consumed the 14-bit sync code and 2 reserved
// bits itself (resetting and feeding CRC-8 for those bytes), while
// scanning for the sync pattern (§4.4 SearchForFrameSync). reserved1
// is the value of those 2 bits as the caller actually read them; it is
// still validated here exactly like ReadHeader validates its own read
// of the same field.
func ReadHeaderAfterSync(r *bits.Reader, reserved1 uint64, streamRate, streamBPS int) (*Header, error) {
	return readHeaderBody(r, reserved1, streamRate, streamBPS)
}

func readHeaderBody(r *bits.Reader, reserved1 uint64, streamRate, streamBPS int) (*Header, error) {
	bsCodeU, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	srCodeU, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	chanU, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	bCodeU, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	bCode := uint8(bCodeU >> 1)
	reserved2 := bCodeU & 1

	num, err := r.ReadUTF8Uint()
	if err != nil {
		return nil, err
	}
	if num == bits.InvalidUTF8 {
		return nil, ErrBadHeader
	}

	blockSize, bsTail := blockSizeFromCode(uint8(bsCodeU))
	if bsTail > 0 {
		v, err := r.ReadUint(bsTail)
		if err != nil {
			return nil, err
		}
		blockSize = int(v) + 1
	}

	sampleRate, srTail, srUnit := sampleRateFromCode(uint8(srCodeU))
	if sampleRate < 0 {
		return nil, ErrBadHeader
	}
	if srTail > 0 {
		v, err := r.ReadUint(srTail)
		if err != nil {
			return nil, err
		}
		sampleRate = int(v) * srUnit
	}
	if sampleRate == 0 {
		sampleRate = streamRate
	}

	bps, badBps := bpsFromCode(bCode)
	if badBps {
		return nil, ErrBadHeader
	}
	if bps == 0 {
		bps = streamBPS
	}

	if reserved1 != 0 || reserved2 != 0 {
		return nil, ErrBadHeader
	}
	if chanU > 10 {
		return nil, ErrBadHeader
	}

	gotCRC := r.CRC8()
	wantCRC, err := r.ReadUint(8)
	if err != nil {
		return nil, err
	}
	if byte(wantCRC) != gotCRC {
		return nil, ErrBadHeader
	}

	return &Header{
		BlockSize:     blockSize,
		SampleRate:    sampleRate,
		ChannelAsgn:   ChannelAssignment(chanU),
		BitsPerSample: bps,
		Num:           num,
	}, nil
}
