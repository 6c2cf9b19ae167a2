package frame

import (
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/bits"
)

// Frame is one audio frame: a header plus one subframe per encoded
// channel (§3). Subframes are stored in on-wire order, which for
// stereo decorrelated assignments is (mid-or-left, side-or-right) not
// (L, R); use Decorrelate to recover channel-major samples.
type Frame struct {
	Header    Header
	Subframes []*Subframe
}

// ErrFrameCRCMismatch is reported when a frame's trailing CRC-16 does
// not match the bytes read (§4.4).
var ErrFrameCRCMismatch = errors.New("frame: CRC-16 mismatch")

// Write serializes fr: header, subframes, zero-pad, CRC-16 footer
// (§3, §4.2).
func Write(w *bits.Writer, fr *Frame, streamRate, streamBPS int) error {
	w.ResetCRC16()

	if err := WriteHeader(w, &fr.Header, streamRate, streamBPS); err != nil {
		return err
	}

	for i, sf := range fr.Subframes {
		bps := subframeBitsPerSample(fr.Header.BitsPerSample, fr.Header.ChannelAsgn, i)
		if err := WriteSubframe(w, sf, bps); err != nil {
			return err
		}
	}

	if err := w.ZeroPadToByte(); err != nil {
		return err
	}

	crc16 := w.CRC16()
	return w.WriteUint(uint64(crc16), 16)
}

// Read parses one frame, validating its trailing CRC-16. On mismatch
// it returns ErrFrameCRCMismatch; per §4.4 the caller should zero the
// output block, report the error, and resynchronize rather than treat
// this as fatal.
func Read(r *bits.Reader, streamRate, streamBPS, streamChannels int) (*Frame, error) {
	r.ResetCRC16()

	h, err := ReadHeader(r, streamRate, streamBPS)
	if err != nil {
		return nil, err
	}
	return readBody(r, h, streamChannels)
}

// ReadAfterSync parses one frame given that the caller already
// consumed and CRC-seeded the frame sync word itself (§4.4
// SearchForFrameSync), continuing with the rest of the header,
// subframes, and CRC-16 footer exactly like Read. reserved1 is the
// value the caller actually read for the 2 reserved bits immediately
// following the sync code, so ReadHeaderAfterSync can still reject a
// non-zero reserved field with ErrBadHeader instead of silently
// assuming it was zero.
func ReadAfterSync(r *bits.Reader, reserved1 uint64, streamRate, streamBPS, streamChannels int) (*Frame, error) {
	h, err := ReadHeaderAfterSync(r, reserved1, streamRate, streamBPS)
	if err != nil {
		return nil, err
	}
	return readBody(r, h, streamChannels)
}

func readBody(r *bits.Reader, h *Header, streamChannels int) (*Frame, error) {
	nch := h.ChannelAsgn.NChannels()
	if h.ChannelAsgn < 8 {
		nch = streamChannels
	}

	subframes := make([]*Subframe, nch)
	for i := range subframes {
		bps := subframeBitsPerSample(h.BitsPerSample, h.ChannelAsgn, i)
		sf, err := ReadSubframe(r, bps, h.BlockSize)
		if err != nil {
			return nil, err
		}
		subframes[i] = sf
	}

	if _, err := r.Align(); err != nil {
		return nil, err
	}

	gotCRC := r.CRC16()
	wantCRC, err := r.ReadUint(16)
	if err != nil {
		return nil, err
	}
	if uint16(wantCRC) != gotCRC {
		return nil, ErrFrameCRCMismatch
	}

	return &Frame{Header: *h, Subframes: subframes}, nil
}

// Decorrelate reconstructs channel-major (L, R, ...) samples from the
// frame's on-wire subframes (§4.4). For independent assignments it is
// a no-op copy; len(out) must equal len(fr.Subframes).
func Decorrelate(fr *Frame, out [][]int32) {
	n := fr.Header.BlockSize
	switch fr.Header.ChannelAsgn {
	case ChannelLeftSide:
		left := fr.Subframes[0].Samples
		side := fr.Subframes[1].Samples
		for i := 0; i < n; i++ {
			out[0][i] = left[i]
			out[1][i] = left[i] - side[i]
		}
	case ChannelRightSide:
		right := fr.Subframes[1].Samples
		side := fr.Subframes[0].Samples
		for i := 0; i < n; i++ {
			out[0][i] = right[i] + side[i]
			out[1][i] = right[i]
		}
	case ChannelMidSide:
		mid := fr.Subframes[0].Samples
		side := fr.Subframes[1].Samples
		for i := 0; i < n; i++ {
			m := (mid[i] << 1) | (side[i] & 1)
			out[0][i] = (m + side[i]) >> 1
			out[1][i] = (m - side[i]) >> 1
		}
	default:
		for ch, sf := range fr.Subframes {
			copy(out[ch], sf.Samples)
		}
	}
}

// Correlate computes the on-wire subframe sample sets for the given
// assignment from channel-major input (§4.3). in must have exactly 2
// rows for any stereo assignment.
func Correlate(asgn ChannelAssignment, in [][]int32) [][]int32 {
	if asgn < 8 {
		return in
	}
	n := len(in[0])
	left, right := in[0], in[1]
	a := make([]int32, n)
	b := make([]int32, n)
	switch asgn {
	case ChannelLeftSide:
		copy(a, left)
		for i := 0; i < n; i++ {
			b[i] = left[i] - right[i]
		}
	case ChannelRightSide:
		copy(b, right)
		for i := 0; i < n; i++ {
			a[i] = left[i] - right[i]
		}
	case ChannelMidSide:
		for i := 0; i < n; i++ {
			a[i] = (left[i] + right[i]) >> 1
			b[i] = left[i] - right[i]
		}
	}
	return [][]int32{a, b}
}
