package meta

import (
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/bits"
)

// StreamInfo is the mandatory first metadata block (§3, §6.1): it
// carries the block-size and frame-size bounds, sample format, total
// sample count, and an MD5 of the raw decoded audio.
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32 // 24 bits on the wire.
	MaxFrameSize  uint32 // 24 bits on the wire.
	SampleRate    uint32 // 20 bits on the wire.
	Channels      uint8  // 1..8.
	BitsPerSample uint8  // 4..32.
	TotalSamples  uint64 // 36 bits on the wire; 0 means unknown.
	MD5           [16]byte
}

// ErrInvalidStreamInfo is returned by Validate when an invariant of §3
// is violated.
var ErrInvalidStreamInfo = errors.New("meta: invalid STREAMINFO")

// Validate checks the §3 invariants: sample_rate ∈ (0, 655350],
// channels ∈ [1, 8], bits_per_sample ∈ [4, 32], min_blocksize ≤
// max_blocksize ≤ 65535.
func (si *StreamInfo) Validate() error {
	switch {
	case si.SampleRate == 0 || si.SampleRate > 655350:
		return errors.Wrapf(ErrInvalidStreamInfo, "sample rate %d out of range", si.SampleRate)
	case si.Channels < 1 || si.Channels > 8:
		return errors.Wrapf(ErrInvalidStreamInfo, "channel count %d out of range", si.Channels)
	case si.BitsPerSample < 4 || si.BitsPerSample > 32:
		return errors.Wrapf(ErrInvalidStreamInfo, "bits per sample %d out of range", si.BitsPerSample)
	case si.MinBlockSize > si.MaxBlockSize:
		return errors.Wrapf(ErrInvalidStreamInfo, "min blocksize %d exceeds max %d", si.MinBlockSize, si.MaxBlockSize)
	}
	return nil
}

func writeStreamInfo(w *bits.Writer, si *StreamInfo) error {
	if err := w.WriteUint(uint64(si.MinBlockSize), 16); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.MaxBlockSize), 16); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.MinFrameSize), 24); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.MaxFrameSize), 24); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.SampleRate), 20); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.Channels-1), 3); err != nil {
		return err
	}
	if err := w.WriteUint(uint64(si.BitsPerSample-1), 5); err != nil {
		return err
	}
	if err := w.WriteUint(si.TotalSamples, 36); err != nil {
		return err
	}
	_, err := w.Write(si.MD5[:])
	return err
}

func readStreamInfo(r *bits.Reader) (*StreamInfo, error) {
	si := &StreamInfo{}
	minBS, err := r.ReadUint(16)
	if err != nil {
		return nil, err
	}
	si.MinBlockSize = uint16(minBS)
	maxBS, err := r.ReadUint(16)
	if err != nil {
		return nil, err
	}
	si.MaxBlockSize = uint16(maxBS)
	minFS, err := r.ReadUint(24)
	if err != nil {
		return nil, err
	}
	si.MinFrameSize = uint32(minFS)
	maxFS, err := r.ReadUint(24)
	if err != nil {
		return nil, err
	}
	si.MaxFrameSize = uint32(maxFS)
	rate, err := r.ReadUint(20)
	if err != nil {
		return nil, err
	}
	si.SampleRate = uint32(rate)
	ch, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	si.Channels = uint8(ch) + 1
	bps, err := r.ReadUint(5)
	if err != nil {
		return nil, err
	}
	si.BitsPerSample = uint8(bps) + 1
	total, err := r.ReadUint(36)
	if err != nil {
		return nil, err
	}
	si.TotalSamples = total
	for i := range si.MD5 {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		si.MD5[i] = b
	}
	return si, nil
}
