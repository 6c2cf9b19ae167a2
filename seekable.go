package flac

import (
	"io"

	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/frame"
	"github.com/losslessaudio/flac/internal/bits"
	"github.com/losslessaudio/flac/internal/bufseekio"
)

// SeekableDecoder is a Decoder over an io.ReadSeeker, adding
// SeekAbsolute (§4.5). Seeking is frame-granular: it lands on the
// start of the frame containing the target sample, not the sample
// itself, the same limitation libFLAC's own seek() accepts; a caller
// wanting exact alignment discards the leading samples of the first
// decoded frame itself.
type SeekableDecoder struct {
	*Decoder
	rs *bufseekio.ReadSeeker
}

// NewSeekableDecoder wraps rs in a buffered ReadSeeker and parses its
// metadata exactly like NewDecoder.
func NewSeekableDecoder(rs io.ReadSeeker) (*SeekableDecoder, error) {
	buffered := bufseekio.NewReadSeeker(rs)
	d, err := NewDecoder(buffered)
	if err != nil {
		return nil, err
	}
	return &SeekableDecoder{Decoder: d, rs: buffered}, nil
}

// ErrNotSeekable is returned by SeekAbsolute when the stream's total
// sample count is unknown, since the search has no upper bound to
// narrow against.
var ErrNotSeekable = errors.New("flac: stream has no known total sample count, cannot seek")

// SeekAbsolute repositions the decoder so the next Decode call resumes
// at the frame containing target, returning that frame's first sample
// number. It disables MD5 verification for the remainder of the
// stream, since the audio preceding the seek point is never decoded.
func (sd *SeekableDecoder) SeekAbsolute(target uint64) (uint64, error) {
	si := sd.StreamInfo
	if si.TotalSamples == 0 {
		return 0, ErrNotSeekable
	}
	if target >= si.TotalSamples {
		target = si.TotalSamples - 1
	}

	endAbs, err := sd.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	lowerSample, lowerOffset := uint64(0), int64(0)
	upperSample, upperOffset := si.TotalSamples, endAbs-sd.firstFrameOff

	if sd.SeekTable != nil {
		if lower, upper, ok := sd.SeekTable.Bracket(target); ok {
			lowerSample, lowerOffset = lower.SampleNumber, int64(lower.StreamOffset)
			if upper.SampleNumber > lower.SampleNumber {
				upperSample, upperOffset = upper.SampleNumber, int64(upper.StreamOffset)
			}
		}
	}

	const maxProbes = 64
	stallStep := int64(4096)
	var prevGuess int64 = -1

	for i := 0; i < maxProbes; i++ {
		guess := lowerOffset
		if upperSample > lowerSample {
			frac := float64(target-lowerSample) / float64(upperSample-lowerSample)
			guess = lowerOffset + int64(frac*float64(upperOffset-lowerOffset))
		}
		if guess < lowerOffset {
			guess = lowerOffset
		}
		if guess > upperOffset {
			guess = upperOffset
		}

		hdr, frameStart, err := sd.probeFrameAt(sd.firstFrameOff + guess)
		if err != nil {
			// Ran off the end of the stream without finding another
			// sync; the target frame must lie strictly before here.
			upperOffset = guess - stallStep
			if upperOffset < lowerOffset {
				upperOffset = lowerOffset
			}
			stallStep *= 2
			continue
		}

		frameFirstSample := hdr.Num * uint64(si.MaxBlockSize)
		frameLastSample := frameFirstSample + uint64(hdr.BlockSize) - 1
		relOffset := frameStart - sd.firstFrameOff

		if target >= frameFirstSample && target <= frameLastSample {
			return sd.landOnFrame(frameStart, frameFirstSample)
		}

		stalled := relOffset == prevGuess
		prevGuess = relOffset

		if frameFirstSample > target {
			if stalled {
				upperOffset = relOffset - stallStep
				if upperOffset < lowerOffset {
					upperOffset = lowerOffset
				}
				stallStep *= 2
			} else {
				upperSample, upperOffset = frameFirstSample, relOffset
				stallStep = 4096
			}
		} else {
			if stalled {
				lowerOffset = relOffset + stallStep
				if lowerOffset > upperOffset {
					lowerOffset = upperOffset
				}
				stallStep *= 2
			} else {
				lowerSample, lowerOffset = frameFirstSample, relOffset
				stallStep = 4096
			}
		}
	}

	return 0, errors.New("flac: seek did not converge")
}

// probeFrameAt seeks rs to byteOffset, scans forward for the next
// frame sync, and parses only its header, without decoding subframes
// or validating CRC-16. It is the cheap half of the probe-and-refine
// loop in SeekAbsolute; the expensive full decode only happens once
// for the frame ultimately chosen.
func (sd *SeekableDecoder) probeFrameAt(byteOffset int64) (*frame.Header, int64, error) {
	if _, err := sd.rs.Seek(byteOffset, io.SeekStart); err != nil {
		return nil, 0, err
	}
	br := bits.NewReader(sd.rs)

	cur, err := br.ReadByte()
	if err != nil {
		return nil, 0, err
	}
	for {
		if cur != 0xFF {
			cur, err = br.ReadByte()
			if err != nil {
				return nil, 0, err
			}
			continue
		}
		next, err := br.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		if next&0xFC == 0xF8 {
			frameStart := sd.rs.Tell() - 2
			br.ResetCRC8()
			br.FeedCRC([]byte{cur, next})
			reserved1 := uint64(next & 0x03)
			hdr, err := frame.ReadHeaderAfterSync(br, reserved1, int(sd.StreamInfo.SampleRate), int(sd.StreamInfo.BitsPerSample))
			if err != nil {
				return nil, 0, err
			}
			return hdr, frameStart, nil
		}
		cur = next
	}
}

// landOnFrame repositions rs and the decoder's bit reader at
// frameStart and reports frameFirstSample as the achieved position.
func (sd *SeekableDecoder) landOnFrame(frameStart int64, frameFirstSample uint64) (uint64, error) {
	if _, err := sd.rs.Seek(frameStart, io.SeekStart); err != nil {
		return 0, err
	}
	counter := &countingReader{r: sd.rs}
	sd.br = bits.NewReader(counter)
	sd.counter = counter
	sd.samplesDone = frameFirstSample
	sd.checkMD5 = false
	return frameFirstSample, nil
}
