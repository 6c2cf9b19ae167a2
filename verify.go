package flac

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/frame"
	"github.com/losslessaudio/flac/internal/bits"
)

// verifier is the encoder's "nested verification instance" (design
// note on preserving that composition): it decodes each frame's own
// just-written bytes and compares the result against the pre-encode
// samples, so a silent encoder bug can never produce a stream whose
// STREAMINFO MD5 lies about what was actually encoded (§4.3 step 8).
type verifier struct {
	sampleRate int
	bps        int
	channels   int
	blockSize  int
}

func newVerifier(cfg EncoderConfig) *verifier {
	return &verifier{sampleRate: cfg.SampleRate, bps: cfg.BitsPerSample, channels: cfg.Channels, blockSize: cfg.BlockSize}
}

// checkBytes decodes raw (the exact bytes just appended for one
// frame) and compares the recombined channel-major samples against
// orig, the pre-encode input for that block. frameNum is the frame's
// index; since every frame before it holds a full block, the absolute
// sample of a mismatch is frameNum*blockSize plus its subsample.
func (v *verifier) checkBytes(raw []byte, orig [][]int32, n int, frameNum uint64) error {
	r := bits.NewReader(bytes.NewReader(raw))
	fr, err := frame.Read(r, v.sampleRate, v.bps, v.channels)
	if err != nil {
		return errors.Wrap(err, "verification decode failed")
	}

	out := make([][]int32, v.channels)
	for c := range out {
		out[c] = make([]int32, n)
	}
	frame.Decorrelate(fr, out)

	for c := 0; c < v.channels; c++ {
		for i := 0; i < n; i++ {
			if out[c][i] != orig[c][i] {
				return &VerifyMismatchError{
					AbsoluteSample: frameNum*uint64(v.blockSize) + uint64(i),
					Frame:          frameNum, Channel: c, Subsample: i,
					Expected: orig[c][i], Got: out[c][i],
				}
			}
		}
	}
	return nil
}
