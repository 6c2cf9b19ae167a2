package flac

import "github.com/losslessaudio/flac/internal/lpc"

// EncoderConfig controls the encoder's pipeline (§4.3). Zero-value
// fields are filled in by DefaultEncoderConfig; callers typically
// start from that and override individual fields.
type EncoderConfig struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	BlockSize     int

	// MaxLPCOrder is the highest LPC order tried during model search;
	// 0 disables LPC entirely (fixed predictors and verbatim only).
	MaxLPCOrder int

	// QLPCoeffPrecision is the bit width LPC coefficients are
	// quantized to.
	QLPCoeffPrecision uint8

	MinPartitionOrder int
	MaxPartitionOrder int

	// RiceParameterSearchDist is not read by the encoder: every
	// partition's Rice parameter search tries the parameters within 2
	// of the mean-estimated one, whatever this field holds.
	RiceParameterSearchDist int

	// EnableMidSide allows MID_SIDE/LEFT_SIDE/RIGHT_SIDE channel
	// assignments for 2-channel streams; ignored otherwise.
	EnableMidSide bool

	// LooseMidSide commits to a channel assignment for roughly 0.4s of
	// frames before re-evaluating, instead of re-deciding every frame
	// (§4.3 step 5).
	LooseMidSide bool

	// ExhaustiveModelSearch tries every fixed order and every LPC
	// order up to MaxLPCOrder instead of using the cheap heuristics of
	// §4.3.
	ExhaustiveModelSearch bool

	// StreamableSubset restricts emitted frames to the enumerated
	// sample rates, bit depths, and block sizes of §6.1 (§8 property 6).
	StreamableSubset bool

	// VerifyOnEncode feeds each emitted frame through an internal
	// decoder and fails the stream on any mismatch (§4.3 step 8).
	VerifyOnEncode bool

	// SeekTableInterval, in samples, spaces placeholder seek points
	// for NewTemplate; 0 disables seek table construction.
	SeekTableInterval uint64

	TotalSamplesHint uint64
}

// DefaultEncoderConfig returns typical settings for the given stream
// format: no LPC search beyond a modest order, 4-bit Rice partition
// search, mid/side stereo enabled with loose re-evaluation.
func DefaultEncoderConfig(channels, sampleRate, bitsPerSample int) EncoderConfig {
	return EncoderConfig{
		Channels:          channels,
		SampleRate:        sampleRate,
		BitsPerSample:     bitsPerSample,
		BlockSize:         4096,
		MaxLPCOrder:       8,
		QLPCoeffPrecision: 14,
		MinPartitionOrder: 0,
		MaxPartitionOrder: 6,
		EnableMidSide:     channels == 2,
		LooseMidSide:      true,
		StreamableSubset:  true,
		SeekTableInterval: 10 * uint64(sampleRate), // roughly every 10s
	}
}

// Validate checks the configuration errors of §4.3/§7: invalid
// channels/bps/rate/blocksize, and a block size too small to seed the
// configured LPC order.
func (c *EncoderConfig) Validate() error {
	switch {
	case c.Channels < 1 || c.Channels > 8:
		return configError("channel count %d out of range [1,8]", c.Channels)
	case c.BitsPerSample < 4 || c.BitsPerSample > 32:
		return configError("bits per sample %d out of range [4,32]", c.BitsPerSample)
	case c.SampleRate <= 0 || c.SampleRate > 655350:
		return configError("sample rate %d out of range (0,655350]", c.SampleRate)
	case c.BlockSize <= 0:
		return configError("block size %d must be positive", c.BlockSize)
	case c.MaxLPCOrder < 0 || c.MaxLPCOrder > lpc.MaxOrder:
		return configError("max LPC order %d out of range [0,%d]", c.MaxLPCOrder, lpc.MaxOrder)
	case c.MaxLPCOrder > 0 && c.BlockSize <= c.MaxLPCOrder:
		return configError("block size %d too small for max LPC order %d", c.BlockSize, c.MaxLPCOrder)
	case c.QLPCoeffPrecision > 0 && (c.QLPCoeffPrecision < 5 || c.QLPCoeffPrecision > 15):
		return configError("QLP coefficient precision %d out of range [5,15]", c.QLPCoeffPrecision)
	case c.MinPartitionOrder < 0 || c.MinPartitionOrder > c.MaxPartitionOrder:
		return configError("partition order range [%d,%d] invalid", c.MinPartitionOrder, c.MaxPartitionOrder)
	}
	if c.StreamableSubset {
		if !isSubsetBlockSize(c.BlockSize) {
			return configError("block size %d is not in the streamable subset", c.BlockSize)
		}
		switch c.SampleRate {
		case 8000, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000, 176400, 192000:
		default:
			return configError("sample rate %d is not in the streamable subset", c.SampleRate)
		}
		switch c.BitsPerSample {
		case 8, 12, 16, 20, 24:
		default:
			return configError("bits per sample %d is not in the streamable subset", c.BitsPerSample)
		}
	}
	return nil
}

func isSubsetBlockSize(n int) bool {
	switch n {
	case 192, 576, 1152, 2304, 4608, 256, 512, 1024, 2048, 4096, 8192, 16384:
		return true
	}
	return false
}
