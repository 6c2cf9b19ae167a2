package flac

// MetadataCallback is invoked once per metadata block, in declared
// order, before any audio callback (§6.2). blockType is the on-wire
// block type tag (see meta.BlockType).
type MetadataCallback func(blockType uint8, body interface{})

// ErrorCallback receives non-fatal bitstream errors (§7): ErrLostSync,
// frame.ErrBadHeader, frame.ErrFrameCRCMismatch. It may be called
// multiple times per stream and never interrupts decoding on its own;
// returning a non-nil error from it is treated as an abort request.
type ErrorCallback func(err error) error

// WriteCallback receives one decoded block of channel-major samples
// per frame (§6.2). The slices are only valid for the duration of the
// call; implementations that need to retain them must copy.
type WriteCallback func(header FrameInfo, channels [][]int32) error

// FrameInfo is the subset of a decoded frame header a write callback
// cares about.
type FrameInfo struct {
	BlockSize     int
	SampleRate    int
	Channels      int
	BitsPerSample int
	// FrameOrSampleNum is the frame number (fixed-blocksize streams) or
	// the absolute sample number of the frame's first sample
	// (variable-blocksize streams).
	FrameOrSampleNum uint64
}
