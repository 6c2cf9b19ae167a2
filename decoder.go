package flac

import (
	"crypto/md5"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/frame"
	"github.com/losslessaudio/flac/internal/bits"
	"github.com/losslessaudio/flac/meta"
)

// Decoder turns a FLAC stream back into planar PCM blocks (§2, §4.4),
// driving a small state machine: locate the stream sync, read
// metadata, then repeatedly locate a frame sync and decode one frame.
// Non-fatal bitstream errors (lost sync, a bad frame header, a frame
// CRC mismatch) are reported through the configured ErrorCallback and
// decoding resumes at the next frame; only a fatal condition
// (ErrUnparseableStream, an I/O error, or an aborting callback) stops
// it for good.
type Decoder struct {
	br      *bits.Reader
	counter *countingReader

	StreamInfo *meta.StreamInfo
	SeekTable  *meta.SeekTable

	// pendingReserved1 holds the 2 reserved bits read immediately after
	// the sync code by the most recent searchForFrameSync call, for
	// decodeOneFrame to validate via ReadHeaderAfterSync.
	pendingReserved1 uint64

	OnMetadata MetadataCallback
	OnError    ErrorCallback
	OnWrite    WriteCallback

	metadataBlocks   []*meta.Block
	metadataReplayed bool

	md5           hash.Hash
	checkMD5      bool
	samplesDone   uint64
	firstFrameOff int64
}

// NewDecoder reads and validates the stream sync code and metadata
// chain from r, up to and including the last metadata block, and
// populates StreamInfo/SeekTable from it. OnMetadata is not invoked
// here: the caller has had no chance yet to assign it. Set
// OnMetadata/OnError/OnWrite on the returned Decoder and then call
// Decode; the first thing Decode does is replay the parsed metadata
// blocks through OnMetadata, if set, before any audio callback.
func NewDecoder(r io.Reader) (*Decoder, error) {
	counter := &countingReader{r: r}
	d := &Decoder{
		br:       bits.NewReader(counter),
		counter:  counter,
		md5:      md5.New(),
		checkMD5: true,
	}
	if err := d.searchForStreamSync(); err != nil {
		return nil, err
	}
	d.firstFrameOff = counter.n
	return d, nil
}

// replayMetadata forwards each metadata block parsed during NewDecoder
// to OnMetadata, in declared order, the first time Decode runs.
func (d *Decoder) replayMetadata() {
	if d.metadataReplayed {
		return
	}
	d.metadataReplayed = true
	if d.OnMetadata == nil {
		return
	}
	for _, blk := range d.metadataBlocks {
		d.OnMetadata(uint8(blk.Header.Type), blockBody(blk))
	}
}

// byteOffset reports how many bytes have been pulled from the
// underlying reader so far.
func (d *Decoder) byteOffset() int64 { return d.counter.n }

// countingReader lets the decoder report byte offsets (SeekableDecoder
// uses them to locate the first frame) without requiring the wrapped
// io.Reader to support Seek itself.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// searchForStreamSync scans for the 4-byte "fLaC" marker (§4.4,
// SearchForMetadata), tolerating a leading ID3v2 tag the way many
// FLAC-in-container files carry one: a 10-byte ID3 header gives a
// synchsafe body size to skip before resuming the scan.
func (d *Decoder) searchForStreamSync() error {
	var window [4]byte
	filled := 0

	readOne := func() (byte, error) {
		return d.br.ReadByte()
	}

	for {
		b, err := readOne()
		if err != nil {
			return wrapMetadataIOErr(err)
		}

		if filled < 4 {
			window[filled] = b
			filled++
		} else {
			copy(window[:3], window[1:])
			window[3] = b
		}

		if filled == 4 {
			if window == [4]byte{'I', 'D', '3', 0} {
				// Next byte is the ID3 minor version; then flags; then
				// four synchsafe 7-bit size bytes.
				if _, err := readOne(); err != nil { // minor version
					return wrapMetadataIOErr(err)
				}
				if _, err := readOne(); err != nil { // flags
					return wrapMetadataIOErr(err)
				}
				var size uint32
				for i := 0; i < 4; i++ {
					sb, err := readOne()
					if err != nil {
						return wrapMetadataIOErr(err)
					}
					size = size<<7 | uint32(sb&0x7F)
				}
				for i := uint32(0); i < size; i++ {
					if _, err := readOne(); err != nil {
						return wrapMetadataIOErr(err)
					}
				}
				filled = 0
				continue
			}
			if window == [4]byte{'f', 'L', 'a', 'C'} {
				return d.readMetadata()
			}
		}
	}
}

// readMetadata runs the ReadMetadata loop of §4.4: parse blocks in
// order until the last-block flag is seen, recording STREAMINFO and
// SEEKTABLE and stashing every block for replayMetadata to forward to
// OnMetadata once Decode starts.
func (d *Decoder) readMetadata() error {
	first := true
	for {
		blk, err := meta.ReadBlock(d.br, first)
		if err != nil {
			return errors.Wrap(ErrUnparseableStream, err.Error())
		}
		first = false

		switch blk.Header.Type {
		case meta.TypeStreamInfo:
			if err := blk.StreamInfo.Validate(); err != nil {
				return errors.Wrap(ErrUnparseableStream, err.Error())
			}
			d.StreamInfo = blk.StreamInfo
		case meta.TypeSeekTable:
			d.SeekTable = blk.SeekTable
		}

		d.metadataBlocks = append(d.metadataBlocks, blk)

		if blk.Header.IsLast {
			break
		}
	}
	if d.StreamInfo == nil {
		return ErrUnparseableStream
	}
	return nil
}

func blockBody(blk *meta.Block) interface{} {
	switch {
	case blk.StreamInfo != nil:
		return blk.StreamInfo
	case blk.SeekTable != nil:
		return blk.SeekTable
	case blk.Padding != nil:
		return blk.Padding
	default:
		return blk.Raw
	}
}

// wrapMetadataIOErr turns a truncated-stream condition fatal: running
// out of bytes before metadata is fully read can never be a clean end
// of stream.
func wrapMetadataIOErr(err error) error {
	if err == bits.ErrTruncatedStream {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Decode drives the ReadFrame loop of §4.4 until the stream is
// exhausted (StreamInfo.TotalSamples reached, or EOF when the total is
// unknown) or a fatal error occurs. It returns nil at a clean end of
// stream.
func (d *Decoder) Decode() error {
	d.replayMetadata()
	for {
		if d.StreamInfo.TotalSamples > 0 && d.samplesDone >= d.StreamInfo.TotalSamples {
			return d.finish()
		}

		if err := d.searchForFrameSync(); err != nil {
			if err == io.EOF {
				return d.finish()
			}
			return err
		}

		if err := d.decodeOneFrame(); err != nil {
			if err == io.EOF {
				return d.finish()
			}
			return err
		}
	}
}

// searchForFrameSync scans byte-by-byte for the 14-bit sync pattern
// 0xFF followed by 0b111110xx (§4.4 SearchForFrameSync), seeding the
// CRC-8/CRC-16 accumulators with exactly the two sync bytes once
// found, since everything after them is read through
// ReadHeaderAfterSync. The low 2 bits of the second sync byte are the
// header's reserved field (§4.2); they are stashed in
// pendingReserved1 so decodeOneFrame can still validate them instead
// of assuming they were zero.
func (d *Decoder) searchForFrameSync() error {
	reportedLoss := false
	cur, err := d.br.ReadByte()
	if err != nil {
		return wrapFrameIOErr(err)
	}
	for {
		if cur != 0xFF {
			cur, err = d.br.ReadByte()
			if err != nil {
				return wrapFrameIOErr(err)
			}
			continue
		}

		next, err := d.br.ReadByte()
		if err != nil {
			return wrapFrameIOErr(err)
		}
		if next&0xFC == 0xF8 {
			d.br.ResetCRC8()
			d.br.ResetCRC16()
			d.br.FeedCRC([]byte{cur, next})
			d.pendingReserved1 = uint64(next & 0x03)
			return nil
		}
		if !reportedLoss {
			if err := d.reportError(ErrLostSync); err != nil {
				return err
			}
			reportedLoss = true
		}
		cur = next
	}
}

// wrapFrameIOErr turns a truncated-stream condition into a clean EOF:
// running out of bytes while scanning for the next frame sync is the
// normal way a stream with an unknown total sample count ends.
func wrapFrameIOErr(err error) error {
	if err == bits.ErrTruncatedStream {
		return io.EOF
	}
	return err
}

// decodeOneFrame parses one frame (the caller already consumed and
// CRC-seeded its sync word), recombines channels, accumulates MD5, and
// invokes OnWrite. Per §4.4, any anomaly in the frame itself (a bad
// header, a CRC-16 mismatch, or a structurally invalid subframe, all
// plausible fallout from the same bit of corruption that desynced the
// decoder in the first place) is reported through OnError and treated
// as a skip rather than a fatal error. Only running out of bytes
// mid-frame is different: that is a truncated stream, not a
// corruption, so it is handed back to Decode unchanged to end cleanly.
func (d *Decoder) decodeOneFrame() error {
	fr, err := frame.ReadAfterSync(d.br, d.pendingReserved1, int(d.StreamInfo.SampleRate), int(d.StreamInfo.BitsPerSample), int(d.StreamInfo.Channels))
	if err != nil {
		if err == bits.ErrTruncatedStream {
			return wrapFrameIOErr(err)
		}
		return d.reportError(err)
	}

	channels := int(d.StreamInfo.Channels)
	n := fr.Header.BlockSize
	out := make([][]int32, channels)
	for c := range out {
		out[c] = make([]int32, n)
	}
	frame.Decorrelate(fr, out)

	if d.checkMD5 {
		d.accumulateMD5(out, n)
	}
	d.samplesDone += uint64(n)

	if d.OnWrite != nil {
		info := FrameInfo{
			BlockSize:        n,
			SampleRate:       fr.Header.SampleRate,
			Channels:         channels,
			BitsPerSample:    fr.Header.BitsPerSample,
			FrameOrSampleNum: fr.Header.Num,
		}
		if err := d.OnWrite(info, out); err != nil {
			return errors.Wrap(ErrAbort, err.Error())
		}
	}
	return nil
}

func (d *Decoder) accumulateMD5(channels [][]int32, n int) {
	bytesPerSample := (int(d.StreamInfo.BitsPerSample) + 7) / 8
	buf := make([]byte, bytesPerSample)
	for i := 0; i < n; i++ {
		for c := range channels {
			putLE(buf, channels[c][i], bytesPerSample)
			d.md5.Write(buf)
		}
	}
}

// reportError forwards err to OnError, if set, and turns a non-nil
// callback return into an abort.
func (d *Decoder) reportError(err error) error {
	if d.OnError == nil {
		return nil
	}
	if cbErr := d.OnError(err); cbErr != nil {
		return errors.Wrap(ErrAbort, cbErr.Error())
	}
	return nil
}

// finish validates the accumulated MD5 against STREAMINFO, unless MD5
// checking has been disabled (by a SeekableDecoder seek).
func (d *Decoder) finish() error {
	if !d.checkMD5 {
		return nil
	}
	var zero [16]byte
	if d.StreamInfo.MD5 == zero {
		return nil
	}
	var sum [16]byte
	d.md5.Sum(sum[:0])
	if sum != d.StreamInfo.MD5 {
		return ErrMd5Mismatch
	}
	return nil
}
