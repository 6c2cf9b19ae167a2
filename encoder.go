package flac

import (
	"bytes"
	"crypto/md5"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/frame"
	"github.com/losslessaudio/flac/internal/bits"
	"github.com/losslessaudio/flac/meta"
)

// Encoder turns planar PCM blocks into a FLAC stream (§2, §4.3). It
// owns its own staging buffer so the mandatory STREAMINFO block can be
// patched with final totals once encoding finishes, without requiring
// the destination io.Writer to support seeking.
type Encoder struct {
	cfg EncoderConfig

	out io.Writer
	buf bytes.Buffer
	bw  *bits.Writer

	streamInfoOffset int
	seekTableOffset  int
	seekTable        *meta.SeekTable

	md5            hash.Hash
	frameNum       uint64
	samplesSeen    uint64
	minFrameSize   uint32
	maxFrameSize   uint32
	firstFrameByte int

	pending    [][]int32 // channel-major, length cfg.Channels
	pendingLen int

	loose          sideLoopState
	verify         *verifier
	closed         bool
}

type sideLoopState struct {
	current          frame.ChannelAssignment
	framesSinceReassess int
	framesPerReassess   int
}

// NewEncoder validates cfg and prepares w to receive a FLAC stream:
// the sync code, a placeholder STREAMINFO, and (if configured) a
// placeholder SEEKTABLE are written immediately.
func NewEncoder(w io.Writer, cfg EncoderConfig) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Encoder{cfg: cfg, out: w, md5: md5.New()}
	e.bw = bits.NewWriter(&e.buf)
	e.pending = make([][]int32, cfg.Channels)
	for i := range e.pending {
		e.pending[i] = make([]int32, 0, cfg.BlockSize)
	}

	if cfg.LooseMidSide {
		e.loose.framesPerReassess = maxInt(1, (cfg.SampleRate*2/5)/cfg.BlockSize)
	} else {
		e.loose.framesPerReassess = 1
	}

	if _, err := e.buf.WriteString("fLaC"); err != nil {
		return nil, err
	}

	lastMetadata := cfg.SeekTableInterval == 0
	header := meta.BlockHeader{IsLast: lastMetadata, Type: meta.TypeStreamInfo, Length: 34}
	e.streamInfoOffset = e.buf.Len()
	placeholder := &meta.StreamInfo{
		MinBlockSize: uint16(cfg.BlockSize), MaxBlockSize: uint16(cfg.BlockSize),
		SampleRate: uint32(cfg.SampleRate), Channels: uint8(cfg.Channels), BitsPerSample: uint8(cfg.BitsPerSample),
	}
	if err := meta.WriteBlock(e.bw, &meta.Block{Header: header, StreamInfo: placeholder}); err != nil {
		return nil, err
	}

	if cfg.SeekTableInterval > 0 {
		e.seekTable = meta.NewTemplate(cfg.TotalSamplesHint, cfg.SeekTableInterval)
		stHeader := meta.BlockHeader{IsLast: true, Type: meta.TypeSeekTable, Length: uint32(len(e.seekTable.Points) * 18)}
		e.seekTableOffset = e.buf.Len()
		if err := meta.WriteBlock(e.bw, &meta.Block{Header: stHeader, SeekTable: e.seekTable}); err != nil {
			return nil, err
		}
	}

	e.firstFrameByte = e.buf.Len()

	if cfg.VerifyOnEncode {
		e.verify = newVerifier(cfg)
	}

	return e, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WriteSamples appends n frames of planar, channel-major PCM to the
// encoder's pending block, flushing full blocks as they fill (§4.3
// steps 1-3). samples[c] must have length >= n for every channel c.
func (e *Encoder) WriteSamples(samples [][]int32, n int) error {
	if e.closed {
		return errors.New("flac: WriteSamples called after Close")
	}
	off := 0
	for off < n {
		room := e.cfg.BlockSize - e.pendingLen
		take := n - off
		if take > room {
			take = room
		}
		for c := range e.pending {
			e.pending[c] = append(e.pending[c], samples[c][off:off+take]...)
		}
		e.pendingLen += take
		off += take
		e.accumulateMD5(samples, off-take, take)

		if e.pendingLen == e.cfg.BlockSize {
			if err := e.flushBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) accumulateMD5(samples [][]int32, off, n int) {
	bytesPerSample := (e.cfg.BitsPerSample + 7) / 8
	buf := make([]byte, bytesPerSample)
	for i := off; i < off+n; i++ {
		for c := 0; c < e.cfg.Channels; c++ {
			putLE(buf, samples[c][i], bytesPerSample)
			e.md5.Write(buf)
		}
	}
}

func putLE(buf []byte, v int32, n int) {
	u := uint32(v)
	for i := 0; i < n; i++ {
		buf[i] = byte(u >> (8 * i))
	}
}

// Close flushes any remaining partial block, patches STREAMINFO (and
// the seek table, if any) with final totals, and copies the staged
// stream to the destination writer.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.pendingLen > 0 {
		if err := e.flushBlock(); err != nil {
			return err
		}
	}

	if err := e.patchStreamInfo(); err != nil {
		return err
	}
	if e.seekTable != nil {
		if err := e.patchSeekTable(); err != nil {
			return err
		}
	}

	_, err := e.out.Write(e.buf.Bytes())
	return err
}

func (e *Encoder) patchStreamInfo() error {
	si := &meta.StreamInfo{
		MinBlockSize: uint16(e.cfg.BlockSize), MaxBlockSize: uint16(e.cfg.BlockSize),
		MinFrameSize: e.minFrameSize, MaxFrameSize: e.maxFrameSize,
		SampleRate: uint32(e.cfg.SampleRate), Channels: uint8(e.cfg.Channels), BitsPerSample: uint8(e.cfg.BitsPerSample),
		TotalSamples: e.samplesSeen,
	}
	e.md5.Sum(si.MD5[:0])

	var patch bytes.Buffer
	pw := bits.NewWriter(&patch)
	lastMetadata := e.cfg.SeekTableInterval == 0
	header := meta.BlockHeader{IsLast: lastMetadata, Type: meta.TypeStreamInfo, Length: 34}
	if err := meta.WriteBlock(pw, &meta.Block{Header: header, StreamInfo: si}); err != nil {
		return err
	}
	copy(e.buf.Bytes()[e.streamInfoOffset:], patch.Bytes())
	return nil
}

func (e *Encoder) patchSeekTable() error {
	var patch bytes.Buffer
	pw := bits.NewWriter(&patch)
	header := meta.BlockHeader{IsLast: true, Type: meta.TypeSeekTable, Length: uint32(len(e.seekTable.Points) * 18)}
	if err := meta.WriteBlock(pw, &meta.Block{Header: header, SeekTable: e.seekTable}); err != nil {
		return err
	}
	copy(e.buf.Bytes()[e.seekTableOffset:], patch.Bytes())
	return nil
}

// flushBlock runs the §4.3 per-block pipeline on the accumulated
// pending samples and resets the pending buffers.
func (e *Encoder) flushBlock() error {
	n := e.pendingLen
	bps := e.cfg.BitsPerSample

	var asgn frame.ChannelAssignment
	var subframes []*frame.Subframe

	if e.cfg.Channels == 2 && e.cfg.EnableMidSide {
		if e.loose.framesSinceReassess >= e.loose.framesPerReassess || e.frameNum == 0 {
			asgn, subframes = chooseChannelAssignment(e.pending[0][:n], e.pending[1][:n], bps, &e.cfg)
			e.loose.current = asgn
			e.loose.framesSinceReassess = 0
		} else {
			asgn = e.loose.current
			subframes = subframesForFixedAssignment(asgn, e.pending[0][:n], e.pending[1][:n], bps, &e.cfg)
		}
		e.loose.framesSinceReassess++
	} else {
		asgn = frame.ChannelIndependent
		subframes = make([]*frame.Subframe, e.cfg.Channels)
		for c := 0; c < e.cfg.Channels; c++ {
			cand := bestSubframe(e.pending[c][:n], bps, &e.cfg)
			subframes[c] = cand.subframe
		}
	}

	fr := &frame.Frame{
		Header: frame.Header{
			BlockSize: n, SampleRate: e.cfg.SampleRate, ChannelAsgn: asgn,
			BitsPerSample: bps, Num: e.frameNum,
		},
		Subframes: subframes,
	}

	before := e.buf.Len()
	if err := frame.Write(e.bw, fr, e.cfg.SampleRate, bps); err != nil {
		return err
	}
	frameSize := uint32(e.buf.Len() - before)
	if e.minFrameSize == 0 || frameSize < e.minFrameSize {
		e.minFrameSize = frameSize
	}
	if frameSize > e.maxFrameSize {
		e.maxFrameSize = frameSize
	}

	if e.seekTable != nil {
		offsetFromFirstFrame := uint64(before - e.firstFrameByte)
		e.seekTable.FillEarliestUnfilled(e.samplesSeen, uint16(n), offsetFromFirstFrame)
	}

	if e.verify != nil {
		raw := e.buf.Bytes()[before:]
		if err := e.verify.checkBytes(raw, e.pending, n, e.frameNum); err != nil {
			return err
		}
	}

	e.frameNum++
	e.samplesSeen += uint64(n)
	for c := range e.pending {
		e.pending[c] = e.pending[c][:0]
	}
	e.pendingLen = 0
	return nil
}

// subframesForFixedAssignment re-derives on-wire subframes for a
// channel assignment already committed to by the loose mid-side
// cadence (§4.3 step 5), without re-running the full cost comparison.
func subframesForFixedAssignment(asgn frame.ChannelAssignment, left, right []int32, bps int, cfg *EncoderConfig) []*frame.Subframe {
	switch asgn {
	case frame.ChannelIndependent:
		l := bestSubframe(left, bps, cfg)
		r := bestSubframe(right, bps, cfg)
		return []*frame.Subframe{l.subframe, r.subframe}
	case frame.ChannelRightSide:
		corr := frame.Correlate(asgn, [][]int32{left, right})
		side := bestSubframe(corr[0], bps+1, cfg)
		rightCand := bestSubframe(corr[1], bps, cfg)
		return []*frame.Subframe{side.subframe, rightCand.subframe}
	default: // ChannelLeftSide, ChannelMidSide
		corr := frame.Correlate(asgn, [][]int32{left, right})
		a := bestSubframe(corr[0], bps, cfg)
		b := bestSubframe(corr[1], bps+1, cfg)
		return []*frame.Subframe{a.subframe, b.subframe}
	}
}
