package meta

import (
	"sort"

	"github.com/losslessaudio/flac/internal/bits"
)

// PlaceholderSampleNumber marks an unused seek point slot (§3, §6.1).
// Placeholder points must sort last within the table.
const PlaceholderSampleNumber = 0xFFFFFFFFFFFFFFFF

// SeekPoint is one entry of a SEEKTABLE block.
type SeekPoint struct {
	SampleNumber uint64
	StreamOffset uint64 // byte offset from the first frame header, not the start of the stream.
	FrameSamples uint16
}

// IsPlaceholder reports whether p is an unused template slot.
func (p SeekPoint) IsPlaceholder() bool {
	return p.SampleNumber == PlaceholderSampleNumber
}

// SeekTable is an ordered sequence of seek points (§3).
type SeekTable struct {
	Points []SeekPoint
}

// Sort orders points by sample number, placeholders last, matching
// the §3 ordering invariant.
func (st *SeekTable) Sort() {
	sort.SliceStable(st.Points, func(i, j int) bool {
		a, b := st.Points[i], st.Points[j]
		if a.IsPlaceholder() {
			return false
		}
		if b.IsPlaceholder() {
			return true
		}
		return a.SampleNumber < b.SampleNumber
	})
}

// NewTemplate builds a placeholder seek table with one point roughly
// every interval samples up to totalSamples, for the encoder to fill
// in during frame emission (§4.3 step 7).
func NewTemplate(totalSamples uint64, interval uint64) *SeekTable {
	if interval == 0 {
		return &SeekTable{}
	}
	st := &SeekTable{}
	for s := uint64(0); s < totalSamples; s += interval {
		st.Points = append(st.Points, SeekPoint{SampleNumber: s})
	}
	return st
}

// FillEarliestUnfilled records offset/frameSamples into every
// still-unfilled template point whose sample number falls within
// [frameFirstSample, frameFirstSample+frameSamples), per §4.3 step 7.
// It reports whether at least one point was filled.
func (st *SeekTable) FillEarliestUnfilled(frameFirstSample uint64, frameSamples uint16, offset uint64) bool {
	filled := false
	for i := range st.Points {
		p := &st.Points[i]
		if p.IsPlaceholder() {
			continue
		}
		if p.StreamOffset != 0 || p.FrameSamples != 0 {
			continue // already filled
		}
		if p.SampleNumber >= frameFirstSample && p.SampleNumber < frameFirstSample+uint64(frameSamples) {
			p.StreamOffset = offset
			p.FrameSamples = frameSamples
			filled = true
		}
	}
	return filled
}

// Lookup returns the seek point with the greatest sample number not
// exceeding target, by binary search over the sorted, non-
// placeholder prefix (§4.5 step 3). ok is false if the table has no
// usable points.
func (st *SeekTable) Lookup(target uint64) (point SeekPoint, ok bool) {
	usable := st.usablePoints()
	if len(usable) == 0 {
		return SeekPoint{}, false
	}
	lo, hi := 0, len(usable)-1
	best := usable[0]
	for lo <= hi {
		mid := (lo + hi) / 2
		if usable[mid].SampleNumber <= target {
			best = usable[mid]
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, true
}

// Bracket returns the two usable points bracketing target: the
// closest point at or before it and the closest point after it,
// suitable for the linear interpolation of §4.5 step 4. ok is false if
// the table has no usable points at all.
func (st *SeekTable) Bracket(target uint64) (lower, upper SeekPoint, ok bool) {
	usable := st.usablePoints()
	if len(usable) == 0 {
		return SeekPoint{}, SeekPoint{}, false
	}
	idx := sort.Search(len(usable), func(i int) bool {
		return usable[i].SampleNumber > target
	})
	if idx == 0 {
		return usable[0], usable[0], true
	}
	lower = usable[idx-1]
	if idx < len(usable) {
		upper = usable[idx]
	} else {
		upper = lower
	}
	return lower, upper, true
}

func (st *SeekTable) usablePoints() []SeekPoint {
	out := make([]SeekPoint, 0, len(st.Points))
	for _, p := range st.Points {
		if !p.IsPlaceholder() {
			out = append(out, p)
		}
	}
	return out
}

func writeSeekTable(w *bits.Writer, st *SeekTable) error {
	for _, p := range st.Points {
		if err := w.WriteUint(p.SampleNumber, 64); err != nil {
			return err
		}
		if err := w.WriteUint(p.StreamOffset, 64); err != nil {
			return err
		}
		if err := w.WriteUint(uint64(p.FrameSamples), 16); err != nil {
			return err
		}
	}
	return nil
}

func readSeekTable(r *bits.Reader, length uint32) (*SeekTable, error) {
	const pointSize = 8 + 8 + 2
	n := int(length) / pointSize
	st := &SeekTable{Points: make([]SeekPoint, n)}
	for i := 0; i < n; i++ {
		sample, err := r.ReadUint(64)
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadUint(64)
		if err != nil {
			return nil, err
		}
		frameSamples, err := r.ReadUint(16)
		if err != nil {
			return nil, err
		}
		st.Points[i] = SeekPoint{SampleNumber: sample, StreamOffset: offset, FrameSamples: uint16(frameSamples)}
	}
	return st, nil
}
