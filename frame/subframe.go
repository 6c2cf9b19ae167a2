package frame

import (
	"github.com/pkg/errors"

	"github.com/losslessaudio/flac/internal/bits"
	"github.com/losslessaudio/flac/internal/lpc"
	"github.com/losslessaudio/flac/internal/rice"
)

// SubframeType tags which of the four subframe encodings (§3) a
// Subframe carries.
type SubframeType uint8

const (
	SubframeConstant SubframeType = iota
	SubframeVerbatim
	SubframeFixed
	SubframeLPC
)

// Subframe is the decoded or to-be-encoded representation of one
// channel's block (§3). Only the fields relevant to Type are
// meaningful.
type Subframe struct {
	Type SubframeType

	// WastedBits is the count of trailing zero bits shifted out of
	// every sample before prediction (§4.3); 0 means none.
	WastedBits uint

	// Order is the fixed-predictor order (0..4) or LPC order (1..32).
	Order int

	// QLPCoeffs and Shift describe the quantized LPC predictor; only
	// meaningful when Type == SubframeLPC.
	QLPCoeffs []int32
	Shift     int32
	Precision uint8

	// Samples holds the fully reconstructed (or pre-wasted-bits-shift,
	// pre-encode) samples for this channel's block, length BlockSize.
	Samples []int32
}

// subframeBitsPerSample returns the effective sample width a subframe
// must encode/decode at, accounting for the extra bit a side channel
// carries (§4.4).
func subframeBitsPerSample(streamBPS int, asgn ChannelAssignment, channelIndex int) int {
	if asgn == ChannelLeftSide && channelIndex == 1 {
		return streamBPS + 1
	}
	if asgn == ChannelRightSide && channelIndex == 0 {
		return streamBPS + 1
	}
	if asgn == ChannelMidSide && channelIndex == 1 {
		return streamBPS + 1
	}
	return streamBPS
}

// WastedBitsOf returns the greatest k such that every sample in
// samples is divisible by 2^k (§4.3). An all-zero block reports 0:
// the subframe will be encoded CONSTANT instead, where wasted-bits
// shifting is moot.
func WastedBitsOf(samples []int32) uint {
	var orAll int32
	for _, s := range samples {
		orAll |= s
	}
	if orAll == 0 {
		return 0
	}
	var k uint
	for orAll&1 == 0 {
		orAll >>= 1
		k++
	}
	return k
}

// IsConstant reports whether every sample in the block is identical.
func IsConstant(samples []int32) bool {
	for _, s := range samples[1:] {
		if s != samples[0] {
			return false
		}
	}
	return true
}

// WriteSubframe serializes sf at the given effective bits-per-sample,
// including the leading zero-bit pad, type code, and wasted-bits
// field (§3).
func WriteSubframe(w *bits.Writer, sf *Subframe, bps int) error {
	if err := w.WriteUint(0, 1); err != nil {
		return err
	}

	typeCode, err := subframeTypeCode(sf)
	if err != nil {
		return err
	}
	if err := w.WriteUint(uint64(typeCode), 6); err != nil {
		return err
	}

	if sf.WastedBits > 0 {
		if err := w.WriteBool(true); err != nil {
			return err
		}
		if err := w.WriteUnary(uint64(sf.WastedBits - 1)); err != nil {
			return err
		}
	} else {
		if err := w.WriteBool(false); err != nil {
			return err
		}
	}

	effBPS := bps - int(sf.WastedBits)
	samples := sf.Samples
	if sf.WastedBits > 0 {
		shifted := make([]int32, len(samples))
		for i, s := range samples {
			shifted[i] = s >> sf.WastedBits
		}
		samples = shifted
	}

	switch sf.Type {
	case SubframeConstant:
		return w.WriteInt(int64(samples[0]), uint8(effBPS))
	case SubframeVerbatim:
		for _, s := range samples {
			if err := w.WriteInt(int64(s), uint8(effBPS)); err != nil {
				return err
			}
		}
		return nil
	case SubframeFixed:
		return writePredictedSubframe(w, samples, sf.Order, effBPS, nil, 0, 0)
	case SubframeLPC:
		if err := w.WriteUint(uint64(sf.Precision-1), 4); err != nil {
			return err
		}
		if err := w.WriteInt(int64(sf.Shift), 5); err != nil {
			return err
		}
		for _, c := range sf.QLPCoeffs {
			if err := w.WriteInt(int64(c), sf.Precision); err != nil {
				return err
			}
		}
		return writePredictedSubframe(w, samples, sf.Order, effBPS, sf.QLPCoeffs, sf.Shift, sf.Precision)
	}
	return errors.Errorf("frame: unknown subframe type %d", sf.Type)
}

func subframeTypeCode(sf *Subframe) (uint8, error) {
	switch sf.Type {
	case SubframeConstant:
		return 0b000000, nil
	case SubframeVerbatim:
		return 0b000001, nil
	case SubframeFixed:
		if sf.Order < 0 || sf.Order > 4 {
			return 0, errors.Errorf("frame: invalid fixed predictor order %d", sf.Order)
		}
		return 0b001000 | uint8(sf.Order), nil
	case SubframeLPC:
		if sf.Order < 1 || sf.Order > 32 {
			return 0, errors.Errorf("frame: invalid LPC order %d", sf.Order)
		}
		return 0b100000 | uint8(sf.Order-1), nil
	}
	return 0, errors.Errorf("frame: unknown subframe type %d", sf.Type)
}

// writePredictedSubframe writes the order warmup samples verbatim,
// computes the residual (fixed or LPC depending on qlpCoeffs), and
// Rice-codes it via a partition search. shift and precision are the
// quantized predictor's fields (§4.3) and are only meaningful when
// qlpCoeffs is non-nil: the residual must be computed against the
// exact same quantized predictor (coefficients, shift, and precision)
// that readPredictedSubframe will invert on decode.
func writePredictedSubframe(w *bits.Writer, samples []int32, order, bps int, qlpCoeffs []int32, shift int32, precision uint8) error {
	for i := 0; i < order; i++ {
		if err := w.WriteInt(int64(samples[i]), uint8(bps)); err != nil {
			return err
		}
	}

	var residual []int32
	if qlpCoeffs == nil {
		residual = lpcFixedResidual(samples, order)
	} else {
		residual = lpcResidual(samples, qlpCoeffs, shift, precision)
	}

	return writeResidual(w, residual, len(samples), order)
}

func writeResidual(w *bits.Writer, residual []int32, blockSize, order int) error {
	plan := rice.Search(residual, blockSize, order, maxPartitionOrderFor(blockSize))

	if err := w.WriteUint(0, 2); err != nil { // method: 00 = 4-bit-parameter partitioned Rice
		return err
	}
	if err := w.WriteUint(uint64(plan.Order), 4); err != nil {
		return err
	}

	for _, part := range plan.Partitions {
		if err := w.WriteUint(uint64(part.Parameter), 4); err != nil {
			return err
		}
		if part.Parameter == rice.EscapeParameter {
			if err := w.WriteUint(uint64(part.RawBits), 5); err != nil {
				return err
			}
			for _, v := range part.Residual {
				if err := w.WriteInt(int64(v), part.RawBits); err != nil {
					return err
				}
			}
			continue
		}
		for _, v := range part.Residual {
			if err := w.WriteRice(int64(v), part.Parameter); err != nil {
				return err
			}
		}
	}
	return nil
}

// maxPartitionOrderFor bounds the partition-order search (at most 8)
// so every partition holds a whole number of samples. It does not
// consider the predictor order; rice.Search skips orders whose
// partitions are too short for it.
func maxPartitionOrderFor(blockSize int) uint8 {
	order := uint8(0)
	for order < 8 && blockSize%(1<<(order+1)) == 0 {
		order++
	}
	return order
}

func lpcFixedResidual(samples []int32, order int) []int32 {
	return lpc.FixedResidual(samples, order)
}

func lpcResidual(samples []int32, qlpCoeffs []int32, shift int32, precision uint8) []int32 {
	q := &lpc.QuantizedLPC{Coeffs: qlpCoeffs, Shift: shift, Precision: precision}
	return lpc.Residual(samples, q)
}

// ReadSubframe parses one subframe at the given effective bits per
// sample and block size.
func ReadSubframe(r *bits.Reader, bps, blockSize int) (*Subframe, error) {
	zero, err := r.ReadUint(1)
	if err != nil {
		return nil, err
	}
	if zero != 0 {
		return nil, ErrBadHeader
	}

	typeCode, err := r.ReadUint(6)
	if err != nil {
		return nil, err
	}

	hasWasted, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	var wasted uint
	if hasWasted {
		u, err := r.ReadUnary()
		if err != nil {
			return nil, err
		}
		wasted = uint(u) + 1
	}
	effBPS := bps - int(wasted)

	sf := &Subframe{WastedBits: wasted, Samples: make([]int32, blockSize)}

	switch {
	case typeCode == 0b000000:
		sf.Type = SubframeConstant
		v, err := r.ReadInt(uint8(effBPS))
		if err != nil {
			return nil, err
		}
		for i := range sf.Samples {
			sf.Samples[i] = int32(v)
		}

	case typeCode == 0b000001:
		sf.Type = SubframeVerbatim
		for i := range sf.Samples {
			v, err := r.ReadInt(uint8(effBPS))
			if err != nil {
				return nil, err
			}
			sf.Samples[i] = int32(v)
		}

	case typeCode&0b111000 == 0b001000 && typeCode&0b000111 <= 4:
		sf.Type = SubframeFixed
		sf.Order = int(typeCode & 0b000111)
		if err := readPredictedSubframe(r, sf, effBPS, blockSize, nil); err != nil {
			return nil, err
		}

	case typeCode&0b100000 != 0:
		sf.Type = SubframeLPC
		sf.Order = int(typeCode&0b011111) + 1
		precU, err := r.ReadUint(4)
		if err != nil {
			return nil, err
		}
		sf.Precision = uint8(precU) + 1
		shift, err := r.ReadInt(5)
		if err != nil {
			return nil, err
		}
		sf.Shift = int32(shift)
		sf.QLPCoeffs = make([]int32, sf.Order)
		for i := range sf.QLPCoeffs {
			c, err := r.ReadInt(sf.Precision)
			if err != nil {
				return nil, err
			}
			sf.QLPCoeffs[i] = int32(c)
		}
		if err := readPredictedSubframe(r, sf, effBPS, blockSize, sf.QLPCoeffs); err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("frame: reserved subframe type code %#b", typeCode)
	}

	if wasted > 0 {
		for i := range sf.Samples {
			sf.Samples[i] <<= wasted
		}
	}

	return sf, nil
}

func readPredictedSubframe(r *bits.Reader, sf *Subframe, bps, blockSize int, qlpCoeffs []int32) error {
	order := sf.Order
	for i := 0; i < order; i++ {
		v, err := r.ReadInt(uint8(bps))
		if err != nil {
			return err
		}
		sf.Samples[i] = int32(v)
	}

	residual, err := readResidual(r, blockSize, order)
	if err != nil {
		return err
	}

	if qlpCoeffs == nil {
		lpc.FixedRestore(sf.Samples, order, residual)
	} else {
		q := &lpc.QuantizedLPC{Coeffs: qlpCoeffs, Shift: sf.Shift, Precision: sf.Precision}
		if bps <= 16 && sf.Precision <= 16 {
			lpc.Restore32(sf.Samples, q, residual)
		} else {
			lpc.Restore(sf.Samples, q, residual)
		}
	}
	return nil
}

func readResidual(r *bits.Reader, blockSize, order int) ([]int32, error) {
	method, err := r.ReadUint(2)
	if err != nil {
		return nil, err
	}
	if method > 1 {
		return nil, errors.Errorf("frame: unsupported residual coding method %d", method)
	}
	paramBits := uint8(4)
	if method == 1 {
		paramBits = 5
	}

	partOrderU, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	partOrder := uint8(partOrderU)
	partCount := 1 << partOrder
	if blockSize%partCount != 0 {
		return nil, errors.Errorf("frame: partition order %d does not evenly divide block size %d", partOrder, blockSize)
	}
	partSize := blockSize / partCount

	residual := make([]int32, 0, blockSize-order)
	for i := 0; i < partCount; i++ {
		size := partSize
		if i == 0 {
			size -= order
		}
		param, err := r.ReadUint(paramBits)
		if err != nil {
			return nil, err
		}
		escape := uint64(1)<<paramBits - 1
		if param == escape {
			rawBitsU, err := r.ReadUint(5)
			if err != nil {
				return nil, err
			}
			rawBits := uint8(rawBitsU)
			for j := 0; j < size; j++ {
				v, err := r.ReadInt(rawBits)
				if err != nil {
					return nil, err
				}
				residual = append(residual, int32(v))
			}
			continue
		}
		for j := 0; j < size; j++ {
			v, err := r.ReadRice(uint8(param))
			if err != nil {
				return nil, err
			}
			residual = append(residual, int32(v))
		}
	}
	return residual, nil
}
