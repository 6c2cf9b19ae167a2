package flac

import (
	"math"

	"github.com/losslessaudio/flac/frame"
	"github.com/losslessaudio/flac/internal/lpc"
	"github.com/losslessaudio/flac/internal/rice"
)

// candidate is one subframe model considered for a channel's block,
// together with its estimated encoded bit cost (§4.3 step 4). Costs
// are comparable across models of the same channel but are not a
// promise about the exact serialized size.
type candidate struct {
	subframe *frame.Subframe
	bits     uint64
}

const subframeHeaderBits = 1 + 6 + 1 // zero pad + type code + wasted-bits flag

func maxPartitionOrderFor(blockSize, order, cap int) uint8 {
	best := uint8(0)
	for int(best) < cap && blockSize%(1<<(best+1)) == 0 && blockSize/(1<<(best+1)) > order {
		best++
	}
	return best
}

// bestSubframe runs the §4.3 step 4 model search for one channel's
// block at the given nominal bits-per-sample, returning the winning
// candidate. samples is channel-major, not yet wasted-bit shifted.
func bestSubframe(samples []int32, bps int, cfg *EncoderConfig) candidate {
	wasted := frame.WastedBitsOf(samples)
	effBPS := bps - int(wasted)

	shifted := samples
	if wasted > 0 {
		shifted = make([]int32, len(samples))
		for i, s := range samples {
			shifted[i] = s >> wasted
		}
	}

	if frame.IsConstant(shifted) {
		return candidate{
			subframe: &frame.Subframe{Type: frame.SubframeConstant, WastedBits: wasted, Samples: samples},
			bits:     uint64(subframeHeaderBits + effBPS),
		}
	}

	best := candidate{
		subframe: &frame.Subframe{Type: frame.SubframeVerbatim, WastedBits: wasted, Samples: samples},
		bits:     uint64(subframeHeaderBits + effBPS*len(shifted)),
	}

	orders := []int{lpc.EstimateFixedOrder(shifted)}
	if cfg.ExhaustiveModelSearch {
		orders = []int{0, 1, 2, 3, 4}
	}
	for _, order := range orders {
		if order > len(shifted) {
			continue
		}
		residual := lpc.FixedResidual(shifted, order)
		plan := rice.Search(residual, len(shifted), order, maxPartitionOrderFor(len(shifted), order, cfg.MaxPartitionOrder))
		cost := uint64(subframeHeaderBits+order*effBPS) + 2 + plan.TotalBits
		if cost < best.bits {
			best = candidate{
				subframe: &frame.Subframe{Type: frame.SubframeFixed, Order: order, WastedBits: wasted, Samples: samples},
				bits:     cost,
			}
		}
	}

	if cfg.MaxLPCOrder > 0 && len(shifted) > cfg.MaxLPCOrder {
		orders := []int{cfg.MaxLPCOrder}
		if cfg.ExhaustiveModelSearch {
			orders = make([]int, cfg.MaxLPCOrder)
			for i := range orders {
				orders[i] = i + 1
			}
		}
		autoc := lpc.Autocorrelate(shifted, cfg.MaxLPCOrder)
		coeffsByOrder, errByOrder := lpc.LevinsonDurbin(autoc, cfg.MaxLPCOrder)
		precision := cfg.QLPCoeffPrecision
		if precision == 0 {
			precision = 14
		}
		if !cfg.ExhaustiveModelSearch {
			// Try only the order with the fewest expected bits: residual
			// bits estimated from its prediction error, plus warmup
			// samples and quantized coefficients.
			bestBits := math.Inf(1)
			for i, e := range errByOrder {
				order := i + 1
				b := math.Max(lpc.ExpectedBitsPerResidualSample(e, len(shifted)), 0)*float64(len(shifted)-order) + float64(order*(effBPS+int(precision)))
				if b < bestBits {
					bestBits, orders[0] = b, order
				}
			}
		}
		for _, order := range orders {
			if order < 1 || order > len(coeffsByOrder) {
				continue
			}
			q, err := lpc.Quantize(coeffsByOrder[order-1], precision)
			if err != nil {
				continue
			}
			q.Coeffs = q.Coeffs[:order]
			residual := lpc.Residual(shifted, q)
			plan := rice.Search(residual, len(shifted), order, maxPartitionOrderFor(len(shifted), order, cfg.MaxPartitionOrder))
			headerBits := uint64(4 + 5 + order*int(precision))
			cost := uint64(subframeHeaderBits+order*effBPS) + headerBits + 2 + plan.TotalBits
			if cost < best.bits {
				best = candidate{
					subframe: &frame.Subframe{
						Type: frame.SubframeLPC, Order: order, WastedBits: wasted, Samples: samples,
						QLPCoeffs: q.Coeffs, Shift: q.Shift, Precision: precision,
					},
					bits: cost,
				}
			}
		}
	}

	return best
}

// chooseChannelAssignment implements §4.3 step 5: evaluate the four
// stereo channel layouts and return the one with the smallest summed
// subframe bit cost, together with the winning subframes themselves
// (already in on-wire order) so the caller need not redo the search.
func chooseChannelAssignment(left, right []int32, bps int, cfg *EncoderConfig) (frame.ChannelAssignment, []*frame.Subframe) {
	leftCand := bestSubframe(left, bps, cfg)
	rightCand := bestSubframe(right, bps, cfg)

	if !cfg.EnableMidSide {
		return frame.ChannelIndependent, []*frame.Subframe{leftCand.subframe, rightCand.subframe}
	}

	corr := frame.Correlate(frame.ChannelMidSide, [][]int32{left, right})
	midCand := bestSubframe(corr[0], bps, cfg)
	sideCand := bestSubframe(corr[1], bps+1, cfg)

	independent := leftCand.bits + rightCand.bits
	leftSide := leftCand.bits + sideCand.bits
	rightSide := rightCand.bits + sideCand.bits
	midSide := midCand.bits + sideCand.bits

	best := independent
	asgn := frame.ChannelIndependent
	subs := []*frame.Subframe{leftCand.subframe, rightCand.subframe}

	if leftSide < best {
		best = leftSide
		asgn = frame.ChannelLeftSide
		subs = []*frame.Subframe{leftCand.subframe, sideCand.subframe}
	}
	if rightSide < best {
		best = rightSide
		asgn = frame.ChannelRightSide
		subs = []*frame.Subframe{sideCand.subframe, rightCand.subframe}
	}
	if midSide < best {
		asgn = frame.ChannelMidSide
		subs = []*frame.Subframe{midCand.subframe, sideCand.subframe}
	}
	return asgn, subs
}
