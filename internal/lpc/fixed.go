// Package lpc implements the two predictor families used by FLAC
// subframes (§3, §4.3): the fixed finite-difference predictors of
// order 0-4, and linear predictive coding derived from autocorrelation
// and the Levinson-Durbin recursion.
//
// Residual computation and restoration are kept bit-exact with the
// reference encoder/decoder: synthesis always happens in integer
// arithmetic, never floating point, so that decode reproduces the
// encoder's residual exactly (§8 property 1).
package lpc

// FixedCoeffs gives the finite-difference coefficients used by fixed
// predictor order i, such that predicted[n] = sum(FixedCoeffs[i][j] *
// x[n-1-j]).
//
//	x_0[n] = 0
//	x_1[n] = x[n-1]
//	x_2[n] = 2*x[n-1] - x[n-2]
//	x_3[n] = 3*x[n-1] - 3*x[n-2] + x[n-3]
//	x_4[n] = 4*x[n-1] - 6*x[n-2] + 4*x[n-3] - x[n-4]
//
// ref: Section 2.2 of http://www.hpl.hp.com/techreports/1999/HPL-1999-144.pdf
var FixedCoeffs = [5][]int32{
	0: {},
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

// MaxFixedOrder is the highest fixed predictor order FLAC supports.
const MaxFixedOrder = 4

// FixedResidual computes the order-th fixed-predictor residual of
// samples. samples must include the order warmup samples; the
// returned slice has length len(samples)-order.
func FixedResidual(samples []int32, order int) []int32 {
	n := len(samples)
	res := make([]int32, 0, n-order)
	coeffs := FixedCoeffs[order]
	for i := order; i < n; i++ {
		var pred int64
		for j, c := range coeffs {
			pred += int64(c) * int64(samples[i-1-j])
		}
		res = append(res, samples[i]-int32(pred))
	}
	return res
}

// FixedRestore reconstructs the full sample sequence given the order
// warmup samples (already present at the front of dst) and the
// residual that follows them. dst must have length
// order+len(residual).
func FixedRestore(dst []int32, order int, residual []int32) {
	coeffs := FixedCoeffs[order]
	for i, r := range residual {
		n := order + i
		var pred int64
		for j, c := range coeffs {
			pred += int64(c) * int64(dst[n-1-j])
		}
		dst[n] = int32(pred) + r
	}
}

// EstimateFixedOrder picks the fixed-predictor order (0..4) with the
// smallest expected residual magnitude using, for each order, the sum
// of absolute differences of that order, the standard cheap heuristic
// used in place of an exhaustive search (§4.3 "Fixed predictor choice
// heuristic"). Ties go to the lowest order.
//
// It returns the order whose running sum of |higher-order difference|
// is smallest, matching the classic libFLAC heuristic of comparing
// cumulative absolute differences rather than paying for 5 full
// residual computations.
func EstimateFixedOrder(samples []int32) int {
	n := len(samples)
	if n < 5 {
		if n == 0 {
			return 0
		}
		return n - 1
	}
	// sums[i] approximates the total magnitude of the i-th order
	// difference signal.
	var sums [5]uint64
	diff := make([][5]int32, n)
	for i := 0; i < n; i++ {
		diff[i][0] = samples[i]
	}
	for order := 1; order <= 4; order++ {
		for i := order; i < n; i++ {
			diff[i][order] = diff[i][order-1] - diff[i-1][order-1]
		}
	}
	for order := 0; order <= 4; order++ {
		for i := order; i < n; i++ {
			v := diff[i][order]
			if v < 0 {
				v = -v
			}
			sums[order] += uint64(v)
		}
	}
	best, bestSum := 0, ^uint64(0)
	for order := 0; order <= 4; order++ {
		if sums[order] < bestSum {
			bestSum = sums[order]
			best = order
		}
	}
	return best
}
