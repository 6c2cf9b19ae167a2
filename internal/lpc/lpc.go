package lpc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxOrder is the highest LPC order FLAC's subframe header can encode
// (5-bit order-1 field, §3).
const MaxOrder = 32

// Autocorrelate computes the autocorrelation of a windowed signal for
// lags 0..maxOrder, after applying a Welch window to reduce spectral
// leakage (the reference encoder's default window). The dot-product
// reduction at each lag is delegated to gonum/floats.Dot, the pack's
// numeric-vector library (ausocean-av already depends on
// gonum.org/v1/gonum), rather than a hand-rolled accumulation loop.
func Autocorrelate(samples []int32, maxOrder int) []float64 {
	n := len(samples)
	windowed := make([]float64, n)
	applyWelchWindow(samples, windowed)

	autoc := make([]float64, maxOrder+1)
	for lag := 0; lag <= maxOrder && lag < n; lag++ {
		autoc[lag] = floats.Dot(windowed[:n-lag], windowed[lag:])
	}
	return autoc
}

// applyWelchWindow multiplies samples by a Welch (parabolic) window
// function into dst.
func applyWelchWindow(samples []int32, dst []float64) {
	n := len(samples)
	if n == 1 {
		dst[0] = float64(samples[0])
		return
	}
	half := float64(n-1) / 2
	for i, s := range samples {
		t := (float64(i) - half) / half
		w := 1 - t*t
		dst[i] = float64(s) * w
	}
}

// LevinsonDurbin runs the Levinson-Durbin recursion on the
// autocorrelation sequence autoc (length maxOrder+1) and returns, for
// every order 1..maxOrder, the LPC coefficients of that order and the
// predictor's residual energy ("error") at that order. coeffsByOrder[i]
// has length i+1 (order i+1 coefficients); errByOrder[i] is the
// corresponding prediction error, used by the encoder to pick the
// order that best trades off warmup-sample cost against residual bits
// (§4.3).
func LevinsonDurbin(autoc []float64, maxOrder int) (coeffsByOrder [][]float64, errByOrder []float64) {
	coeffsByOrder = make([][]float64, maxOrder)
	errByOrder = make([]float64, maxOrder)

	err := autoc[0]
	lpc := make([]float64, maxOrder)
	if err == 0 {
		for i := range coeffsByOrder {
			coeffsByOrder[i] = make([]float64, i+1)
			errByOrder[i] = 0
		}
		return coeffsByOrder, errByOrder
	}

	for i := 0; i < maxOrder; i++ {
		r := -autoc[i+1]
		for j := 0; j < i; j++ {
			r -= lpc[j] * autoc[i-j]
		}
		r /= err

		lpc[i] = r
		for j := 0; j < i/2; j++ {
			tmp := lpc[j]
			lpc[j] += r * lpc[i-1-j]
			lpc[i-1-j] += r * tmp
		}
		if i%2 != 0 {
			lpc[i/2] += lpc[i/2] * r
		}

		err *= 1 - r*r

		order := make([]float64, i+1)
		for j := range order {
			// FLAC's LPC convention predicts x[n] = sum(coeff[j]*x[n-1-j]);
			// the recursion above computes reflection-derived coefficients
			// for x[n] + sum(lpc[j]*x[n-1-j]) = e[n], so negate.
			order[j] = -lpc[j]
		}
		coeffsByOrder[i] = order
		errByOrder[i] = err
	}
	return coeffsByOrder, errByOrder
}

// ExpectedBitsPerResidualSample estimates, via the Shannon-like
// estimator of §4.3, the number of bits per residual sample implied by
// a predictor with the given residual energy over n samples.
func ExpectedBitsPerResidualSample(errEnergy float64, n int) float64 {
	if n <= 0 || errEnergy <= 0 {
		return 0
	}
	meanSq := errEnergy / float64(n)
	if meanSq < 1e-9 {
		meanSq = 1e-9
	}
	return 0.5 * math.Log2(meanSq)
}

// QuantizedLPC holds the integer coefficients and shift of a quantized
// predictor, ready to serialize into a subframe header (§3).
type QuantizedLPC struct {
	Coeffs    []int32
	Shift     int32 // quantization_level; may be negative.
	Precision uint8 // bits per coefficient.
}

// ErrCannotQuantize is returned by Quantize when the requested
// precision cannot represent the coefficients without the shift
// overflowing the 5-bit signed quantization_level field (§4.3).
var ErrCannotQuantize = errCannotQuantize{}

type errCannotQuantize struct{}

func (errCannotQuantize) Error() string {
	return "lpc: coefficients cannot be quantized at the requested precision"
}

// Quantize converts floating-point LPC coefficients to integers with
// the given precision (bits per coefficient, including sign), choosing
// a shared shift so the largest coefficient fits in precision-1 bits
// signed, per §4.3. Quantization error from rounding is fed forward
// into later coefficients (error feedback) to keep the aggregate
// rounding bias small, matching the reference encoder.
func Quantize(coeffs []float64, precision uint8) (*QuantizedLPC, error) {
	maxCoeff := 0.0
	for _, c := range coeffs {
		if a := math.Abs(c); a > maxCoeff {
			maxCoeff = a
		}
	}
	if maxCoeff <= 0 {
		return &QuantizedLPC{Coeffs: make([]int32, len(coeffs)), Shift: 0, Precision: precision}, nil
	}

	headroom := int32(precision) - 1
	log2cmax, _ := math.Frexp(maxCoeff)
	_ = log2cmax
	shift := headroom - int32(math.Ceil(math.Log2(maxCoeff)))
	// Clamp to the 5-bit signed quantization_level field: [-16, 15].
	if shift > 15 {
		shift = 15
	}
	if shift < -16 {
		return nil, ErrCannotQuantize
	}

	qmax := int32(1)<<(precision-1) - 1
	qmin := -qmax - 1

	out := make([]int32, len(coeffs))
	var errFeedback float64
	for i, c := range coeffs {
		scaled := c*float64(int64(1)<<uint(max32(shift, 0))) + errFeedback
		if shift < 0 {
			scaled = c / float64(int64(1)<<uint(-shift))
		}
		q := int32(math.Round(scaled))
		if q > qmax {
			q = qmax
		}
		if q < qmin {
			q = qmin
		}
		errFeedback = scaled - float64(q)
		out[i] = q
	}

	return &QuantizedLPC{Coeffs: out, Shift: shift, Precision: precision}, nil
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Residual computes the residual of samples (which must include the
// order warmup samples at the front) under the quantized LPC
// predictor.
func Residual(samples []int32, q *QuantizedLPC) []int32 {
	order := len(q.Coeffs)
	n := len(samples)
	res := make([]int32, 0, n-order)
	shift := uint(q.Shift)
	for i := order; i < n; i++ {
		var acc int64
		for j, c := range q.Coeffs {
			acc += int64(c) * int64(samples[i-1-j])
		}
		pred := shiftRight(acc, q.Shift)
		res = append(res, samples[i]-int32(pred))
	}
	_ = shift
	return res
}

// Restore reconstructs the full sample sequence given the order warmup
// samples already present at the front of dst and the residual that
// follows. Two integer widths are used depending on the combination of
// sample depth and coefficient precision (§4.4): callers with bps<=16
// and precision<=16 may use Restore32 for a faster 32-bit-safe path;
// Restore always uses the 64-bit-safe path and is correct in every
// case.
func Restore(dst []int32, q *QuantizedLPC, residual []int32) {
	order := len(q.Coeffs)
	for i, r := range residual {
		n := order + i
		var acc int64
		for j, c := range q.Coeffs {
			acc += int64(c) * int64(dst[n-1-j])
		}
		pred := shiftRight(acc, q.Shift)
		dst[n] = int32(pred) + r
	}
}

// Restore32 is the 32-bit-arithmetic restoration path used when bps<=16
// and precision<=16, matching the dispatch in §4.4. It produces
// bit-identical output to Restore for any input where that precondition
// holds.
func Restore32(dst []int32, q *QuantizedLPC, residual []int32) {
	order := len(q.Coeffs)
	for i, r := range residual {
		n := order + i
		var acc int32
		for j, c := range q.Coeffs {
			acc += c * dst[n-1-j]
		}
		pred := shiftRight32(acc, q.Shift)
		dst[n] = pred + r
	}
}

func shiftRight(v int64, shift int32) int64 {
	if shift >= 0 {
		return v >> uint(shift)
	}
	return v << uint(-shift)
}

func shiftRight32(v int32, shift int32) int32 {
	if shift >= 0 {
		return v >> uint(shift)
	}
	return v << uint(-shift)
}
