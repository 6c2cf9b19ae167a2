package lpc

import "testing"

func TestFixedResidualRestoreRoundTrip(t *testing.T) {
	samples := []int32{10, 12, 15, 14, 20, 25, 23, 30, 31, 29}
	for order := 0; order <= MaxFixedOrder; order++ {
		residual := FixedResidual(samples, order)
		if len(residual) != len(samples)-order {
			t.Fatalf("order %d: residual length = %d, want %d", order, len(residual), len(samples)-order)
		}

		dst := make([]int32, len(samples))
		copy(dst, samples[:order])
		FixedRestore(dst, order, residual)

		for i, want := range samples {
			if dst[i] != want {
				t.Errorf("order %d: restore mismatch at %d: got %d want %d", order, i, dst[i], want)
			}
		}
	}
}

func TestEstimateFixedOrderPicksConstant(t *testing.T) {
	samples := make([]int32, 32)
	for i := range samples {
		samples[i] = 42
	}
	got := EstimateFixedOrder(samples)
	if got != 1 {
		t.Errorf("constant signal should prefer order 1 (zero first difference), got %d", got)
	}
}

func TestEstimateFixedOrderShortInput(t *testing.T) {
	if got := EstimateFixedOrder(nil); got != 0 {
		t.Errorf("empty input: got %d, want 0", got)
	}
	if got := EstimateFixedOrder([]int32{5}); got != 0 {
		t.Errorf("single sample: got %d, want 0", got)
	}
}

func TestEstimateFixedOrderLinearRamp(t *testing.T) {
	samples := make([]int32, 20)
	for i := range samples {
		samples[i] = int32(i) * 3
	}
	got := EstimateFixedOrder(samples)
	if got != 2 {
		t.Errorf("linear ramp should prefer order 2 (zero second difference), got %d", got)
	}
}
