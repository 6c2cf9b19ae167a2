package rice

import "testing"

func synthResidual(n int, scale int32) []int32 {
	res := make([]int32, n)
	state := int32(12345)
	for i := range res {
		state = state*1103515245 + 12345
		res[i] = (state >> 16) % (scale + 1)
	}
	return res
}

func TestSearchProducesValidPlan(t *testing.T) {
	blockSize := 4096
	predictorOrder := 2
	residual := synthResidual(blockSize-predictorOrder, 50)

	plan := Search(residual, blockSize, predictorOrder, 6)

	wantPartitions := 1 << plan.Order
	if len(plan.Partitions) != wantPartitions {
		t.Fatalf("got %d partitions, want %d for order %d", len(plan.Partitions), wantPartitions, plan.Order)
	}

	total := 0
	for i, part := range plan.Partitions {
		total += len(part.Residual)
		if part.Parameter > EscapeParameter {
			t.Errorf("partition %d parameter %d exceeds field width", i, part.Parameter)
		}
	}
	if total != len(residual) {
		t.Errorf("partitions cover %d samples, want %d", total, len(residual))
	}
}

func TestSearchHandlesZeroResidual(t *testing.T) {
	blockSize := 16
	residual := make([]int32, blockSize)
	plan := Search(residual, blockSize, 0, 4)
	for _, part := range plan.Partitions {
		if part.Parameter != 0 && part.Parameter != EscapeParameter {
			t.Errorf("zero residual should pick parameter 0, got %d", part.Parameter)
		}
	}
}

func TestBestParameterMonotonicCost(t *testing.T) {
	part := synthResidual(256, 1000)
	_, cost := bestParameterForPartition(part)
	naive := partitionCost(part, 10)
	if cost > naive {
		t.Errorf("search cost %d worse than fixed-k10 cost %d", cost, naive)
	}
}
