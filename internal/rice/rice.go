// Package rice implements FLAC's partitioned Rice residual coding
// (§3, §4.3): splitting a subframe's residual into 2^partitionOrder
// equal partitions, each with its own Rice parameter (or an escape to
// raw fixed-width samples), and searching for the partition order and
// per-partition parameters that minimize total bit cost.
package rice

import "math/bits"

// MaxParameter is the largest Rice parameter a 4-bit parameter field
// can hold before the partition must escape to raw encoding (§3).
const MaxParameter = 14

// EscapeParameter is the 4-bit value (all ones) marking a partition as
// raw/unencoded, each sample taking a fixed number of bits given
// immediately after the escape code (§3).
const EscapeParameter = 15

// Partition describes the Rice coding chosen for one partition of a
// subframe's residual.
type Partition struct {
	Parameter uint8 // Rice parameter, or EscapeParameter.
	RawBits   uint8 // bits per raw sample, only meaningful if escaped.
	Residual  []int32
}

// Plan is the outcome of partitioning and parameter selection for an
// entire subframe residual: the chosen partition order and the
// per-partition codings.
type Plan struct {
	Order      uint8
	Partitions []Partition
	// TotalBits is the encoded bit cost of this plan, including the
	// 4-bit partition-order field and each partition's 4-bit
	// parameter/5-bit raw-width header, used by the encoder's model
	// search to compare candidate predictors (§4.3).
	TotalBits uint64
}

// bestParameterForPartition finds the Rice parameter minimizing the
// encoded bit count of part: it estimates a parameter from the mean
// zigzag magnitude and then tries every parameter within 2 of that
// estimate (clamped to 0..MaxParameter); parameters further away are
// not tried.
func bestParameterForPartition(part []int32) (param uint8, costBits uint64) {
	var sum uint64
	for _, v := range part {
		sum += zigzag(v)
	}
	n := uint64(len(part))
	if n == 0 {
		return 0, 0
	}

	// Start near the theoretical optimum (mean magnitude) and refine
	// locally; Rice cost is convex in k so a local search suffices.
	// The estimate is the smallest k with 2^k >= mean magnitude.
	k := 0
	for k < MaxParameter && (n<<uint(k)) < sum {
		k++
	}
	bestK, bestCost := uint8(k), partitionCost(part, uint8(k))
	for delta := -2; delta <= 2; delta++ {
		kk := k + delta
		if kk < 0 || kk > MaxParameter {
			continue
		}
		c := partitionCost(part, uint8(kk))
		if c < bestCost {
			bestCost, bestK = c, uint8(kk)
		}
	}
	return bestK, bestCost
}

func partitionCost(part []int32, k uint8) uint64 {
	var total uint64
	for _, v := range part {
		u := zigzag(v)
		total += uint64(u>>k) + 1 + uint64(k)
	}
	return total
}

func zigzag(v int32) uint64 {
	x := int64(v)
	return uint64((x << 1) ^ (x >> 63))
}

// rawBitsNeeded returns the bit width each sample of part needs when
// the partition is escaped to raw fixed-width samples (0 if every
// sample is zero).
func rawBitsNeeded(part []int32) uint8 {
	var maxAbs uint32
	for _, v := range part {
		u := zigzag(v)
		if uint32(u) > maxAbs {
			maxAbs = uint32(u)
		}
	}
	if maxAbs == 0 {
		return 0
	}
	return uint8(bits.Len32(maxAbs)) + 1
}

// Search finds the partition order in [0, maxOrder] and per-partition
// Rice parameters that minimize total encoded bit cost for residual,
// which has blockSize-predictorOrder samples (the predictor's warmup
// samples are not part of the residual). Partition 0 of every order is
// shorter by predictorOrder samples since warmup samples are excluded
// from the first partition (§3).
func Search(residual []int32, blockSize int, predictorOrder int, maxOrder uint8) Plan {
	bestOrder := uint8(0)
	var bestPartitions []Partition
	var bestTotal uint64
	bestCost := ^uint64(0)

	for order := uint8(0); order <= maxOrder; order++ {
		partCount := 1 << order
		if blockSize%partCount != 0 {
			continue
		}
		partSize := blockSize / partCount
		if partSize <= predictorOrder && partCount > 1 {
			continue
		}

		partitions := make([]Partition, partCount)
		var total uint64
		// header: 4 bits for order + 4 bits per partition parameter.
		total += 4 + 4*uint64(partCount)

		pos := 0
		ok := true
		for i := 0; i < partCount; i++ {
			size := partSize
			if i == 0 {
				size -= predictorOrder
			}
			if pos+size > len(residual) {
				ok = false
				break
			}
			part := residual[pos : pos+size]
			pos += size

			param, cost := bestParameterForPartition(part)
			rawBits := rawBitsNeeded(part)
			rawCost := uint64(5) + uint64(rawBits)*uint64(len(part))
			if rawCost < cost {
				partitions[i] = Partition{Parameter: EscapeParameter, RawBits: rawBits, Residual: part}
				total += rawCost
			} else {
				partitions[i] = Partition{Parameter: param, Residual: part}
				total += cost
			}
		}
		if !ok {
			continue
		}
		if total < bestCost {
			bestCost = total
			bestOrder = order
			bestPartitions = partitions
			bestTotal = total
		}
	}

	return Plan{Order: bestOrder, Partitions: bestPartitions, TotalBits: bestTotal}
}
