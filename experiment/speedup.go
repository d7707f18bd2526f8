package experiment

import (
	"math/rand/v2"
	"time"
)

const (
	// SpeedupDivisions is the number of non-zero speedups tried, in equal
	// steps up to 100%.
	SpeedupDivisions = 20
	// ZeroSpeedupWeight is how many more draws select zero speedup than any
	// other value, so that about a quarter of experiments are baselines.
	ZeroSpeedupWeight = 7
)

// DrawSpeedup returns a speedup percent from {0, 5, ..., 100}, with zero
// drawn ZeroSpeedupWeight+1 times as often as each other value.
func DrawSpeedup(r *rand.Rand) int {
	n := r.IntN(ZeroSpeedupWeight + SpeedupDivisions + 1)
	if n <= ZeroSpeedupWeight {
		return 0
	}

	return (n - ZeroSpeedupWeight) * 100 / SpeedupDivisions
}

// nextLength adapts the measurement length to the smallest progress delta
// seen. Too few visits doubles the length, up to maxLength; more than twice
// the target halves it, never going below minLength.
func nextLength(length, minLength, maxLength time.Duration, minDelta, target uint64) time.Duration {
	switch {
	case minDelta < target:
		return max(min(length*2, maxLength), length)
	case minDelta > target*2 && length >= minLength*2:
		return length / 2
	default:
		return length
	}
}
