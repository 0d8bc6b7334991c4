// Package stats turns raw per-item classifications into distributions,
// Wilson-score confidence intervals, and baseline comparisons. The sole
// significance test in the system is interval non-overlap; there are no
// p-values.
package stats

import (
	"math"

	"threadlens/internal/types"
)

// Supported z-scores. 95% is the default interval width.
const (
	Z95 = 1.96
	Z99 = 2.576
	Z90 = 1.645
)

// Wilson computes the Wilson score interval for successes/total at the
// given z. total=0 yields [0,0]; bounds clamp to [0,1].
func Wilson(successes, total int, z float64) types.ConfidenceInterval {
	if total <= 0 {
		return types.ConfidenceInterval{}
	}

	n := float64(total)
	p := float64(successes) / n
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := z * math.Sqrt((p*(1-p)+z2/(4*n))/n) / denom

	return types.ConfidenceInterval{
		Lower: clamp01(center - margin),
		Upper: clamp01(center + margin),
	}
}

// SignificantlyDifferent reports whether two intervals do not overlap
// (upper of one strictly below lower of the other, either direction).
func SignificantlyDifferent(a, b types.ConfidenceInterval) bool {
	return a.Upper < b.Lower || b.Upper < a.Lower
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
