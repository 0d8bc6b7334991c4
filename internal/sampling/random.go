package sampling

// SeededRandom is a 64-bit linear congruential generator. math/rand is
// deliberately not used: its sequences are not guaranteed stable across
// Go releases, and reproducibility under a fixed seed is the contract
// here, not a convenience.
type SeededRandom struct {
	state uint64
}

// Knuth MMIX LCG constants.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

// NewSeededRandom creates a generator with the given seed. Two generators
// built from the same seed produce identical sequences.
func NewSeededRandom(seed int64) *SeededRandom {
	return &SeededRandom{state: uint64(seed)}
}

func (r *SeededRandom) nextState() uint64 {
	r.state = r.state*lcgMultiplier + lcgIncrement
	return r.state
}

// Next returns the next value in [0, 1).
func (r *SeededRandom) Next() float64 {
	// Top 53 bits give a uniform double in [0,1).
	return float64(r.nextState()>>11) / (1 << 53)
}

// NextInt returns a value in [lo, hi). hi <= lo returns lo.
func (r *SeededRandom) NextInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(r.Next()*float64(hi-lo))
}

// Shuffle permutes items in place as a deterministic function of the
// current generator state (Fisher-Yates).
func Shuffle[T any](r *SeededRandom, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.NextInt(0, i+1)
		items[i], items[j] = items[j], items[i]
	}
}

// Sample returns min(n, len(items)) elements without replacement,
// deterministically, leaving the input untouched.
func Sample[T any](r *SeededRandom, items []T, n int) []T {
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	if n <= 0 {
		return nil
	}

	pool := make([]T, len(items))
	copy(pool, items)
	// Partial Fisher-Yates: settle only the first n slots.
	for i := 0; i < n; i++ {
		j := r.NextInt(i, len(pool))
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
