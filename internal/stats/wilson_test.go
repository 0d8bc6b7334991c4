package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilson(t *testing.T) {
	t.Run("empty sample collapses to zero", func(t *testing.T) {
		iv := Wilson(0, 0, Z95)
		assert.Equal(t, 0.0, iv.Lower)
		assert.Equal(t, 0.0, iv.Upper)
	})

	t.Run("all successes", func(t *testing.T) {
		iv := Wilson(100, 100, Z95)
		assert.Greater(t, iv.Lower, 0.9)
		assert.LessOrEqual(t, iv.Upper, 1.0)
	})

	t.Run("no successes", func(t *testing.T) {
		iv := Wilson(0, 100, Z95)
		assert.GreaterOrEqual(t, iv.Lower, 0.0)
		assert.Less(t, iv.Upper, 0.05)
	})

	t.Run("interval brackets the observed rate", func(t *testing.T) {
		iv := Wilson(30, 100, Z95)
		assert.Less(t, iv.Lower, 0.3)
		assert.Greater(t, iv.Upper, 0.3)
	})

	t.Run("wider z widens the interval", func(t *testing.T) {
		narrow := Wilson(30, 100, Z90)
		wide := Wilson(30, 100, Z99)
		assert.Less(t, wide.Lower, narrow.Lower)
		assert.Greater(t, wide.Upper, narrow.Upper)
	})

	t.Run("small samples stay within unit range", func(t *testing.T) {
		for n := 1; n <= 5; n++ {
			for k := 0; k <= n; k++ {
				iv := Wilson(k, n, Z95)
				assert.GreaterOrEqual(t, iv.Lower, 0.0)
				assert.LessOrEqual(t, iv.Upper, 1.0)
				assert.LessOrEqual(t, iv.Lower, iv.Upper)
			}
		}
	})
}

func TestSignificantlyDifferent(t *testing.T) {
	t.Run("disjoint intervals are significant", func(t *testing.T) {
		a := Wilson(5, 100, Z95)
		b := Wilson(60, 100, Z95)
		assert.True(t, SignificantlyDifferent(a, b))
		assert.True(t, SignificantlyDifferent(b, a))
	})

	t.Run("overlapping intervals are not", func(t *testing.T) {
		a := Wilson(30, 100, Z95)
		b := Wilson(35, 100, Z95)
		assert.False(t, SignificantlyDifferent(a, b))
	})
}
