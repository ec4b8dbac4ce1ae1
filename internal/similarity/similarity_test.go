package similarity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCosine_Identity(t *testing.T) {
	t.Parallel()

	vectors := [][]float64{
		{1, 2, 3},
		{0.5, -0.25, 4, 9},
		{-1, -1},
	}
	for _, v := range vectors {
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-12)
	}
}

func TestCosine_Negation(t *testing.T) {
	t.Parallel()

	v := []float64{0.3, -1.7, 2.2, 0.01}
	neg := make([]float64, len(v))
	for i := range v {
		neg[i] = -v[i]
	}
	assert.InDelta(t, -1.0, Cosine(v, neg), 1e-12)
}

func TestCosine_Orthogonal(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
}

func TestCosine_ZeroVector(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Cosine([]float64{0, 0, 0}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{0, 0}))
}

func TestCosine_MismatchedLengths(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Cosine([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestHaversineKm_SamePoint(t *testing.T) {
	t.Parallel()

	coords := [][2]float64{
		{0, 0},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
	}
	for _, c := range coords {
		assert.Equal(t, 0.0, HaversineKm(c[0], c[1], c[0], c[1]))
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	t.Parallel()

	// London to Paris is roughly 344 km.
	d := HaversineKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344, d, 5)
}

func TestHaversineKm_Symmetry(t *testing.T) {
	t.Parallel()

	a := HaversineKm(40.7128, -74.0060, 34.0522, -118.2437)
	b := HaversineKm(34.0522, -118.2437, 40.7128, -74.0060)
	assert.InDelta(t, a, b, 1e-9)
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysBetween(base, base))
	assert.Equal(t, 0, DaysBetween(base, base.Add(23*time.Hour)))
	assert.Equal(t, 1, DaysBetween(base, base.Add(25*time.Hour)))
	assert.Equal(t, 14, DaysBetween(base, base.AddDate(0, 0, 14)))

	// Order must not matter.
	assert.Equal(t, 7, DaysBetween(base.AddDate(0, 0, 7), base))
	assert.Equal(t, 7, DaysBetween(base, base.AddDate(0, 0, 7)))
}
