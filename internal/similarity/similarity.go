// Package similarity holds the pure numeric primitives used by the
// match scoring engine: vector cosine similarity, great-circle distance,
// and whole-day differences.
package similarity

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Cosine computes the cosine similarity between two equal-length vectors.
// Mismatched or empty inputs and zero-norm vectors yield 0 rather than an
// error; an all-zero embedding carries no visual signal.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates given in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DaysBetween returns the absolute difference in whole days between two
// instants.
func DaysBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
