// Package embedding builds the fixed-width unit vectors stored in the
// vector index: TF-IDF product vectors, purchase-pattern customer vectors and
// content-profile customer vectors.
package embedding

import "math"

// DefaultDimension is the width of the vector(N) columns.
const DefaultDimension = 128

// Fit pads raw with zeros or truncates it to its first d components, then
// scales the result to unit L2 norm. Truncation keeps a prefix only; callers
// must not attach meaning to the dropped tail.
//
// ok is false when there is nothing to normalise (zero or non-finite norm),
// which callers treat as "no embedding".
func Fit(raw []float64, d int) ([]float32, bool) {
	if d <= 0 {
		return nil, false
	}
	n := len(raw)
	if n > d {
		n = d
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += raw[i] * raw[i]
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, d)
	for i := 0; i < n; i++ {
		out[i] = float32(raw[i] / norm)
	}
	return out, true
}

// Fit32 is Fit for float32 input.
func Fit32(raw []float32, d int) ([]float32, bool) {
	widened := make([]float64, len(raw))
	for i, v := range raw {
		widened[i] = float64(v)
	}
	return Fit(widened, d)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
