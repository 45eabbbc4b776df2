// Package vectormath provides the small amount of vector arithmetic the
// engine needs. This package is internal and should not be imported by
// external projects.
package vectormath

import "math"

// Cosine returns the cosine similarity of two vectors. Mismatched lengths,
// empty inputs, and zero-norm vectors all yield 0 rather than an error,
// matching how candidate embeddings of unexpected shape are treated as
// simply dissimilar.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
