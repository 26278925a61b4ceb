package service

import "math"

// cosineSimilarity computes the cosine similarity of two embedding vectors.
// Accumulation runs in float64 even though embeddings are stored as float32.
// Mismatched dimensions and zero-magnitude vectors score 0.0 rather than
// erroring; a single bad embedding must not take down a retrieval.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
