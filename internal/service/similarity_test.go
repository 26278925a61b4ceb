package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	v := []float32{0.3, 0.4, 0.5}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.InDelta(t, -1.0, cosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	a := []float32{0.1, 0.7, 0.2, 0.9}
	b := []float32{0.4, 0.3, 0.8, 0.1}
	assert.Equal(t, cosineSimilarity(a, b), cosineSimilarity(b, a))
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	a := []float32{0.2, -0.5, 0.8, 0.1}
	b := []float32{-0.3, 0.9, 0.4, -0.7}
	score := cosineSimilarity(a, b)
	assert.LessOrEqual(t, score, 1.0+1e-9)
	assert.GreaterOrEqual(t, score, -1.0-1e-9)
}

// Bad inputs score zero instead of erroring.
func TestCosineSimilarity_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 1}, []float32{0, 0}))
}

func TestCosineSimilarity_KnownValue(t *testing.T) {
	// 3-4-5 triangle: cos = 12/25.
	a := []float32{3, 0}
	b := []float32{3, 4}
	assert.InDelta(t, 0.6, cosineSimilarity(a, b), 1e-6)
	assert.False(t, math.IsNaN(cosineSimilarity(a, b)))
}
