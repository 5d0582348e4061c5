package utils

import (
	"fmt"
	"math"
)

// dotProduct calculates the dot product of two vectors.
func dotProduct(vec1, vec2 []float32) (float32, error) {
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension")
	}
	var product float32
	for i := range vec1 {
		product += vec1[i] * vec2[i]
	}
	return product, nil
}

// magnitude calculates the L2 norm (magnitude) of a vector.
func magnitude(vec []float32) float32 {
	var sumOfSquares float32
	for _, val := range vec {
		sumOfSquares += val * val
	}
	return float32(math.Sqrt(float64(sumOfSquares)))
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(vec1, vec2 []float32) (float32, error) {
	if len(vec1) == 0 || len(vec2) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	dotProduct, err := dotProduct(vec1, vec2)
	if err != nil {
		return 0, err
	}

	mag1 := magnitude(vec1)
	mag2 := magnitude(vec2)

	if mag1 == 0 || mag2 == 0 {
		return 0, nil
	}

	return dotProduct / (mag1 * mag2), nil
}

// CheckVector reports why vec is unusable as an embedding: empty, NaN/Inf
// components, or all zeros.
func CheckVector(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("vector is empty")
	}
	nonZero := false
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector component %d is not finite", i)
		}
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return fmt.Errorf("vector is all zeros")
	}
	return nil
}

// MeanPool averages equally sized token vectors into one vector.
func MeanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no token vectors to pool")
	}
	dim := len(tokens[0])
	out := make([]float32, dim)
	for i, tok := range tokens {
		if len(tok) != dim {
			return nil, fmt.Errorf("token vector %d has dimension %d, want %d", i, len(tok), dim)
		}
		for j, v := range tok {
			out[j] += v
		}
	}
	n := float32(len(tokens))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}

// L2Normalize scales vec to unit length in place. Zero vectors are left as is.
func L2Normalize(vec []float32) []float32 {
	mag := magnitude(vec)
	if mag == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= mag
	}
	return vec
}
