package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is empty, zero, or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Score ranks vec against query under the given metric; higher is closer.
func Score(d Distance, query, vec []float32) float64 {
	switch d {
	case Dot:
		if len(query) != len(vec) {
			return 0
		}
		var dot float64
		for i := range query {
			dot += float64(query[i]) * float64(vec[i])
		}
		return dot
	case Euclidean:
		if len(query) != len(vec) {
			return math.Inf(-1)
		}
		var sum float64
		for i := range query {
			diff := float64(query[i]) - float64(vec[i])
			sum += diff * diff
		}
		return -math.Sqrt(sum)
	default:
		return CosineSimilarity(query, vec)
	}
}
