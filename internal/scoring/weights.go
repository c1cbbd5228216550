package scoring

import (
	"fmt"
	"math"
)

// WeightVector holds the weights of the five prediction factors.
// A usable vector is non-negative and sums to 1.0 (±0.001 tolerance).
type WeightVector struct {
	Alpha   float64 `json:"alpha"`   // academic performance
	Beta    float64 `json:"beta"`    // attendance
	Gamma   float64 `json:"gamma"`   // course performance
	Delta   float64 `json:"delta"`   // engagement
	Epsilon float64 `json:"epsilon"` // historical performance
}

// DefaultWeights returns the base weight distribution.
func DefaultWeights() WeightVector {
	return WeightVector{
		Alpha:   0.35,
		Beta:    0.25,
		Gamma:   0.20,
		Delta:   0.15,
		Epsilon: 0.05,
	}
}

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	return w.Alpha + w.Beta + w.Gamma + w.Delta + w.Epsilon
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightVector) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range w.asList() {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// Normalize rescales w to sum to 1. A raw sum <= 0 returns fallback unchanged.
// Negative components are floored at zero before rescaling.
func (w WeightVector) Normalize(fallback WeightVector) WeightVector {
	if raw := w.Sum(); raw <= 0 || math.IsNaN(raw) {
		return fallback
	}
	floored := WeightVector{
		Alpha:   math.Max(w.Alpha, 0),
		Beta:    math.Max(w.Beta, 0),
		Gamma:   math.Max(w.Gamma, 0),
		Delta:   math.Max(w.Delta, 0),
		Epsilon: math.Max(w.Epsilon, 0),
	}
	s := floored.Sum()
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fallback
	}
	return WeightVector{
		Alpha:   floored.Alpha / s,
		Beta:    floored.Beta / s,
		Gamma:   floored.Gamma / s,
		Delta:   floored.Delta / s,
		Epsilon: floored.Epsilon / s,
	}
}

// Apply returns the weighted sum of scores, which must be in weight order.
func (w WeightVector) Apply(scores []float64) float64 {
	weights := w.asList()
	var total float64
	for i := range weights {
		if i < len(scores) {
			total += weights[i] * scores[i]
		}
	}
	return total
}

func (w WeightVector) asList() []float64 {
	return []float64{w.Alpha, w.Beta, w.Gamma, w.Delta, w.Epsilon}
}
