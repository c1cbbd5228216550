package scoring

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

// DefaultAdaptationK scales the error-driven weight correction.
const DefaultAdaptationK = 0.9

// PredictionResult captures the complete prediction output for one student.
type PredictionResult struct {
	Initial  float64  `json:"p_initial"`
	Adjusted *float64 `json:"p_adjusted"`

	// Weights used for the adjusted probability, or the base vector when unadjusted.
	Weights WeightVector   `json:"weights"`
	Factors []FactorResult `json:"factors"`

	Actual *float64 `json:"actual,omitempty"`
	Error  *float64 `json:"error,omitempty"`
}

// Engine orchestrates the five-factor weighted prediction with outcome-driven adaptation.
type Engine struct {
	weights WeightVector
	k       float64
	logger  *slog.Logger
}

// NewEngine creates an Engine with the given base weights and adaptation constant.
func NewEngine(weights WeightVector, k float64, logger *slog.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("base weights: %w", err)
	}
	if k < 0 || math.IsNaN(k) {
		return nil, fmt.Errorf("adaptation k must be non-negative, got %f", k)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{weights: weights, k: k, logger: logger}, nil
}

// DefaultEngine uses DefaultWeights and DefaultAdaptationK.
func DefaultEngine() *Engine {
	return &Engine{weights: DefaultWeights(), k: DefaultAdaptationK, logger: slog.Default()}
}

// Weights returns the engine's base vector.
func (e *Engine) Weights() WeightVector {
	return e.weights
}

// Predict computes the initial probability and, when the student carries an
// actual outcome, the adapted weights and adjusted probability.
func (e *Engine) Predict(student *store.Student, enrollments []*store.Enrollment) PredictionResult {
	factors := ExtractFactors(&FactorContext{Student: student, Enrollments: enrollments})
	scores := factorScores(factors)

	initial := clamp(e.weights.Apply(scores), 0, 1)

	if student == nil || student.Actual == nil {
		return PredictionResult{
			Initial: initial,
			Weights: e.weights,
			Factors: applyWeights(factors, e.weights),
		}
	}

	actual := To01(student.Actual, 0)
	errv := actual - initial
	adapted := AdaptWeights(e.weights, scores[0], scores[1], errv, e.k)
	adjusted := clamp(adapted.Apply(scores), 0, 1)

	e.logger.Debug("weights adapted",
		"student_id", student.ID,
		"error", errv,
		"alpha", adapted.Alpha,
		"beta", adapted.Beta,
	)

	return PredictionResult{
		Initial:  initial,
		Adjusted: &adjusted,
		Weights:  adapted,
		Factors:  applyWeights(factors, adapted),
		Actual:   &actual,
		Error:    &errv,
	}
}

// AdaptWeights corrects alpha and beta by the prediction error.
//
//	deltaG = err * Ga * |err|,  alpha' = alpha * (1 + k*deltaG)
//	deltaA = err * Ar * |err|,  beta'  = beta  * (1 + k*deltaA)
//
// The result is renormalized; a non-positive sum falls back to base.
func AdaptWeights(base WeightVector, ga, ar, err, k float64) WeightVector {
	deltaG := err * ga * math.Abs(err)
	deltaA := err * ar * math.Abs(err)

	updated := base
	updated.Alpha = base.Alpha * (1 + k*deltaG)
	updated.Beta = base.Beta * (1 + k*deltaA)
	return updated.Normalize(base)
}

func applyWeights(factors []FactorResult, w WeightVector) []FactorResult {
	weights := w.asList()
	out := make([]FactorResult, len(factors))
	copy(out, factors)
	for i := range out {
		if i < len(weights) {
			out[i].Weight = weights[i]
			out[i].Weighted = out[i].Score * weights[i]
		}
	}
	return out
}
