package scoring

import "math"

// ParameterStats summarises one factor across a population.
type ParameterStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// minStd keeps standardization finite for constant samples.
const minStd = 0.1

// DefaultParameterStats is used when a factor has no samples.
func DefaultParameterStats() ParameterStats {
	return ParameterStats{Min: 0, Max: 1, Mean: 0.5, Std: minStd}
}

// ComputeStats returns population statistics for values. Std is never below 0.1.
func ComputeStats(values []float64) ParameterStats {
	if len(values) == 0 {
		return DefaultParameterStats()
	}
	st := ParameterStats{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - st.Mean
		sq += d * d
	}
	st.Std = math.Sqrt(sq / float64(len(values)))
	if st.Std <= 0 {
		st.Std = minStd
	}
	return st
}

// FactorStats computes per-factor statistics over a set of extracted factor
// vectors. Every factor name appears in the result, defaulted when unsampled.
func FactorStats(samples [][]FactorResult) map[string]ParameterStats {
	byName := make(map[string][]float64)
	for _, factors := range samples {
		for _, f := range factors {
			byName[f.Name] = append(byName[f.Name], f.Score)
		}
	}
	out := make(map[string]ParameterStats, 5)
	for _, name := range []string{FactorAcademic, FactorAttendance, FactorCoursePerformance, FactorEngagement, FactorHistory} {
		out[name] = ComputeStats(byName[name])
	}
	return out
}

// MinMax rescales v into the [min, max] range. An empty range yields 0.5.
func MinMax(v, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	return (v - min) / (max - min)
}

// LogTransform is log(v+1) with negative inputs treated as 0.
func LogTransform(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	return math.Log1p(v)
}

// Standardize is (v-mean)/std, 0 when std is 0.
func Standardize(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

// Preprocessed holds each stage of the preprocessing pipeline for a value.
type Preprocessed struct {
	Clean        float64 `json:"clean"`
	Normalized   float64 `json:"normalized"`
	Standardized float64 `json:"standardized"`
}

// Preprocess cleans raw (default 0), optionally log-transforms it, then
// min-max normalizes and standardizes against st.
func Preprocess(raw any, st ParameterStats, applyLog bool) Preprocessed {
	v, ok := ParseFloat(raw)
	if !ok {
		v = 0
	}
	if applyLog {
		v = LogTransform(v)
	}
	norm := MinMax(v, st.Min, st.Max)
	return Preprocessed{
		Clean:        v,
		Normalized:   norm,
		Standardized: Standardize(norm, st.Mean, st.Std),
	}
}
