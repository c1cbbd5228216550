package scoring

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func float64Ptr(v float64) *float64 { return &v }

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultWeights(), DefaultAdaptationK, discardLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func enrollment(enabled bool, grade *float64) *store.Enrollment {
	return &store.Enrollment{Name: "Course", Enabled: enabled, Grade: grade}
}

// referenceStudent is Ga=0.8, Ar=0.5, Cp=0.6, Ls=0.3, Ph=0.2.
func referenceStudent() (*store.Student, []*store.Enrollment) {
	s := &store.Student{
		ID:       1,
		Gcurrent: float64Ptr(80),
		Gmin:     float64Ptr(0),
		Gmax:     float64Ptr(100),
		Ar:       float64Ptr(0.5),
		Ls:       float64Ptr(0.3),
		Ph:       float64Ptr(0.2),
	}
	courses := []*store.Enrollment{
		enrollment(true, float64Ptr(70)),
		enrollment(true, float64Ptr(50)),
	}
	return s, courses
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	if err := w.Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		t.Errorf("default weights sum to %f, expected 1.0", w.Sum())
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := (WeightVector{Alpha: -0.1, Beta: 0.5, Gamma: 0.3, Delta: 0.2, Epsilon: 0.1}).Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
	if err := (WeightVector{Alpha: 0.5, Beta: 0.5, Gamma: 0.5}).Validate(); err == nil {
		t.Error("expected error for bad sum")
	}
}

func TestNewEngineRejectsInvalidWeights(t *testing.T) {
	if _, err := NewEngine(WeightVector{Alpha: 1, Beta: 1}, 0.9, discardLogger()); err == nil {
		t.Fatal("expected error for weights summing to 2")
	}
	if _, err := NewEngine(DefaultWeights(), -1, discardLogger()); err == nil {
		t.Fatal("expected error for negative k")
	}
}

func TestPredictWithoutActual(t *testing.T) {
	s, courses := referenceStudent()
	r := testEngine(t).Predict(s, courses)

	// 0.35*0.8 + 0.25*0.5 + 0.20*0.6 + 0.15*0.3 + 0.05*0.2
	if math.Abs(r.Initial-0.58) > 1e-9 {
		t.Errorf("expected p_initial 0.58, got %f", r.Initial)
	}
	if r.Adjusted != nil {
		t.Errorf("expected nil p_adjusted, got %f", *r.Adjusted)
	}
	if r.Weights != DefaultWeights() {
		t.Errorf("expected base weights, got %+v", r.Weights)
	}
	if len(r.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(r.Factors))
	}
	want := []float64{0.8, 0.5, 0.6, 0.3, 0.2}
	for i, f := range r.Factors {
		if math.Abs(f.Score-want[i]) > 1e-9 {
			t.Errorf("factor %s: expected %f, got %f", f.Name, want[i], f.Score)
		}
	}
}

func TestPredictAllOnesIsExactlyOne(t *testing.T) {
	s := &store.Student{
		Gcurrent: float64Ptr(10), Gmin: float64Ptr(0), Gmax: float64Ptr(10),
		Ar: float64Ptr(1), Ls: float64Ptr(1), Ph: float64Ptr(1),
	}
	courses := []*store.Enrollment{enrollment(true, float64Ptr(100))}
	r := testEngine(t).Predict(s, courses)
	if r.Initial != 1.0 {
		t.Errorf("expected exactly 1.0, got %v", r.Initial)
	}
}

func TestPredictAcademicFallsBackToCoursePerformance(t *testing.T) {
	tests := []struct {
		name    string
		student *store.Student
	}{
		{"equal bounds", &store.Student{Gcurrent: float64Ptr(50), Gmin: float64Ptr(50), Gmax: float64Ptr(50)}},
		{"missing current", &store.Student{Gmin: float64Ptr(0), Gmax: float64Ptr(100)}},
		{"missing bounds", &store.Student{Gcurrent: float64Ptr(70)}},
	}
	courses := []*store.Enrollment{
		enrollment(true, float64Ptr(70)),
		enrollment(false, float64Ptr(10)), // disabled, ignored by Cp
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testEngine(t).Predict(tt.student, courses)
			ga := r.Factors[0]
			if ga.Available {
				t.Error("expected academic factor unavailable")
			}
			if math.Abs(ga.Score-0.7) > 1e-9 {
				t.Errorf("expected Ga fallback 0.7, got %f", ga.Score)
			}
		})
	}
}

func TestPredictWithActualAdaptsWeights(t *testing.T) {
	s, courses := referenceStudent()
	s.Actual = float64Ptr(100) // 0–100 scale, normalizes to 1.0
	r := testEngine(t).Predict(s, courses)

	if r.Adjusted == nil {
		t.Fatal("expected p_adjusted")
	}
	if math.Abs(r.Weights.Sum()-1.0) > 1e-9 {
		t.Errorf("adapted weights sum to %f", r.Weights.Sum())
	}

	errv := 1.0 - 0.58
	alpha := 0.35 * (1 + 0.9*errv*0.8*errv)
	beta := 0.25 * (1 + 0.9*errv*0.5*errv)
	sum := alpha + beta + 0.20 + 0.15 + 0.05
	want := (alpha*0.8 + beta*0.5 + 0.20*0.6 + 0.15*0.3 + 0.05*0.2) / sum

	if math.Abs(*r.Adjusted-want) > 1e-9 {
		t.Errorf("expected p_adjusted %f, got %f", want, *r.Adjusted)
	}
	if math.Abs(r.Weights.Alpha-alpha/sum) > 1e-9 {
		t.Errorf("expected alpha %f, got %f", alpha/sum, r.Weights.Alpha)
	}
	if r.Error == nil || math.Abs(*r.Error-errv) > 1e-9 {
		t.Errorf("expected error %f, got %v", errv, r.Error)
	}
	if *r.Adjusted <= r.Initial {
		t.Errorf("positive error should raise the probability: %f <= %f", *r.Adjusted, r.Initial)
	}
}

func TestPredictProbabilitiesStayInRange(t *testing.T) {
	actuals := []float64{0, 0.2, 1, 55, 100, 250, -40}
	grades := []float64{0, 59.9, 60, 100, 140}
	e := testEngine(t)
	for _, a := range actuals {
		for _, g := range grades {
			s := &store.Student{
				Gcurrent: float64Ptr(g), Gmin: float64Ptr(0), Gmax: float64Ptr(100),
				Ar: float64Ptr(g), Ls: float64Ptr(a), Ph: float64Ptr(g), Actual: float64Ptr(a),
			}
			r := e.Predict(s, []*store.Enrollment{enrollment(true, float64Ptr(g))})
			if r.Initial < 0 || r.Initial > 1 {
				t.Errorf("p_initial out of range: %f", r.Initial)
			}
			if r.Adjusted == nil || *r.Adjusted < 0 || *r.Adjusted > 1 {
				t.Errorf("p_adjusted out of range: %v", r.Adjusted)
			}
			for _, w := range r.Weights.asList() {
				if w < 0 {
					t.Errorf("negative adapted weight %f", w)
				}
			}
			if math.Abs(r.Weights.Sum()-1) > 1e-9 {
				t.Errorf("adapted weights sum to %f", r.Weights.Sum())
			}
		}
	}
}

func TestPredictEmptyInputs(t *testing.T) {
	r := testEngine(t).Predict(&store.Student{}, nil)
	if r.Initial != 0 {
		t.Errorf("expected 0 for empty student, got %f", r.Initial)
	}
	r = testEngine(t).Predict(nil, nil)
	if r.Adjusted != nil {
		t.Error("expected nil p_adjusted for nil student")
	}
}

func TestPredictIsIdempotent(t *testing.T) {
	s, courses := referenceStudent()
	s.Actual = float64Ptr(0.3)
	e := testEngine(t)
	a := e.Predict(s, courses)
	b := e.Predict(s, courses)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected identical results, got %+v and %+v", a, b)
	}
	if *s.Actual != 0.3 || *courses[0].Grade != 70 {
		t.Error("inputs were mutated")
	}
}

func TestAdaptWeightsFallsBackOnNonPositiveSum(t *testing.T) {
	base := DefaultWeights()
	w := WeightVector{Alpha: -2, Beta: 0.1, Gamma: 0.1, Delta: 0.1, Epsilon: 0.1}
	if got := w.Normalize(base); got != base {
		t.Errorf("expected fallback to base, got %+v", got)
	}
	if got := (WeightVector{}).Normalize(base); got != base {
		t.Errorf("expected fallback for zero vector, got %+v", got)
	}
}

func TestNormalizeFloorsNegativeComponents(t *testing.T) {
	w := WeightVector{Alpha: -0.1, Beta: 0.5, Gamma: 0.5}
	got := w.Normalize(DefaultWeights())
	if got.Alpha != 0 {
		t.Errorf("expected floored alpha, got %f", got.Alpha)
	}
	if math.Abs(got.Sum()-1) > 1e-9 {
		t.Errorf("expected sum 1, got %f", got.Sum())
	}
}

func TestAdaptWeightsZeroErrorKeepsBase(t *testing.T) {
	base := DefaultWeights()
	got := AdaptWeights(base, 0.7, 0.4, 0, DefaultAdaptationK)
	for i, v := range got.asList() {
		if math.Abs(v-base.asList()[i]) > 1e-12 {
			t.Errorf("weight %d changed with zero error: %f", i, v)
		}
	}
}

func TestAttendanceFactor(t *testing.T) {
	t.Run("explicit percent", func(t *testing.T) {
		r := AttendanceFactor(&FactorContext{Student: &store.Student{Ar: float64Ptr(80)}})
		if math.Abs(r.Score-0.8) > 1e-9 {
			t.Errorf("expected 0.8, got %f", r.Score)
		}
	})
	t.Run("enabled ratio", func(t *testing.T) {
		r := AttendanceFactor(&FactorContext{
			Student:     &store.Student{},
			Enrollments: []*store.Enrollment{enrollment(true, nil), enrollment(false, nil), enrollment(true, nil), enrollment(false, nil)},
		})
		if r.Score != 0.5 {
			t.Errorf("expected 0.5, got %f", r.Score)
		}
	})
	t.Run("no enrollments", func(t *testing.T) {
		r := AttendanceFactor(&FactorContext{Student: &store.Student{}})
		if r.Score != 0 || r.Available {
			t.Errorf("expected unavailable 0, got %+v", r)
		}
	})
}

func TestCoursePerformanceClamped(t *testing.T) {
	r := CoursePerformanceFactor(&FactorContext{Enrollments: []*store.Enrollment{enrollment(true, float64Ptr(180))}})
	if r.Score != 1 {
		t.Errorf("expected clamp to 1, got %f", r.Score)
	}
}
