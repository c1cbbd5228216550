package scoring

import (
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

// Factor names, in weight order.
const (
	FactorAcademic          = "academic_performance"
	FactorAttendance        = "attendance"
	FactorCoursePerformance = "course_performance"
	FactorEngagement        = "engagement"
	FactorHistory           = "historical_performance"
)

// FactorResult captures one factor's contribution to a probability.
type FactorResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

// FactorContext bundles the inputs needed to extract factors for one student.
type FactorContext struct {
	Student     *store.Student
	Enrollments []*store.Enrollment
}

// --- Individual factor calculators ---

// AcademicFactor is (Gcurrent-Gmin)/(Gmax-Gmin). It is unavailable when any
// bound is missing or the range is empty; callers substitute course performance.
func AcademicFactor(fc *FactorContext) FactorResult {
	s := fc.Student
	if s == nil || s.Gcurrent == nil || s.Gmin == nil || s.Gmax == nil {
		return FactorResult{Name: FactorAcademic, Available: false, Reason: "grade bounds missing"}
	}
	if *s.Gmax == *s.Gmin {
		return FactorResult{Name: FactorAcademic, Available: false, Reason: "empty grade range"}
	}
	ga := (*s.Gcurrent - *s.Gmin) / (*s.Gmax - *s.Gmin)
	return FactorResult{Name: FactorAcademic, Score: clamp(ga, 0, 1), Available: true, Reason: "from grade bounds"}
}

// AttendanceFactor prefers the student's explicit ratio and falls back to the
// share of enabled enrollments.
func AttendanceFactor(fc *FactorContext) FactorResult {
	if fc.Student != nil && fc.Student.Ar != nil {
		return FactorResult{Name: FactorAttendance, Score: To01(fc.Student.Ar, 0), Available: true, Reason: "from student record"}
	}
	if len(fc.Enrollments) == 0 {
		return FactorResult{Name: FactorAttendance, Score: 0, Available: false, Reason: "no enrollments"}
	}
	enabled := 0
	for _, e := range fc.Enrollments {
		if e.Enabled {
			enabled++
		}
	}
	ratio := float64(enabled) / float64(len(fc.Enrollments))
	return FactorResult{Name: FactorAttendance, Score: clamp(ratio, 0, 1), Available: true, Reason: "enabled enrollment ratio"}
}

// CoursePerformanceFactor is the mean of grade/100 over enabled, graded enrollments.
func CoursePerformanceFactor(fc *FactorContext) FactorResult {
	var sum float64
	n := 0
	for _, e := range fc.Enrollments {
		if !e.Enabled || e.Grade == nil {
			continue
		}
		sum += *e.Grade / 100.0
		n++
	}
	if n == 0 {
		return FactorResult{Name: FactorCoursePerformance, Score: 0, Available: false, Reason: "no graded enabled courses"}
	}
	return FactorResult{Name: FactorCoursePerformance, Score: clamp(sum/float64(n), 0, 1), Available: true, Reason: "mean enabled grade"}
}

// EngagementFactor is a passthrough from the student's LMS score.
func EngagementFactor(fc *FactorContext) FactorResult {
	if fc.Student != nil && fc.Student.Ls != nil {
		return FactorResult{Name: FactorEngagement, Score: To01(fc.Student.Ls, 0), Available: true, Reason: "from student record"}
	}
	return FactorResult{Name: FactorEngagement, Score: 0, Available: false, Reason: "default"}
}

// HistoryFactor is a passthrough from the student's historical performance.
func HistoryFactor(fc *FactorContext) FactorResult {
	if fc.Student != nil && fc.Student.Ph != nil {
		return FactorResult{Name: FactorHistory, Score: To01(fc.Student.Ph, 0), Available: true, Reason: "from student record"}
	}
	return FactorResult{Name: FactorHistory, Score: 0, Available: false, Reason: "default"}
}

// ExtractFactors computes all five factors in weight order (Ga, Ar, Cp, Ls, Ph).
// An unavailable Ga takes the course performance score.
func ExtractFactors(fc *FactorContext) []FactorResult {
	ga := AcademicFactor(fc)
	cp := CoursePerformanceFactor(fc)
	if !ga.Available {
		ga.Score = cp.Score
		ga.Reason = ga.Reason + "; fallback to course performance"
	}
	return []FactorResult{
		ga,
		AttendanceFactor(fc),
		cp,
		EngagementFactor(fc),
		HistoryFactor(fc),
	}
}

func factorScores(factors []FactorResult) []float64 {
	out := make([]float64, len(factors))
	for i, f := range factors {
		out[i] = f.Score
	}
	return out
}
