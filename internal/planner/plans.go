// Package planner derives course-load plans and catalog recommendations from
// a student's enrollments and adjusted success probability. Every function is
// pure: inputs are copied before sorting and never modified.
package planner

import (
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

// DefaultCurriculumOrder ranks course names for plan ordering. Unknown names sort last.
var DefaultCurriculumOrder = []string{
	"Algorithms",
	"Computer Architecture",
	"Databases",
	"Discrete Structures",
	"Linear Algebra",
	"Mathematics",
	"Probability and Statistics",
	"Programming",
}

const (
	ReasonBaseFailed  = "Current plan built from failed courses in curriculum order."
	ReasonBaseEnabled = "Current plan built from enabled courses in curriculum order."

	ReasonConsolidate = "Low forecast: focus on raising grades in core subjects and stabilising results."
	ReasonHighRisk    = "High risk: minimal load recommended, focus on problem courses."
	ReasonMediumRisk  = "Medium risk: moderate load recommended, close out foundation courses gradually."
	ReasonLowRisk     = "Low risk: a more intensive trajectory is possible, additional courses can be added."
)

// Plan is an ordered course selection with its justification.
type Plan struct {
	CourseIDs []int64          `json:"course_ids"`
	Reason    string           `json:"reason"`
	Risk      scoring.RiskTier `json:"risk"`
}

// Plans holds the two alternative proposals.
type Plans struct {
	Base        Plan `json:"base"`
	Recommended Plan `json:"recommended"`
}

// noGrade sorts ungraded candidates after every graded one.
const noGrade = 101.0

// BuildPlans derives the base (continue as is) and recommended (risk-adjusted)
// plans. order is the curriculum priority list; nil uses DefaultCurriculumOrder.
func BuildPlans(enrollments []*store.Enrollment, pAdjusted *float64, order []string) Plans {
	if order == nil {
		order = DefaultCurriculumOrder
	}
	rank := orderIndex(order)

	risk := scoring.ClassifyRisk(pAdjusted)
	limit := scoring.LoadLimit(risk)

	var rows []store.Enrollment
	for _, e := range enrollments {
		if e == nil || e.CourseID == nil || !e.Enabled {
			continue
		}
		rows = append(rows, *e)
	}

	completed := make(map[int64]bool)
	for _, r := range rows {
		if r.Passed() {
			completed[*r.CourseID] = true
		}
	}

	// A course passed in any row is complete, so its failed rows are not repeated.
	var failed, candidates []store.Enrollment
	for _, r := range rows {
		if r.Failed() && !completed[*r.CourseID] {
			failed = append(failed, r)
		}
		if !completed[*r.CourseID] {
			candidates = append(candidates, r)
		}
	}

	allCompleted := len(rows) > 0 && len(candidates) == 0

	// Base plan
	baseSource := candidates
	baseReason := ReasonBaseEnabled
	if len(failed) > 0 {
		baseSource = failed
		baseReason = ReasonBaseFailed
	}
	baseSorted := append([]store.Enrollment(nil), baseSource...)
	sort.SliceStable(baseSorted, func(i, j int) bool {
		return rank(baseSorted[i].Name) < rank(baseSorted[j].Name)
	})
	if len(baseSorted) > limit {
		baseSorted = baseSorted[:limit]
	}
	baseIDs := make([]int64, 0, len(baseSorted))
	for _, r := range baseSorted {
		baseIDs = append(baseIDs, *r.CourseID)
	}

	// Recommended plan
	pool := append([]store.Enrollment(nil), candidates...)
	sort.SliceStable(pool, func(i, j int) bool {
		gi, gj := gradeKey(pool[i]), gradeKey(pool[j])
		if gi != gj {
			return gi < gj
		}
		return rank(pool[i].Name) < rank(pool[j].Name)
	})
	used := make(map[int64]bool)
	recIDs := make([]int64, 0, limit)
	for _, r := range pool {
		if len(recIDs) >= limit {
			break
		}
		if used[*r.CourseID] {
			continue
		}
		used[*r.CourseID] = true
		recIDs = append(recIDs, *r.CourseID)
	}

	recReason := riskReason(risk)
	if pAdjusted != nil && scoring.PercentScore(*pAdjusted) < 60.0 && allCompleted {
		recReason = ReasonConsolidate
	}

	return Plans{
		Base:        Plan{CourseIDs: baseIDs, Reason: baseReason, Risk: risk},
		Recommended: Plan{CourseIDs: recIDs, Reason: recReason, Risk: risk},
	}
}

func riskReason(risk scoring.RiskTier) string {
	switch risk {
	case scoring.RiskHigh:
		return ReasonHighRisk
	case scoring.RiskMedium:
		return ReasonMediumRisk
	default:
		return ReasonLowRisk
	}
}

func gradeKey(e store.Enrollment) float64 {
	if e.Grade == nil {
		return noGrade
	}
	return *e.Grade
}

func orderIndex(order []string) func(name string) int {
	idx := make(map[string]int, len(order))
	for i, n := range order {
		if _, dup := idx[n]; !dup {
			idx[n] = i
		}
	}
	return func(name string) int {
		if i, ok := idx[strings.TrimSpace(name)]; ok {
			return i
		}
		return len(order)
	}
}
