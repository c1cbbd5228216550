package planner

import (
	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

const (
	ReasonRepeat          = "Repeat or strengthen: grade is below the pass threshold."
	ReasonPrereqsUnmet    = "Prerequisites not met."
	ReasonLightHighRisk   = "Low load under high risk."
	ReasonHeavyHighRisk   = "Heavy load under high risk."
	ReasonBalancedMedium  = "Balanced course under medium risk."
	ReasonDemandingMedium = "Potentially demanding course."
	ReasonAvailable       = "Course available, prerequisites met."
)

// Difficulty ceilings for an optimal course at each risk tier.
const (
	highRiskMaxDifficulty   = 2.0
	mediumRiskMaxDifficulty = 3.0
)

// TakenCourse is an enrollment resolved to a catalog id.
type TakenCourse struct {
	CourseID int64    `json:"course_id"`
	Grade    *float64 `json:"grade,omitempty"`
}

// Recommendation pairs a catalog course with the reason it was bucketed.
type Recommendation struct {
	Course store.Course `json:"course"`
	Reason string       `json:"reason"`
}

// RecommendationSet partitions the catalog for one student.
type RecommendationSet struct {
	Risk     scoring.RiskTier `json:"risk_level"`
	MustFix  []Recommendation `json:"must_fix"`
	Optimal  []Recommendation `json:"optimal"`
	Cautious []Recommendation `json:"cautious"`
}

// TakenFromEnrollments keeps enrollments that resolved to a catalog course and
// were actually taken: enabled or graded. Untouched placeholder rows stay
// recommendable.
func TakenFromEnrollments(enrollments []*store.Enrollment) []TakenCourse {
	out := make([]TakenCourse, 0, len(enrollments))
	for _, e := range enrollments {
		if e == nil || e.CourseID == nil || (!e.Enabled && e.Grade == nil) {
			continue
		}
		tc := TakenCourse{CourseID: *e.CourseID}
		if e.Grade != nil {
			g := *e.Grade
			tc.Grade = &g
		}
		out = append(out, tc)
	}
	return out
}

// PrerequisiteMap indexes catalog prerequisites by course id.
func PrerequisiteMap(catalog []*store.Course) map[int64][]int64 {
	m := make(map[int64][]int64, len(catalog))
	for _, c := range catalog {
		if c == nil {
			continue
		}
		m[c.ID] = append([]int64(nil), c.Prerequisites...)
	}
	return m
}

// Recommend classifies every untaken catalog course as optimal or cautious and
// lists failed courses as must-fix. Risk uses the fractional convention.
func Recommend(taken []TakenCourse, catalog []*store.Course, prereqs map[int64][]int64, pAdjusted *float64) RecommendationSet {
	takenIDs := make(map[int64]bool, len(taken))
	passedIDs := make(map[int64]bool, len(taken))
	for _, t := range taken {
		takenIDs[t.CourseID] = true
		if t.Grade != nil && *t.Grade >= store.PassGrade {
			passedIDs[t.CourseID] = true
		}
	}

	byID := make(map[int64]store.Course, len(catalog))
	for _, c := range catalog {
		if c != nil {
			byID[c.ID] = *c
		}
	}

	set := RecommendationSet{
		Risk:     scoring.ClassifyRiskFractional(pAdjusted),
		MustFix:  []Recommendation{},
		Optimal:  []Recommendation{},
		Cautious: []Recommendation{},
	}

	for _, t := range taken {
		if t.Grade == nil || *t.Grade >= store.PassGrade {
			continue
		}
		c, ok := byID[t.CourseID]
		if !ok {
			c = store.Course{ID: t.CourseID}
		}
		set.MustFix = append(set.MustFix, Recommendation{Course: c, Reason: ReasonRepeat})
	}

	for _, cp := range catalog {
		if cp == nil || takenIDs[cp.ID] {
			continue
		}
		c := *cp
		if !satisfied(prereqs[c.ID], passedIDs) {
			set.Cautious = append(set.Cautious, Recommendation{Course: c, Reason: ReasonPrereqsUnmet})
			continue
		}

		difficulty := c.Difficulty
		if difficulty <= 0 {
			difficulty = store.DefaultDifficulty
		}

		switch set.Risk {
		case scoring.RiskHigh:
			if difficulty <= highRiskMaxDifficulty {
				set.Optimal = append(set.Optimal, Recommendation{Course: c, Reason: ReasonLightHighRisk})
			} else {
				set.Cautious = append(set.Cautious, Recommendation{Course: c, Reason: ReasonHeavyHighRisk})
			}
		case scoring.RiskMedium:
			if difficulty <= mediumRiskMaxDifficulty {
				set.Optimal = append(set.Optimal, Recommendation{Course: c, Reason: ReasonBalancedMedium})
			} else {
				set.Cautious = append(set.Cautious, Recommendation{Course: c, Reason: ReasonDemandingMedium})
			}
		default:
			set.Optimal = append(set.Optimal, Recommendation{Course: c, Reason: ReasonAvailable})
		}
	}

	return set
}

// satisfied reports whether every prerequisite is in passed.
func satisfied(reqs []int64, passed map[int64]bool) bool {
	for _, r := range reqs {
		if !passed[r] {
			return false
		}
	}
	return true
}
