package hermes

import "time"

type PredictionComputedEvent struct {
	StudentID int64              `json:"student_id"`
	Initial   float64            `json:"p_initial"`
	Adjusted  *float64           `json:"p_adjusted,omitempty"`
	Weights   map[string]float64 `json:"weights"`
	Risk      string             `json:"risk"`
	Timestamp time.Time          `json:"timestamp"`
}

type StudentAtRiskEvent struct {
	StudentID int64     `json:"student_id"`
	Name      string    `json:"name"`
	P         float64   `json:"p"`
	Risk      string    `json:"risk"`
	Caution   []string  `json:"caution,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type PlanSavedEvent struct {
	StudentID int64   `json:"student_id"`
	Semester  string  `json:"semester"`
	CourseIDs []int64 `json:"course_ids"`
}

type PlanRemovedEvent struct {
	StudentID int64  `json:"student_id"`
	Semester  string `json:"semester"`
	CourseID  int64  `json:"course_id"`
}

// OutcomeRecordedEvent is consumed, not published. Actual accepts 0–1 or 0–100.
type OutcomeRecordedEvent struct {
	StudentID int64   `json:"student_id"`
	Actual    float64 `json:"actual"`
	Source    string  `json:"source,omitempty"`
}
