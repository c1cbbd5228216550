package hermes

const (
	// SubjectOutcomeRecorded carries observed outcomes from an external grading system.
	SubjectOutcomeRecorded = "trajectory.outcome.recorded"

	StreamName   = "TRAJECTORY_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectPredictionComputed(studentID string) string {
	return "trajectory.student." + studentID + ".predicted"
}
func SubjectStudentAtRisk(studentID string) string {
	return "trajectory.student." + studentID + ".at_risk"
}
func SubjectPlanSaved(studentID string) string {
	return "trajectory.student." + studentID + ".plan.saved"
}
func SubjectPlanRemoved(studentID string) string {
	return "trajectory.student." + studentID + ".plan.removed"
}
func SubjectOutcomeApplied(studentID string) string {
	return "trajectory.student." + studentID + ".outcome.applied"
}
