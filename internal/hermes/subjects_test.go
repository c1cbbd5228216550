package hermes

import (
	"strings"
	"testing"
	"time"
)

func TestSubjectsStayInsideStream(t *testing.T) {
	subjects := []string{
		SubjectOutcomeRecorded,
		SubjectPredictionComputed("7"),
		SubjectStudentAtRisk("7"),
		SubjectPlanSaved("7"),
		SubjectPlanRemoved("7"),
		SubjectOutcomeApplied("7"),
	}
	for _, s := range subjects {
		if !strings.HasPrefix(s, "trajectory.") {
			t.Errorf("subject %q is not captured by %s", s, StreamName)
		}
	}
	if SubjectPlanSaved("42") != "trajectory.student.42.plan.saved" {
		t.Errorf("unexpected subject %s", SubjectPlanSaved("42"))
	}
}

func TestStreamMaxAgeParses(t *testing.T) {
	d, err := time.ParseDuration(StreamMaxAge)
	if err != nil {
		t.Fatal(err)
	}
	if d != 30*24*time.Hour {
		t.Errorf("expected 30 days, got %v", d)
	}
}
