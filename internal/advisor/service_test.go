package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Trajectory/internal/config"
	"github.com/MikeSquared-Agency/Trajectory/internal/hermes"
	"github.com/MikeSquared-Agency/Trajectory/internal/planner"
	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

type published struct {
	subject string
	data    interface{}
}

type fakeHermes struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]hermes.Handler
	durables  []string
	failWith  error
}

func newFakeHermes() *fakeHermes {
	return &fakeHermes{handlers: make(map[string]hermes.Handler)}
}

func (f *fakeHermes) Publish(_ context.Context, subject string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{subject, data})
	return nil
}

func (f *fakeHermes) Consume(_ context.Context, durable, subject string, handler hermes.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durables = append(f.durables, durable)
	f.handlers[subject] = handler
	return nil
}

func (f *fakeHermes) Close() {}

func (f *fakeHermes) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, p := range f.published {
		out[i] = p.subject
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Scoring: config.ScoringConfig{
			Weights:     config.ScoringWeights{Alpha: 0.35, Beta: 0.25, Gamma: 0.20, Delta: 0.15, Epsilon: 0.05},
			AdaptationK: 0.9,
		},
		Planning:      config.PlanningConfig{DefaultSemester: "2025-2"},
		Interventions: config.InterventionsConfig{AttendanceThreshold: 0.6},
	}
}

func f64(v float64) *float64 { return &v }

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	hermes *fakeHermes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCatalog(ctx, store.DefaultCourses))

	h := newFakeHermes()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewFromConfig(s, h, testConfig(), prometheus.NewRegistry(), logger)
	require.NoError(t, err)
	return &fixture{svc: svc, store: s, hermes: h}
}

// addStudent creates a student whose initial probability is 0.355: high risk.
func (f *fixture) addStudent(t *testing.T, name string) *store.Student {
	t.Helper()
	st := &store.Student{
		Name:     name,
		Gcurrent: f64(80),
		Gmin:     f64(0),
		Gmax:     f64(100),
		Ar:       f64(0.3),
	}
	require.NoError(t, f.store.UpsertStudent(context.Background(), st))
	return st
}

func TestEnrollmentsCreatedOnFirstAccess(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")

	rows, err := f.svc.Enrollments(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Len(t, rows, len(store.DefaultCourses))

	again, err := f.svc.Enrollments(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Len(t, again, len(rows))
}

func TestUnknownStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Predict(ctx, 404)
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.Trajectory(ctx, 404, "")
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.History(ctx, 404)
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.SavePlan(ctx, 404, "", []int64{1})
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.RecordOutcome(ctx, 404, 80)
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.Plan(ctx, 404, "")
	assert.ErrorIs(t, err, ErrStudentNotFound)
	err = f.svc.RemoveFromPlan(ctx, 404, "", 1)
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.Empty(t, f.hermes.subjects())
}

func TestPredictRecordsHistoryAndPublishes(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	res, err := f.svc.Predict(ctx, st.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.355, res.Initial, 1e-9)
	assert.Nil(t, res.Adjusted)
	assert.Len(t, res.Factors, 5)

	hist, err := f.svc.History(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.InDelta(t, res.Initial, hist[0].Initial, 1e-9)
	assert.Equal(t, 0.35, hist[0].Alpha)

	id := "1"
	assert.Equal(t, []string{
		hermes.SubjectPredictionComputed(id),
		hermes.SubjectStudentAtRisk(id),
	}, f.hermes.subjects())

	atRisk, ok := f.hermes.published[1].data.(hermes.StudentAtRiskEvent)
	require.True(t, ok)
	assert.Equal(t, "Ann", atRisk.Name)
	assert.NotEmpty(t, atRisk.Caution)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.predictions.WithLabelValues("initial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.riskTiers.WithLabelValues(string(scoring.RiskHigh))))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.svc.metrics.adaptations))
}

func TestPredictSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.hermes.failWith = errors.New("nats down")
	st := f.addStudent(t, "Ann")

	_, err := f.svc.Predict(context.Background(), st.ID)
	require.NoError(t, err)
}

func TestPredictWithoutHermes(t *testing.T) {
	f := newFixture(t)
	f.svc.hermes = nil
	st := f.addStudent(t, "Ann")

	_, err := f.svc.Predict(context.Background(), st.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetupSubscriptions(context.Background()))
}

func TestTrajectoryIsReadOnly(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	tr, err := f.svc.Trajectory(ctx, st.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-2", tr.Semester)
	assert.Equal(t, "Ann", tr.Student.Name)
	assert.InDelta(t, 0.355, tr.Prediction.Initial, 1e-9)

	// no outcome: plans and recommendations fall back to their nil-probability tiers
	assert.Equal(t, scoring.RiskMedium, tr.Risk)
	assert.Equal(t, scoring.RiskMedium, tr.Plans.Recommended.Risk)
	assert.Equal(t, scoring.RiskLow, tr.Recommendations.Risk)
	assert.NotNil(t, tr.SavedPlan)
	assert.Empty(t, tr.SavedPlan)
	assert.NotEmpty(t, tr.Interventions.Recommended)
	assert.Len(t, tr.Recommendations.Optimal, len(store.DefaultCourses))

	hist, err := f.svc.History(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
	assert.Empty(t, f.hermes.subjects())
}

func recommendedNames(recs []planner.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Course.Name)
	}
	return out
}

func TestTrajectoryRecommendations(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	catalog, err := f.store.GetCatalog(ctx)
	require.NoError(t, err)
	byName := make(map[string]int64, len(catalog))
	for _, c := range catalog {
		byName[c.Name] = c.ID
	}
	require.NoError(t, f.store.AddPrerequisite(ctx, byName["Algorithms"], byName["Programming"]))

	rows, err := f.svc.Enrollments(ctx, st.ID)
	require.NoError(t, err)
	for _, e := range rows {
		if e.Name == "Mathematics" {
			e.Enabled = true
			e.Grade = f64(40)
			require.NoError(t, f.store.UpdateEnrollment(ctx, e))
		}
	}

	tr, err := f.svc.Trajectory(ctx, st.ID, "")
	require.NoError(t, err)
	rec := tr.Recommendations

	assert.Equal(t, []string{"Mathematics"}, recommendedNames(rec.MustFix))
	assert.Equal(t, []string{"Algorithms"}, recommendedNames(rec.Cautious))
	assert.Equal(t, planner.ReasonPrereqsUnmet, rec.Cautious[0].Reason)

	optimal := recommendedNames(rec.Optimal)
	assert.Len(t, optimal, len(store.DefaultCourses)-2)
	assert.Contains(t, optimal, "Programming")
	assert.NotContains(t, optimal, "Mathematics")
	assert.NotContains(t, optimal, "Algorithms")
}

func TestTrajectoryUsesAdjustedProbability(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	st.Actual = f64(20)
	require.NoError(t, f.store.UpsertStudent(context.Background(), st))

	tr, err := f.svc.Trajectory(context.Background(), st.ID, "2026-1")
	require.NoError(t, err)
	require.NotNil(t, tr.Prediction.Adjusted)
	assert.Equal(t, scoring.ClassifyRisk(tr.Prediction.Adjusted), tr.Risk)
	assert.Equal(t, scoring.RiskHigh, tr.Plans.Recommended.Risk)
	assert.Equal(t, "2026-1", tr.Semester)
}

func TestSavePlanLifecycle(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	catalog, err := f.store.GetCatalog(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(catalog), 2)

	_, err = f.svc.SavePlan(ctx, st.ID, "", []int64{catalog[0].ID, 9999})
	assert.ErrorIs(t, err, ErrUnknownCourse)

	plan, err := f.svc.SavePlan(ctx, st.ID, "", []int64{catalog[0].ID, catalog[1].ID})
	require.NoError(t, err)
	assert.Len(t, plan, 2)
	for _, p := range plan {
		assert.Equal(t, "2025-2", p.Semester)
		assert.Equal(t, store.PlanStatusPlanned, p.Status)
	}

	// saving the same course twice keeps one row
	plan, err = f.svc.SavePlan(ctx, st.ID, "", []int64{catalog[0].ID})
	require.NoError(t, err)
	assert.Len(t, plan, 2)

	require.NoError(t, f.svc.RemoveFromPlan(ctx, st.ID, "", catalog[0].ID))
	require.NoError(t, f.svc.RemoveFromPlan(ctx, st.ID, "", catalog[0].ID))
	plan, err = f.svc.Plan(ctx, st.ID, "")
	require.NoError(t, err)
	assert.Len(t, plan, 1)

	other, err := f.svc.Plan(ctx, st.ID, "2030-1")
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)

	assert.Contains(t, f.hermes.subjects(), hermes.SubjectPlanSaved("1"))
	assert.Contains(t, f.hermes.subjects(), hermes.SubjectPlanRemoved("1"))
}

func TestRecordOutcomeAdaptsWeights(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	res, err := f.svc.RecordOutcome(ctx, st.ID, 90)
	require.NoError(t, err)
	require.NotNil(t, res.Adjusted)
	require.NotNil(t, res.Actual)
	assert.InDelta(t, 0.9, *res.Actual, 1e-9)
	assert.Greater(t, res.Weights.Alpha, 0.35)
	assert.InDelta(t, 1.0, res.Weights.Sum(), 1e-9)

	saved, err := f.store.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.Actual)
	assert.Equal(t, 90.0, *saved.Actual)

	hist, err := f.svc.History(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.NotNil(t, hist[0].Adjusted)
	assert.Equal(t, res.Weights.Alpha, hist[0].Alpha)

	assert.Contains(t, f.hermes.subjects(), hermes.SubjectOutcomeApplied("1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.adaptations))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.predictions.WithLabelValues("adjusted")))
}

func TestRecordOutcomeRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")

	for _, v := range []float64{-1, 100.5} {
		_, err := f.svc.RecordOutcome(context.Background(), st.ID, v)
		assert.ErrorIs(t, err, ErrInvalidOutcome)
	}
}

func TestOutcomeSubscription(t *testing.T) {
	f := newFixture(t)
	st := f.addStudent(t, "Ann")
	ctx := context.Background()

	require.NoError(t, f.svc.SetupSubscriptions(ctx))
	assert.Equal(t, []string{OutcomeConsumer}, f.hermes.durables)
	handler := f.hermes.handlers[hermes.SubjectOutcomeRecorded]
	require.NotNil(t, handler)

	assert.NoError(t, handler(hermes.SubjectOutcomeRecorded, []byte(`{not json`)))
	assert.NoError(t, handler(hermes.SubjectOutcomeRecorded, []byte(`{"student_id":404,"actual":0.8}`)))
	assert.NoError(t, handler(hermes.SubjectOutcomeRecorded, []byte(`{"student_id":1,"actual":250}`)))
	assert.NoError(t, handler(hermes.SubjectOutcomeRecorded, []byte(`{"student_id":1,"actual":0.8,"source":"registrar"}`)))

	outcomes := f.svc.metrics.outcomes
	assert.Equal(t, 2.0, testutil.ToFloat64(outcomes.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("unknown_student")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("applied")))

	saved, err := f.store.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.Actual)
	assert.Equal(t, 0.8, *saved.Actual)
}

func TestFactorStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.FactorStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultParameterStats(), empty[scoring.FactorAcademic])

	f.addStudent(t, "Ann")
	other := &store.Student{Name: "Bob", Gcurrent: f64(40), Gmin: f64(0), Gmax: f64(100), Ar: f64(0.9)}
	require.NoError(t, f.store.UpsertStudent(ctx, other))

	stats, err := f.svc.FactorStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 5)

	ga := stats[scoring.FactorAcademic]
	assert.Equal(t, 2, ga.Count)
	assert.InDelta(t, 0.4, ga.Min, 1e-9)
	assert.InDelta(t, 0.8, ga.Max, 1e-9)
	assert.InDelta(t, 0.6, ga.Mean, 1e-9)

	ar := stats[scoring.FactorAttendance]
	assert.InDelta(t, 0.3, ar.Min, 1e-9)
	assert.InDelta(t, 0.9, ar.Max, 1e-9)
}
