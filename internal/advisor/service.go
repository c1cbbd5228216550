// Package advisor ties storage, scoring, planning and interventions into the
// operations exposed over HTTP and NATS.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Trajectory/internal/config"
	"github.com/MikeSquared-Agency/Trajectory/internal/hermes"
	"github.com/MikeSquared-Agency/Trajectory/internal/interventions"
	"github.com/MikeSquared-Agency/Trajectory/internal/planner"
	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrUnknownCourse   = errors.New("unknown course")
	ErrInvalidOutcome  = errors.New("outcome must be within 0..100")
)

// statsConcurrency bounds per-student reads when aggregating factor statistics.
const statsConcurrency = 8

// Trajectory is the full advisory view of one student.
type Trajectory struct {
	Student         *store.Student            `json:"student"`
	Semester        string                    `json:"semester"`
	Prediction      scoring.PredictionResult  `json:"prediction"`
	Risk            scoring.RiskTier          `json:"risk"`
	Plans           planner.Plans             `json:"plans"`
	Recommendations planner.RecommendationSet `json:"recommendations"`
	Interventions   interventions.Advice      `json:"interventions"`
	SavedPlan       []*store.PlanEntry        `json:"saved_plan"`
}

type Service struct {
	store   store.Store
	hermes  hermes.Client
	engine  *scoring.Engine
	advisor *interventions.Advisor
	cfg     *config.Config
	metrics *metrics
	logger  *slog.Logger
}

// New wires the service. h may be nil when running without NATS; reg may be
// nil to keep metrics unregistered.
func New(s store.Store, h hermes.Client, engine *scoring.Engine, adv *interventions.Advisor, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) *Service {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Service{
		store:   s,
		hermes:  h,
		engine:  engine,
		advisor: adv,
		cfg:     cfg,
		metrics: newMetrics(reg),
		logger:  logger,
	}
}

// NewFromConfig builds the engine and intervention advisor from cfg.
func NewFromConfig(s store.Store, h hermes.Client, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Service, error) {
	w := cfg.Scoring.Weights
	engine, err := scoring.NewEngine(scoring.WeightVector{
		Alpha:   w.Alpha,
		Beta:    w.Beta,
		Gamma:   w.Gamma,
		Delta:   w.Delta,
		Epsilon: w.Epsilon,
	}, cfg.Scoring.AdaptationK, logger)
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}
	tables, err := interventions.LoadTables(cfg.Interventions.TablesPath)
	if err != nil {
		return nil, err
	}
	adv := interventions.NewAdvisor(tables, cfg.Interventions.AttendanceThreshold)
	return New(s, h, engine, adv, cfg, reg, logger), nil
}

// snapshot is the per-student state every operation reads.
type snapshot struct {
	student     *store.Student
	enrollments []*store.Enrollment
}

// load reads the student and its enrollments concurrently, creating missing
// enrollment rows first.
func (s *Service) load(ctx context.Context, studentID int64) (*snapshot, error) {
	if err := s.store.EnsureEnrollments(ctx, studentID); err != nil {
		if st, gerr := s.store.GetStudent(ctx, studentID); gerr == nil && st == nil {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("ensure enrollments: %w", err)
	}

	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.store.GetStudent(gctx, studentID)
		if err != nil {
			return fmt.Errorf("get student: %w", err)
		}
		snap.student = st
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.GetEnrollments(gctx, studentID)
		if err != nil {
			return fmt.Errorf("get enrollments: %w", err)
		}
		snap.enrollments = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if snap.student == nil {
		return nil, ErrStudentNotFound
	}
	return snap, nil
}

// Enrollments returns the student's course rows, creating one per catalog
// course on first access.
func (s *Service) Enrollments(ctx context.Context, studentID int64) ([]*store.Enrollment, error) {
	snap, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return snap.enrollments, nil
}

// Predict computes the success probability, records it in history and
// publishes the result.
func (s *Service) Predict(ctx context.Context, studentID int64) (*scoring.PredictionResult, error) {
	snap, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	result := s.engine.Predict(snap.student, snap.enrollments)
	risk := scoring.ClassifyRisk(finalProbability(result))

	rec := &store.HistoryRecord{
		StudentID: studentID,
		Initial:   result.Initial,
		Adjusted:  result.Adjusted,
		Alpha:     result.Weights.Alpha,
		Beta:      result.Weights.Beta,
		Gamma:     result.Weights.Gamma,
		Delta:     result.Weights.Delta,
		Epsilon:   result.Weights.Epsilon,
		Actual:    result.Actual,
		Error:     result.Error,
	}
	if err := s.store.AppendHistory(ctx, rec); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	s.observe(result, risk)
	s.logger.Info("prediction computed",
		"student_id", studentID,
		"p_initial", result.Initial,
		"adjusted", result.Adjusted != nil,
		"risk", risk,
	)

	s.publish(ctx, hermes.SubjectPredictionComputed(id(studentID)), hermes.PredictionComputedEvent{
		StudentID: studentID,
		Initial:   result.Initial,
		Adjusted:  result.Adjusted,
		Weights:   weightMap(result.Weights),
		Risk:      string(risk),
		Timestamp: time.Now().UTC(),
	})
	if risk == scoring.RiskHigh {
		advice := s.advisor.Build(snap.student, snap.enrollments)
		s.publish(ctx, hermes.SubjectStudentAtRisk(id(studentID)), hermes.StudentAtRiskEvent{
			StudentID: studentID,
			Name:      snap.student.Name,
			P:         *finalProbability(result),
			Risk:      string(risk),
			Caution:   advice.Caution,
			Timestamp: time.Now().UTC(),
		})
	}
	return &result, nil
}

// Trajectory assembles prediction, plans, recommendations, interventions and
// the saved semester plan. It does not append history.
func (s *Service) Trajectory(ctx context.Context, studentID int64, semester string) (*Trajectory, error) {
	semester = s.semester(semester)

	snap, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var (
		catalog []*store.Course
		saved   []*store.PlanEntry
		advice  interventions.Advice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.store.GetCatalog(gctx)
		if err != nil {
			return fmt.Errorf("get catalog: %w", err)
		}
		catalog = c
		return nil
	})
	g.Go(func() error {
		p, err := s.store.GetPlan(gctx, studentID, semester)
		if err != nil {
			return fmt.Errorf("get plan: %w", err)
		}
		saved = p
		return nil
	})
	g.Go(func() error {
		advice = s.advisor.Build(snap.student, snap.enrollments)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := s.engine.Predict(snap.student, snap.enrollments)
	// plans and recommendations follow the adjusted probability only
	p := result.Adjusted

	if saved == nil {
		saved = []*store.PlanEntry{}
	}
	return &Trajectory{
		Student:    snap.student,
		Semester:   semester,
		Prediction: result,
		Risk:       scoring.ClassifyRisk(p),
		Plans:      planner.BuildPlans(snap.enrollments, p, s.cfg.Planning.CurriculumOrder),
		Recommendations: planner.Recommend(
			planner.TakenFromEnrollments(snap.enrollments),
			catalog,
			planner.PrerequisiteMap(catalog),
			p,
		),
		Interventions: advice,
		SavedPlan:     saved,
	}, nil
}

// SavePlan adds catalog courses to the student's semester plan.
func (s *Service) SavePlan(ctx context.Context, studentID int64, semester string, courseIDs []int64) ([]*store.PlanEntry, error) {
	semester = s.semester(semester)

	if _, err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}

	catalog, err := s.store.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}
	known := make(map[int64]bool, len(catalog))
	for _, c := range catalog {
		known[c.ID] = true
	}
	for _, cid := range courseIDs {
		if !known[cid] {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCourse, cid)
		}
	}

	if err := s.store.SavePlan(ctx, studentID, semester, courseIDs); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	s.publish(ctx, hermes.SubjectPlanSaved(id(studentID)), hermes.PlanSavedEvent{
		StudentID: studentID,
		Semester:  semester,
		CourseIDs: courseIDs,
	})
	return s.Plan(ctx, studentID, semester)
}

// RemoveFromPlan drops one course from the semester plan. Removing an absent
// course is not an error.
func (s *Service) RemoveFromPlan(ctx context.Context, studentID int64, semester string, courseID int64) error {
	semester = s.semester(semester)
	if _, err := s.requireStudent(ctx, studentID); err != nil {
		return err
	}
	if err := s.store.RemoveFromPlan(ctx, studentID, semester, courseID); err != nil {
		return fmt.Errorf("remove from plan: %w", err)
	}
	s.publish(ctx, hermes.SubjectPlanRemoved(id(studentID)), hermes.PlanRemovedEvent{
		StudentID: studentID,
		Semester:  semester,
		CourseID:  courseID,
	})
	return nil
}

// Plan lists the saved plan for a semester.
func (s *Service) Plan(ctx context.Context, studentID int64, semester string) ([]*store.PlanEntry, error) {
	if _, err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	plan, err := s.store.GetPlan(ctx, studentID, s.semester(semester))
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		plan = []*store.PlanEntry{}
	}
	return plan, nil
}

// History returns the student's prediction log, oldest first.
func (s *Service) History(ctx context.Context, studentID int64) ([]*store.HistoryRecord, error) {
	if _, err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	hist, err := s.store.ListHistory(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if hist == nil {
		hist = []*store.HistoryRecord{}
	}
	return hist, nil
}

// RecordOutcome stores an observed outcome and re-runs the prediction so the
// adapted weights land in history.
func (s *Service) RecordOutcome(ctx context.Context, studentID int64, actual float64) (*scoring.PredictionResult, error) {
	if math.IsNaN(actual) || actual < 0 || actual > 100 {
		return nil, ErrInvalidOutcome
	}
	st, err := s.requireStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	st.Actual = &actual
	if err := s.store.UpsertStudent(ctx, st); err != nil {
		return nil, fmt.Errorf("store outcome: %w", err)
	}
	result, err := s.Predict(ctx, studentID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, hermes.SubjectOutcomeApplied(id(studentID)), hermes.PredictionComputedEvent{
		StudentID: studentID,
		Initial:   result.Initial,
		Adjusted:  result.Adjusted,
		Weights:   weightMap(result.Weights),
		Risk:      string(scoring.ClassifyRisk(finalProbability(*result))),
		Timestamp: time.Now().UTC(),
	})
	return result, nil
}

// FactorStats aggregates min/max/mean/std of each factor across all students.
func (s *Service) FactorStats(ctx context.Context) (map[string]scoring.ParameterStats, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	samples := make([][]scoring.FactorResult, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, st := range students {
		g.Go(func() error {
			rows, err := s.store.GetEnrollments(gctx, st.ID)
			if err != nil {
				return fmt.Errorf("get enrollments for %d: %w", st.ID, err)
			}
			samples[i] = scoring.ExtractFactors(&scoring.FactorContext{Student: st, Enrollments: rows})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scoring.FactorStats(samples), nil
}

// requireStudent returns ErrStudentNotFound for unknown ids.
func (s *Service) requireStudent(ctx context.Context, studentID int64) (*store.Student, error) {
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if st == nil {
		return nil, ErrStudentNotFound
	}
	return st, nil
}

func (s *Service) observe(result scoring.PredictionResult, risk scoring.RiskTier) {
	kind := "initial"
	if result.Adjusted != nil {
		kind = "adjusted"
		s.metrics.adaptations.Inc()
	}
	s.metrics.predictions.WithLabelValues(kind).Inc()
	s.metrics.riskTiers.WithLabelValues(string(risk)).Inc()
	s.metrics.probability.Observe(*finalProbability(result))
}

func (s *Service) publish(ctx context.Context, subject string, evt interface{}) {
	if s.hermes == nil {
		return
	}
	if err := s.hermes.Publish(ctx, subject, evt); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (s *Service) semester(semester string) string {
	if semester == "" {
		return s.cfg.Planning.DefaultSemester
	}
	return semester
}

// finalProbability prefers the adjusted probability when an outcome was known.
func finalProbability(r scoring.PredictionResult) *float64 {
	if r.Adjusted != nil {
		return r.Adjusted
	}
	p := r.Initial
	return &p
}

func weightMap(w scoring.WeightVector) map[string]float64 {
	return map[string]float64{
		"alpha":   w.Alpha,
		"beta":    w.Beta,
		"gamma":   w.Gamma,
		"delta":   w.Delta,
		"epsilon": w.Epsilon,
	}
}

func id(studentID int64) string {
	return strconv.FormatInt(studentID, 10)
}
