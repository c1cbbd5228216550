package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Trajectory/internal/advisor"
	"github.com/MikeSquared-Agency/Trajectory/internal/config"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

func NewRouter(svc *advisor.Service, s store.Store, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMin))

	students := NewStudentsHandler(s)
	enrollments := NewEnrollmentsHandler(s, svc)
	trajectory := NewTrajectoryHandler(svc)
	courses := NewCoursesHandler(s)
	admin := NewAdminHandler(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/students", students.List)
		r.Post("/students", students.Create)
		r.Get("/students/{id}", students.Get)
		r.Put("/students/{id}", students.Update)
		r.Delete("/students/{id}", students.Delete)

		r.Get("/students/{id}/enrollments", enrollments.List)
		r.Patch("/enrollments/{id}", enrollments.Update)

		r.Post("/students/{id}/predict", trajectory.Predict)
		r.Post("/students/{id}/outcome", trajectory.Outcome)
		r.Get("/students/{id}/history", trajectory.History)
		r.Get("/students/{id}/trajectory", trajectory.Trajectory)
		r.Get("/students/{id}/plan", trajectory.Plan)
		r.Post("/students/{id}/plan", trajectory.SavePlan)
		r.Delete("/students/{id}/plan/{course_id}", trajectory.RemoveFromPlan)

		r.Get("/courses", courses.List)
		r.Post("/courses", courses.Create)
		r.Post("/courses/{id}/prerequisites", courses.AddPrerequisite)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Get("/admin/factor-stats", admin.FactorStats)
		})
	})

	return r
}

func NewMetricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
