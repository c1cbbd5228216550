package api

import (
	"encoding/json"
	"net/http"

	"github.com/MikeSquared-Agency/Trajectory/internal/advisor"
	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
)

// TrajectoryHandler serves the advisory operations for one student.
type TrajectoryHandler struct {
	service *advisor.Service
}

func NewTrajectoryHandler(svc *advisor.Service) *TrajectoryHandler {
	return &TrajectoryHandler{service: svc}
}

func (h *TrajectoryHandler) Predict(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	res, err := h.service.Predict(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TrajectoryHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	hist, err := h.service.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *TrajectoryHandler) Trajectory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	tr, err := h.service.Trajectory(r.Context(), id, r.URL.Query().Get("semester"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

type OutcomeRequest struct {
	Actual interface{} `json:"actual"`
}

// Outcome records an observed result and returns the adapted prediction.
func (h *TrajectoryHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actual, ok := scoring.ParseFloat(req.Actual)
	if !ok {
		writeError(w, http.StatusBadRequest, "actual must be a number")
		return
	}
	res, err := h.service.RecordOutcome(r.Context(), id, actual)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type SavePlanRequest struct {
	Semester  string  `json:"semester,omitempty"`
	CourseIDs []int64 `json:"course_ids"`
}

func (h *TrajectoryHandler) SavePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	var req SavePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.CourseIDs) == 0 {
		writeError(w, http.StatusBadRequest, "course_ids required")
		return
	}
	plan, err := h.service.SavePlan(r.Context(), id, req.Semester, req.CourseIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *TrajectoryHandler) Plan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	plan, err := h.service.Plan(r.Context(), id, r.URL.Query().Get("semester"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *TrajectoryHandler) RemoveFromPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	courseID, ok := idParam(r, "course_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}
	if err := h.service.RemoveFromPlan(r.Context(), id, r.URL.Query().Get("semester"), courseID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
