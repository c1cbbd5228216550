package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/MikeSquared-Agency/Trajectory/internal/advisor"
	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

type EnrollmentsHandler struct {
	store   store.Store
	service *advisor.Service
}

func NewEnrollmentsHandler(s store.Store, svc *advisor.Service) *EnrollmentsHandler {
	return &EnrollmentsHandler{store: s, service: svc}
}

func (h *EnrollmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}
	rows, err := h.service.Enrollments(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []*store.Enrollment{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// UpdateEnrollmentRequest edits a row in place. A JSON null grade clears it.
type UpdateEnrollmentRequest struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Grade   json.RawMessage `json:"grade,omitempty"`
}

func (h *EnrollmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid enrollment id")
		return
	}
	var req UpdateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.store.GetEnrollment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "enrollment not found")
		return
	}

	if req.Enabled != nil {
		e.Enabled = *req.Enabled
	}
	if len(req.Grade) > 0 {
		if bytes.Equal(req.Grade, []byte("null")) {
			e.Grade = nil
		} else {
			var raw interface{}
			if err := json.Unmarshal(req.Grade, &raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid grade")
				return
			}
			g, ok := scoring.ParseFloat(raw)
			if !ok || g < 0 || g > 100 {
				writeError(w, http.StatusBadRequest, "grade must be a number within 0..100")
				return
			}
			e.Grade = &g
		}
	}

	if err := h.store.UpdateEnrollment(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}
