package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

type StudentsHandler struct {
	store store.Store
}

func NewStudentsHandler(s store.Store) *StudentsHandler {
	return &StudentsHandler{store: s}
}

// StudentRequest accepts numbers or numeric strings for every metric.
type StudentRequest struct {
	Name     string      `json:"name"`
	Gcurrent interface{} `json:"g_current,omitempty"`
	Gmin     interface{} `json:"g_min,omitempty"`
	Gmax     interface{} `json:"g_max,omitempty"`
	Ar       interface{} `json:"ar,omitempty"`
	Ls       interface{} `json:"ls,omitempty"`
	Ph       interface{} `json:"ph,omitempty"`
	Actual   interface{} `json:"actual,omitempty"`
}

func (req *StudentRequest) apply(st *store.Student) {
	if name := strings.TrimSpace(req.Name); name != "" {
		st.Name = name
	}
	st.Gcurrent = scoring.FloatPtr(req.Gcurrent)
	st.Gmin = scoring.FloatPtr(req.Gmin)
	st.Gmax = scoring.FloatPtr(req.Gmax)
	st.Ar = scoring.FloatPtr(req.Ar)
	st.Ls = scoring.FloatPtr(req.Ls)
	st.Ph = scoring.FloatPtr(req.Ph)
	st.Actual = scoring.FloatPtr(req.Actual)
}

func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if students == nil {
		students = []*store.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	st := &store.Student{}
	req.apply(st)
	if err := h.store.UpsertStudent(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Update replaces every metric; omitted ones become unknown. An empty name keeps the stored one.
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}
	var req StudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.apply(st)
	if err := h.store.UpsertStudent(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteStudent(r.Context(), st.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudentsHandler) load(w http.ResponseWriter, r *http.Request) (*store.Student, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return nil, false
	}
	st, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return nil, false
	}
	return st, true
}
