package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

type CoursesHandler struct {
	store store.Store
}

func NewCoursesHandler(s store.Store) *CoursesHandler {
	return &CoursesHandler{store: s}
}

func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.store.GetCatalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if catalog == nil {
		catalog = []*store.Course{}
	}
	writeJSON(w, http.StatusOK, catalog)
}

type CreateCourseRequest struct {
	Name          string      `json:"name"`
	Difficulty    interface{} `json:"difficulty,omitempty"`
	Prerequisites []int64     `json:"prerequisites,omitempty"`
}

func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	catalog, err := h.store.GetCatalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	known := make(map[int64]bool, len(catalog))
	for _, c := range catalog {
		if c.Name == name {
			writeError(w, http.StatusConflict, "course already exists")
			return
		}
		known[c.ID] = true
	}
	for _, p := range req.Prerequisites {
		if !known[p] {
			writeError(w, http.StatusBadRequest, "unknown prerequisite")
			return
		}
	}

	course := &store.Course{Name: name, Difficulty: store.DefaultDifficulty}
	if d, ok := scoring.ParseFloat(req.Difficulty); ok && d > 0 {
		course.Difficulty = d
	}
	if err := h.store.CreateCourse(r.Context(), course); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, p := range req.Prerequisites {
		if err := h.store.AddPrerequisite(r.Context(), course.ID, p); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		course.Prerequisites = append(course.Prerequisites, p)
	}
	writeJSON(w, http.StatusCreated, course)
}

type AddPrerequisiteRequest struct {
	PrerequisiteID int64 `json:"prerequisite_id"`
}

func (h *CoursesHandler) AddPrerequisite(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}
	var req AddPrerequisiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PrerequisiteID == id {
		writeError(w, http.StatusBadRequest, "a course cannot require itself")
		return
	}

	catalog, err := h.store.GetCatalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var course *store.Course
	prereqKnown := false
	for _, c := range catalog {
		if c.ID == id {
			course = c
		}
		if c.ID == req.PrerequisiteID {
			prereqKnown = true
		}
	}
	if course == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}
	if !prereqKnown {
		writeError(w, http.StatusBadRequest, "unknown prerequisite")
		return
	}

	if err := h.store.AddPrerequisite(r.Context(), id, req.PrerequisiteID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	prereqs, err := h.store.GetPrerequisites(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	course.Prerequisites = prereqs
	writeJSON(w, http.StatusOK, course)
}
