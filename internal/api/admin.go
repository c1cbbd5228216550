package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Trajectory/internal/advisor"
)

type AdminHandler struct {
	service *advisor.Service
}

func NewAdminHandler(svc *advisor.Service) *AdminHandler {
	return &AdminHandler{service: svc}
}

// FactorStats reports min/max/mean/std of each prediction factor over all students.
func (h *AdminHandler) FactorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.FactorStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
