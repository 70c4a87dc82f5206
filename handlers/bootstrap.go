package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
)

type BootstrapResponse struct {
	Site  *models.Site `json:"site"`
	Admin *models.User `json:"admin"`
}

// BootstrapStatus - GET /api/bootstrap/status
func (h *Handler) BootstrapStatus(w http.ResponseWriter, r *http.Request) {
	required, err := h.Bootstrap.Required(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"required": required})
}

// RunBootstrap - POST /api/bootstrap
//
// Only succeeds on an empty installation.
func (h *Handler) RunBootstrap(w http.ResponseWriter, r *http.Request) {
	var req services.BootstrapInput
	if !decode(w, r, &req) {
		return
	}
	site, admin, err := h.Bootstrap.Run(r.Context(), req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, BootstrapResponse{Site: site, Admin: admin})
}
