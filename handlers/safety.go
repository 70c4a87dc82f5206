package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/models"
)

// ListSafetyReports - GET /api/safety-reports?siteId=
func (h *Handler) ListSafetyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Safety.List(r.Context(), r.URL.Query().Get("siteId"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if reports == nil {
		reports = []models.SafetyReport{}
	}
	respondWithJSON(w, http.StatusOK, reports)
}

// CreateSafetyReport - POST /api/safety-reports
//
// High and Critical reports are escalated after the report is stored.
func (h *Handler) CreateSafetyReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.SafetyReportCreate
	if !decode(w, r, &req) {
		return
	}

	report, err := h.Safety.Create(r.Context(), actor, req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, report)
}
