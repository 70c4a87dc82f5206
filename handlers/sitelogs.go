package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/models"
	"github.com/gorilla/mux"
)

// ListSiteLogs - GET /api/site-logs?siteId=&status=
func (h *Handler) ListSiteLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := h.SiteLogs.List(r.Context(), models.SiteLogFilter{
		SiteID: q.Get("siteId"),
		Status: models.LogStatus(q.Get("status")),
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithLogs(w, logs)
}

// CreateSiteLog - POST /api/site-logs
func (h *Handler) CreateSiteLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.SiteLogCreate
	if !decode(w, r, &req) {
		return
	}

	log, err := h.SiteLogs.Create(r.Context(), actor, req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, log)
}

// UpdateSiteLogDraft - PUT /api/site-logs/{id}
func (h *Handler) UpdateSiteLogDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.SiteLogCreate
	if !decode(w, r, &req) {
		return
	}

	log, err := h.SiteLogs.SaveDraft(r.Context(), actor, mux.Vars(r)["id"], req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}

// SubmitSiteLog - POST /api/site-logs/{id}/submit
func (h *Handler) SubmitSiteLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	log, err := h.SiteLogs.Submit(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}

// ReviseSiteLog - POST /api/site-logs/{id}/revise
func (h *Handler) ReviseSiteLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	log, err := h.SiteLogs.Revise(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}

// ReviewQueue - GET /api/site-logs/review-queue
func (h *Handler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	logs, err := h.SiteLogs.ReviewQueue(r.Context(), reviewer)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithLogs(w, logs)
}

// ReviewSiteLog - POST /api/site-logs/{id}/review
func (h *Handler) ReviewSiteLog(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.SiteLogReview
	if !decode(w, r, &req) {
		return
	}

	log, err := h.SiteLogs.Review(r.Context(), reviewer, mux.Vars(r)["id"], req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}

func respondWithLogs(w http.ResponseWriter, logs []models.SiteLog) {
	if logs == nil {
		logs = []models.SiteLog{}
	}
	respondWithJSON(w, http.StatusOK, logs)
}
