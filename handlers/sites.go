package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
	"github.com/gorilla/mux"
)

// ListSites - GET /api/sites
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Sites.List(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if sites == nil {
		sites = []models.Site{}
	}
	respondWithJSON(w, http.StatusOK, sites)
}

// GetDraft - GET /api/drafts/{kind}
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	body, err := h.Drafts.Load(r.Context(), user.ID, services.DraftKind(mux.Vars(r)["kind"]))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, body)
}

// SaveDraft - PUT /api/drafts/{kind}
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "InvalidInput", "Invalid request payload")
		return
	}
	kind := services.DraftKind(mux.Vars(r)["kind"])
	if err := h.Drafts.Save(r.Context(), user.ID, kind, json.RawMessage(body)); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearDraft - DELETE /api/drafts/{kind}
func (h *Handler) ClearDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.Drafts.Clear(r.Context(), user.ID, services.DraftKind(mux.Vars(r)["kind"])); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
