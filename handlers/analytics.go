package handlers

import "net/http"

// Portfolio - GET /api/analytics/portfolio
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := h.Analytics.Portfolio(r.Context(), actor)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// Executive - GET /api/analytics/executive
func (h *Handler) Executive(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	s, err := h.Analytics.Executive(r.Context(), actor)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, s)
}
