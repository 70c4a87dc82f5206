package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/middleware"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
)

// GetMe - GET /api/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
		return
	}
	user, err := h.Users.Profile(r.Context(), id.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// CompleteOnboarding - POST /api/me/onboarding
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
		return
	}
	var req models.Onboarding
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Users.CompleteOnboarding(r.Context(), id.ID, services.OnboardingInput{
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		SiteID:   req.SiteID,
		Bio:      req.Bio,
		Password: req.Password,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
