package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
	"github.com/gorilla/mux"
)

// ListUsers - GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondWithJSON(w, http.StatusOK, users)
}

// CreateUser - POST /api/users
//
// Administrators may create any role, including the admin tier.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UserSignup
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Users.CreateAccount(r.Context(), actor, services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Phone:    req.Phone,
		SiteID:   req.SiteID,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// UpdateUserStatus - PUT /api/users/{id}/status
func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.StatusUpdate
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Users.SetStatus(r.Context(), actor, mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
