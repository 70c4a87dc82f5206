package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Mike-mible/cjic/middleware"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
)

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
	Route     models.Route `json:"route"`
}

// Signup registers a self-service account and signs it in. The response
// carries no token when only the sign in failed.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var signup models.UserSignup
	if !decode(w, r, &signup) {
		return
	}

	user, err := h.Users.Register(r.Context(), services.RegisterInput{
		Name:     signup.Name,
		Email:    signup.Email,
		Password: signup.Password,
		Role:     signup.Role,
		Phone:    signup.Phone,
		SiteID:   signup.SiteID,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	session, err := h.Users.Authenticate(r.Context(), user.Email, signup.Password)
	if err != nil {
		h.log.Warn(r.Context(), "sign in after signup failed", "user_id", user.ID, "error", err)
		respondWithJSON(w, http.StatusCreated, AuthResponse{
			User:  user,
			Route: models.Route{Screen: models.ScreenUnauthenticated, Capabilities: []models.Capability{}},
		})
		return
	}
	h.respondWithSession(w, r, http.StatusCreated, session)
}

// Login exchanges credentials for a token. A credential without a profile
// still gets its token, with the route pointing at the retry screen.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var login models.UserLogin
	if !decode(w, r, &login) {
		return
	}
	if strings.TrimSpace(login.Email) == "" || login.Password == "" {
		respondWithError(w, http.StatusBadRequest, "InvalidInput", "Email and password are required")
		return
	}

	session, err := h.Users.Authenticate(r.Context(), login.Email, login.Password)
	if err != nil && !(errors.Is(err, services.ErrProfileMissing) && session != nil) {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithSession(w, r, http.StatusOK, session)
}

func (h *Handler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, session *services.Session) {
	route := models.Route{
		Screen:       models.ScreenNoProfile,
		Capabilities: []models.Capability{},
		Actions:      []string{services.ActionRetry, services.ActionSignOut},
		Error:        services.ErrProfileMissing.Error(),
	}
	if session.User != nil {
		var err error
		if route, err = h.Sessions.Resolve(r.Context(), session.User.ID, ""); err != nil {
			h.respondWithServiceError(w, r, err)
			return
		}
	}
	respondWithJSON(w, status, AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
		Route:     route,
	})
}

// Logout revokes the presented token until it would have expired.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
		return
	}
	if err := h.Sessions.Logout(r.Context(), id.TokenID, id.ExpiresAt); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the navigation route for the caller. Anonymous callers
// get the unauthenticated route.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	identityID := ""
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		identityID = id.ID
	}
	impersonate := strings.TrimSpace(r.Header.Get(middleware.ImpersonateHeader))
	if identityID == "" {
		impersonate = ""
	}

	route, err := h.Sessions.Resolve(r.Context(), identityID, impersonate)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, route)
}
