// Package handlers exposes the services over HTTP/JSON.
package handlers

import (
	"net/http"

	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/middleware"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/services"
	"github.com/gorilla/mux"
)

// Handler holds the services every endpoint calls into.
type Handler struct {
	Users     *services.UserService
	Sessions  *services.SessionService
	SiteLogs  *services.SiteLogService
	Safety    *services.SafetyService
	Sites     *services.SiteService
	Drafts    *services.DraftService
	Analytics *services.AnalyticsService
	Bootstrap *services.BootstrapService

	log logging.Logger
}

func New(log logging.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{log: log}
}

// NewRouter wires every endpoint under /api. Capability checks run against
// the stored profile loaded by RequireActive.
func NewRouter(h *Handler, authn *middleware.Authenticator) *mux.Router {
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/api/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/bootstrap/status", h.BootstrapStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/bootstrap", h.RunBootstrap).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/signup", h.Signup).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	router.Handle("/api/session", authn.Optional(http.HandlerFunc(h.Session))).Methods(http.MethodGet)

	// Any valid token, with or without a profile
	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(authn.Authenticate)
	authed.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	authed.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
	authed.HandleFunc("/me/onboarding", h.CompleteOnboarding).Methods(http.MethodPost)

	// ACTIVE profile required
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authn.Authenticate, authn.RequireActive)

	api.HandleFunc("/sites", h.ListSites).Methods(http.MethodGet)
	api.HandleFunc("/drafts/{kind}", h.GetDraft).Methods(http.MethodGet)
	api.HandleFunc("/drafts/{kind}", h.SaveDraft).Methods(http.MethodPut)
	api.HandleFunc("/drafts/{kind}", h.ClearDraft).Methods(http.MethodDelete)

	submit := authn.RequireCapability(models.CapSubmitSiteLogs)
	review := authn.RequireCapability(models.CapReviewSiteLogs)

	logs := api.PathPrefix("/site-logs").Subrouter()
	logs.Handle("", authn.RequireAnyCapability(
		models.CapSubmitSiteLogs, models.CapReviewSiteLogs, models.CapViewPortfolio,
	)(http.HandlerFunc(h.ListSiteLogs))).Methods(http.MethodGet)
	logs.Handle("", submit(http.HandlerFunc(h.CreateSiteLog))).Methods(http.MethodPost)
	logs.Handle("/review-queue", review(http.HandlerFunc(h.ReviewQueue))).Methods(http.MethodGet)
	logs.Handle("/{id}", submit(http.HandlerFunc(h.UpdateSiteLogDraft))).Methods(http.MethodPut)
	logs.Handle("/{id}/submit", submit(http.HandlerFunc(h.SubmitSiteLog))).Methods(http.MethodPost)
	logs.Handle("/{id}/revise", submit(http.HandlerFunc(h.ReviseSiteLog))).Methods(http.MethodPost)
	logs.Handle("/{id}/review", review(http.HandlerFunc(h.ReviewSiteLog))).Methods(http.MethodPost)

	reports := api.PathPrefix("/safety-reports").Subrouter()
	reports.Handle("", authn.RequireAnyCapability(
		models.CapSubmitSafetyReports, models.CapViewPortfolio, models.CapViewExecutiveSummary,
	)(http.HandlerFunc(h.ListSafetyReports))).Methods(http.MethodGet)
	reports.Handle("", authn.RequireCapability(models.CapSubmitSafetyReports)(
		http.HandlerFunc(h.CreateSafetyReport))).Methods(http.MethodPost)

	users := api.PathPrefix("/users").Subrouter()
	users.Use(authn.RequireCapability(models.CapManageUsers))
	users.HandleFunc("", h.ListUsers).Methods(http.MethodGet)
	users.HandleFunc("", h.CreateUser).Methods(http.MethodPost)
	users.HandleFunc("/{id}/status", h.UpdateUserStatus).Methods(http.MethodPut)

	analytics := api.PathPrefix("/analytics").Subrouter()
	analytics.Handle("/portfolio", authn.RequireCapability(models.CapViewPortfolio)(
		http.HandlerFunc(h.Portfolio))).Methods(http.MethodGet)
	analytics.Handle("/executive", authn.RequireCapability(models.CapViewExecutiveSummary)(
		http.HandlerFunc(h.Executive))).Methods(http.MethodGet)

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "BuildStream Backend"})
}

// currentUser returns the effective user set by RequireActive.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
	}
	return u, ok
}
