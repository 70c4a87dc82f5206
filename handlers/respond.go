package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Mike-mible/cjic/services"
)

// maxBodyBytes caps request bodies. Drafts are the largest payload.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds is checked in order. The first kind the error wraps wins.
var errorKinds = []errorKind{
	{services.ErrDuplicateAccount, http.StatusConflict, "DuplicateAccount"},
	{services.ErrWeakCredential, http.StatusBadRequest, "WeakCredential"},
	{services.ErrInvalidCredential, http.StatusUnauthorized, "InvalidCredential"},
	{services.ErrProfileMissing, http.StatusNotFound, "ProfileMissing"},
	{services.ErrIllegalTransition, http.StatusConflict, "IllegalTransition"},
	{services.ErrNotReviewable, http.StatusConflict, "NotReviewable"},
	{services.ErrMissingSite, http.StatusBadRequest, "MissingSite"},
	{services.ErrAlreadyBootstrapped, http.StatusConflict, "AlreadyBootstrapped"},
	{services.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{services.ErrNotFound, http.StatusNotFound, "NotFound"},
	{services.ErrInvalidInput, http.StatusBadRequest, "InvalidInput"},
	{services.ErrTimeout, http.StatusGatewayTimeout, "Timeout"},
	{services.ErrPersistence, http.StatusInternalServerError, "Persistence"},
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondWithServiceError writes the status for err's kind. Storage
// details never reach the client.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		msg := err.Error()
		if k.status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
			msg = k.err.Error()
		}
		respondWithError(w, k.status, k.code, msg)
		return
	}
	h.log.Error(r.Context(), "unexpected error", "path", r.URL.Path, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Persistence", services.ErrPersistence.Error())
}

// decode reads a JSON body into dst and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "InvalidInput", "Invalid request payload")
		return false
	}
	return true
}
