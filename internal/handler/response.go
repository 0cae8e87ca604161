package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prn-tf/leonidas-directory/internal/domain"
)

// Response is the uniform envelope of every API reply. Exactly one of
// Data and Error is set.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Error: message})
}

// writeDomainError maps a core error onto an HTTP status and the
// envelope. Messages come from the sentinel texts so callers see the
// same wording regardless of transport.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAdminRequired),
		errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, sentinelMessage(err))
	case errors.Is(err, domain.ErrNoPermission):
		writeError(w, http.StatusForbidden, sentinelMessage(err))
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, sentinelMessage(err))
	case errors.Is(err, domain.ErrLoginExists),
		errors.Is(err, domain.ErrLoginTaken):
		writeError(w, http.StatusConflict, sentinelMessage(err))
	case errors.Is(err, domain.ErrUserRevoked):
		writeError(w, http.StatusUnprocessableEntity, sentinelMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// sentinelMessage unwraps to the sentinel's own text so wrapping
// context (driver errors and the like) never leaks to clients.
func sentinelMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrAdminRequired,
		domain.ErrInvalidCredentials,
		domain.ErrNoPermission,
		domain.ErrUserNotFound,
		domain.ErrLoginExists,
		domain.ErrLoginTaken,
		domain.ErrUserRevoked,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
