package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func retryAfterString(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// mapError translates vault errors to HTTP responses. Messages from the
// vault package never contain secrets; unexpected errors are logged and
// reported generically.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *vault.LockedOutError
	var policy *vault.PolicyError

	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", retryAfterString(locked.Remaining))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:             err.Error(),
			RetryAfterSeconds: int(locked.Remaining.Round(time.Second) / time.Second),
		})
	case errors.As(err, &policy):
		missing := make([]string, len(policy.Missing))
		for i, m := range policy.Missing {
			missing[i] = string(m)
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Missing: missing})
	case errors.Is(err, vault.ErrWrongPassphrase), errors.Is(err, vault.ErrSessionLocked):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, vault.ErrNoVault):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrInvalidFormat), errors.Is(err, vault.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vault.ErrCorruptVault), errors.Is(err, vault.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("route", routePattern(r)).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
