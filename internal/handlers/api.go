// Package handlers exposes the pipeline over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"pilotd/internal/errs"
	"pilotd/internal/gate"
	"pilotd/internal/pilot"
)

// userHeader carries the caller identity established by the fronting proxy.
const userHeader = "X-Pilot-User"

// API wires the pipeline service into HTTP handlers.
type API struct {
	svc  *pilot.Service
	pool *pgxpool.Pool
}

// New initialises the API layer. The pool backs the readiness probe.
func New(svc *pilot.Service, pool *pgxpool.Pool) (*API, error) {
	if svc == nil {
		return nil, errors.New("pipeline service is required")
	}
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &API{svc: svc, pool: pool}, nil
}

// callerID resolves the request identity. Absent or blank headers map to the
// anonymous user, which the session gate rejects downstream.
func callerID(r *http.Request) string {
	if id := r.Header.Get(userHeader); id != "" {
		return id
	}
	return gate.AnonymousUser
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps pipeline sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
