// Package apihttp holds response helpers shared by the interface handlers.
package apihttp

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/bank"
	"energy-subsidy/internal/identity"
	oracle "energy-subsidy/internal/oracle/domain"
	payout "energy-subsidy/internal/payout/domain"
	pool "energy-subsidy/internal/pool/domain"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a service error to an HTTP status and writes a JSON error
// body.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusForError(err), map[string]string{"error": err.Error()})
}

// StatusForError maps domain sentinels to HTTP statuses. Unknown errors are
// internal.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, payout.ErrNotOwner),
		errors.Is(err, oracle.ErrUnauthorizedSigner),
		errors.Is(err, oracle.ErrSignatureInvalid):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrDepositorNotFound),
		errors.Is(err, payout.ErrInstallationNotFound),
		errors.Is(err, oracle.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, oracle.ErrAlreadyReported),
		errors.Is(err, payout.ErrAlreadyClaimed),
		errors.Is(err, pool.ErrAlreadyFrozen),
		errors.Is(err, pool.ErrNotFrozen),
		errors.Is(err, oracle.ErrAlreadyPaused),
		errors.Is(err, oracle.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, pool.ErrFrozen), errors.Is(err, oracle.ErrPaused):
		return http.StatusLocked
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrSelfTransfer),
		errors.Is(err, identity.ErrInvalidAddress),
		errors.Is(err, payout.ErrInvalidRate),
		errors.Is(err, payout.ErrInvalidCapacity),
		errors.Is(err, payout.ErrAmountMismatch),
		errors.Is(err, oracle.ErrInvalidCapacity),
		errors.Is(err, bank.ErrInvalidTransfer):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrCapacityExceeded),
		errors.Is(err, oracle.ErrWindowViolation),
		errors.Is(err, oracle.ErrCapacityNotRegistered),
		errors.Is(err, oracle.ErrPlausibilityViolation),
		errors.Is(err, payout.ErrInsufficientOutput),
		errors.Is(err, payout.ErrRateNotSet),
		errors.Is(err, payout.ErrPoolExhausted),
		errors.Is(err, payout.ErrOverflow),
		errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewHealthzHandler reports readiness, pinging the database when one is
// configured.
func NewHealthzHandler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
