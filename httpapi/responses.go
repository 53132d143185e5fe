package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"splitpay/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.WithError(err).Error("Failed to encode response body")
		}
	}
}

// respondError maps domain errors onto HTTP statuses. Gateway unavailability
// carries a retry hint since the settlement kept its prior status; ledger
// inconsistency is a bug and is logged at error level before surfacing a 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSplit),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRecipient):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidCredential):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrUnknownUser),
		errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrStaleState):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrGatewayRejected):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrGatewayUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Retry: true})

	case errors.Is(err, domain.ErrLedgerInconsistent):
		log.WithError(err).Error("Ledger inconsistency detected")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})

	default:
		log.WithError(err).Error("Unhandled error in HTTP handler")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
