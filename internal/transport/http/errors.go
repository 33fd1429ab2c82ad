package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openvenue/admission/internal/domain"
)

const (
	codeMethodNotAllowed          = "method_not_allowed"
	codeNotFound                  = "not_found"
	codeInvalidRequestBody        = "invalid_request_body"
	codeInvalidID                 = "invalid_id"
	codeInvalidPolicy             = "invalid_policy"
	codePolicyExists              = "policy_exists"
	codePolicyNotFound            = "policy_not_found"
	codeCapacityExceeded          = "capacity_exceeded"
	codeDuplicateRegistration     = "duplicate_registration"
	codeRegistrationNotFound      = "registration_not_found"
	codeInvalidTransition         = "invalid_transition"
	codeReservationExpired        = "reservation_expired"
	codeAlreadyWaitlisted         = "already_waitlisted"
	codeNotWaitlisted             = "not_waitlisted"
	codeInsufficientGroupCapacity = "insufficient_group_capacity"
	codeGroupNotFound             = "group_not_found"
	codeGroupFull                 = "group_full"
	codeInvalidPartySize          = "invalid_party_size"
	codeTransientConflict         = "transient_conflict"
	codeForbidden                 = "forbidden"
	codeInternalError             = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps a domain error onto the wire. Everything the taxonomy
// names changes what the caller should do next, so nothing is swallowed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidPolicy), errors.Is(err, domain.ErrInvalidPartySize):
		status, code := http.StatusBadRequest, codeInvalidPolicy
		if errors.Is(err, domain.ErrInvalidPartySize) {
			code = codeInvalidPartySize
		}
		writeError(w, status, code, err.Error())
	case errors.Is(err, domain.ErrPolicyExists):
		writeError(w, http.StatusConflict, codePolicyExists, err.Error())
	case errors.Is(err, domain.ErrPolicyNotFound):
		writeError(w, http.StatusNotFound, codePolicyNotFound, err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, codeCapacityExceeded, err.Error())
	case errors.Is(err, domain.ErrDuplicateRegistration):
		writeError(w, http.StatusConflict, codeDuplicateRegistration, err.Error())
	case errors.Is(err, domain.ErrRegistrationNotFound):
		writeError(w, http.StatusNotFound, codeRegistrationNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationExpired):
		writeError(w, http.StatusConflict, codeReservationExpired, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrAlreadyWaitlisted):
		writeError(w, http.StatusConflict, codeAlreadyWaitlisted, err.Error())
	case errors.Is(err, domain.ErrNotWaitlisted):
		writeError(w, http.StatusNotFound, codeNotWaitlisted, err.Error())
	case errors.Is(err, domain.ErrInsufficientGroupCapacity):
		writeError(w, http.StatusConflict, codeInsufficientGroupCapacity, err.Error())
	case errors.Is(err, domain.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, codeGroupNotFound, err.Error())
	case errors.Is(err, domain.ErrGroupFull):
		writeError(w, http.StatusConflict, codeGroupFull, err.Error())
	case errors.Is(err, domain.ErrTransientConflict):
		// Retryable: the counter stayed contended past the bounded backoff.
		writeError(w, http.StatusServiceUnavailable, codeTransientConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
