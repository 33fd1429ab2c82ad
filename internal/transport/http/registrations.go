package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openvenue/admission/internal/domain"
)

type Registrar interface {
	Register(ctx context.Context, eventID, participantID string) (domain.Registration, error)
	Confirm(ctx context.Context, registrationID string) (domain.Registration, error)
	Cancel(ctx context.Context, registrationID string) (domain.Registration, error)
}

type registerRequest struct {
	ParticipantID string `json:"participant_id"`
}

type registrationResponse struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	ParticipantID string     `json:"participant_id"`
	Status        string     `json:"status"`
	ReservedAt    time.Time  `json:"reserved_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func toRegistrationResponse(reg domain.Registration) registrationResponse {
	return registrationResponse{
		ID:            reg.ID,
		EventID:       reg.EventID,
		ParticipantID: reg.ParticipantID,
		Status:        string(reg.Status),
		ReservedAt:    reg.ReservedAt,
		ConfirmedAt:   reg.ConfirmedAt,
		CancelledAt:   reg.CancelledAt,
	}
}

// HandleRegister admits a participant directly. A capacity_exceeded response
// tells the caller to join the waitlist instead.
func HandleRegister(svc Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ParticipantID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "participant_id is required")
			return
		}

		reg, err := svc.Register(r.Context(), chi.URLParam(r, "eventID"), req.ParticipantID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRegistrationResponse(reg))
	}
}

func HandleConfirmRegistration(svc Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := svc.Confirm(r.Context(), chi.URLParam(r, "registrationID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRegistrationResponse(reg))
	}
}

func HandleCancelRegistration(svc Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := svc.Cancel(r.Context(), chi.URLParam(r, "registrationID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRegistrationResponse(reg))
	}
}
