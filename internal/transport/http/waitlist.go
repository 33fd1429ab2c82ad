package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openvenue/admission/internal/app"
)

type Waitlister interface {
	Join(ctx context.Context, in app.JoinWaitlistInput) (app.JoinWaitlistResult, error)
	Position(ctx context.Context, eventID, participantID string) (int, error)
	Leave(ctx context.Context, eventID, participantID string) error
}

type joinWaitlistRequest struct {
	ParticipantID string `json:"participant_id"`
	Priority      int    `json:"priority"`
}

type waitlistPositionResponse struct {
	Position int `json:"position"`
}

func HandleJoinWaitlist(svc Waitlister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinWaitlistRequest
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

		result, err := svc.Join(r.Context(), app.JoinWaitlistInput{
			EventID:       chi.URLParam(r, "eventID"),
			ParticipantID: req.ParticipantID,
			Priority:      req.Priority,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, waitlistPositionResponse{Position: result.Rank})
	}
}

func HandleWaitlistPosition(svc Waitlister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participantID := r.URL.Query().Get("participant_id")
		if participantID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "participant_id is required")
			return
		}

		rank, err := svc.Position(r.Context(), chi.URLParam(r, "eventID"), participantID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, waitlistPositionResponse{Position: rank})
	}
}

func HandleLeaveWaitlist(svc Waitlister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participantID := r.URL.Query().Get("participant_id")
		if participantID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "participant_id is required")
			return
		}

		if err := svc.Leave(r.Context(), chi.URLParam(r, "eventID"), participantID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
