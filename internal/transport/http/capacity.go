package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/domain"
)

// PolicyCreator is the minimal interface needed to create a capacity policy.
type PolicyCreator interface {
	CreatePolicy(ctx context.Context, in app.CreatePolicyInput) (domain.CapacityPolicy, error)
}

type CapacityReader interface {
	Status(ctx context.Context, eventID string) (app.CapacityStatus, error)
}

type CapacityIncreaser interface {
	IncreaseCapacity(ctx context.Context, eventID string, delta int) (domain.CapacityPolicy, error)
}

type createPolicyRequest struct {
	MaxCapacity        int    `json:"max_capacity"`
	WarningThreshold   int    `json:"warning_threshold"`
	AllowReservations  bool   `json:"allow_reservations"`
	ReservationTimeout string `json:"reservation_timeout"`
}

type policyResponse struct {
	EventID            string `json:"event_id"`
	MaxCapacity        int    `json:"max_capacity"`
	WarningThreshold   int    `json:"warning_threshold"`
	AllowReservations  bool   `json:"allow_reservations"`
	ReservationTimeout string `json:"reservation_timeout"`
}

func toPolicyResponse(p domain.CapacityPolicy) policyResponse {
	return policyResponse{
		EventID:            p.EventID,
		MaxCapacity:        p.MaxCapacity,
		WarningThreshold:   p.WarningThreshold,
		AllowReservations:  p.AllowReservations,
		ReservationTimeout: p.ReservationTimeout.String(),
	}
}

// HandleCreatePolicy returns an HTTP handler for creating an event's policy.
func HandleCreatePolicy(svc PolicyCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPolicyRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		var timeout time.Duration
		if req.ReservationTimeout != "" {
			var err error
			timeout, err = time.ParseDuration(req.ReservationTimeout)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidPolicy, "invalid reservation_timeout")
				return
			}
		}

		policy, err := svc.CreatePolicy(r.Context(), app.CreatePolicyInput{
			EventID:            chi.URLParam(r, "eventID"),
			MaxCapacity:        req.MaxCapacity,
			WarningThreshold:   req.WarningThreshold,
			AllowReservations:  req.AllowReservations,
			ReservationTimeout: timeout,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPolicyResponse(policy))
	}
}

type capacityStatusResponse struct {
	MaxCapacity    int  `json:"max_capacity"`
	ConfirmedCount int  `json:"confirmed_count"`
	Available      int  `json:"available"`
	IsAtCapacity   bool `json:"is_at_capacity"`
	IsNearCapacity bool `json:"is_near_capacity"`
}

// HandleCapacityStatus reports the live committed/available picture.
func HandleCapacityStatus(svc CapacityReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, capacityStatusResponse{
			MaxCapacity:    status.MaxCapacity,
			ConfirmedCount: status.CommittedCount,
			Available:      status.Available,
			IsAtCapacity:   status.AtCapacity,
			IsNearCapacity: status.NearCapacity,
		})
	}
}

type increaseCapacityRequest struct {
	Delta int `json:"delta"`
}

// HandleIncreaseCapacity applies an atomic capacity raise.
func HandleIncreaseCapacity(svc CapacityIncreaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req increaseCapacityRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		policy, err := svc.IncreaseCapacity(r.Context(), chi.URLParam(r, "eventID"), req.Delta)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPolicyResponse(policy))
	}
}
