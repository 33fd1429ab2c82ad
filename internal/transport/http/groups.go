package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/domain"
)

type GroupBooker interface {
	ReserveGroup(ctx context.Context, in app.ReserveGroupInput) (domain.GroupBooking, error)
	AddMember(ctx context.Context, groupID, participantID string) (domain.GroupBooking, error)
	ConfirmGroup(ctx context.Context, groupID string) (domain.GroupBooking, error)
	CancelGroup(ctx context.Context, groupID string) (domain.GroupBooking, error)
}

type reserveGroupRequest struct {
	LeaderID  string   `json:"leader_id"`
	PartySize int      `json:"party_size"`
	MemberIDs []string `json:"member_ids"`
}

type groupResponse struct {
	GroupID     string `json:"group_id"`
	EventID     string `json:"event_id"`
	LeaderID    string `json:"leader_id"`
	PartySize   int    `json:"party_size"`
	MemberCount int    `json:"member_count"`
	Status      string `json:"status"`
}

func toGroupResponse(g domain.GroupBooking) groupResponse {
	return groupResponse{
		GroupID:     g.ID,
		EventID:     g.EventID,
		LeaderID:    g.LeaderID,
		PartySize:   g.PartySize,
		MemberCount: g.MemberCount,
		Status:      string(g.Status),
	}
}

// HandleReserveGroup reserves a block of seats as one atomic unit.
func HandleReserveGroup(svc GroupBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveGroupRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.LeaderID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "leader_id is required")
			return
		}

		group, err := svc.ReserveGroup(r.Context(), app.ReserveGroupInput{
			EventID:   chi.URLParam(r, "eventID"),
			LeaderID:  req.LeaderID,
			PartySize: req.PartySize,
			MemberIDs: req.MemberIDs,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGroupResponse(group))
	}
}

type addMemberRequest struct {
	ParticipantID string `json:"participant_id"`
}

func HandleAddGroupMember(svc GroupBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addMemberRequest
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

		group, err := svc.AddMember(r.Context(), chi.URLParam(r, "groupID"), req.ParticipantID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupResponse(group))
	}
}

func HandleConfirmGroup(svc GroupBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, err := svc.ConfirmGroup(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupResponse(group))
	}
}

func HandleCancelGroup(svc GroupBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, err := svc.CancelGroup(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupResponse(group))
	}
}
