package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openvenue/admission/internal/domain"
)

type SnapshotReader interface {
	Snapshot(ctx context.Context, eventID string) (domain.CapacitySnapshot, error)
}

type snapshotResponse struct {
	EventID            string    `json:"event_id"`
	MaxCapacity        int       `json:"max_capacity"`
	Reserved           int       `json:"reserved"`
	Confirmed          int       `json:"confirmed"`
	Cancelled          int       `json:"cancelled"`
	Expired            int       `json:"expired"`
	Waitlisted         int       `json:"waitlisted"`
	PromotedCount      int       `json:"promoted_count"`
	UtilizationPercent float64   `json:"utilization_percent"`
	GeneratedAt        time.Time `json:"generated_at"`
}

func HandleAnalytics(svc SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snapshotResponse{
			EventID:            snap.EventID,
			MaxCapacity:        snap.MaxCapacity,
			Reserved:           snap.Reserved,
			Confirmed:          snap.Confirmed,
			Cancelled:          snap.Cancelled,
			Expired:            snap.Expired,
			Waitlisted:         snap.Waitlisted,
			PromotedCount:      snap.PromotedCount,
			UtilizationPercent: snap.UtilizationPercent,
			GeneratedAt:        snap.GeneratedAt,
		})
	}
}
