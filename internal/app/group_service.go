package app

import (
	"context"
	"errors"
	"time"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
	"github.com/openvenue/admission/internal/telemetry"
)

type GroupRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateGroup(ctx context.Context, g domain.GroupBooking) error
	GetGroup(ctx context.Context, id string) (domain.GroupBooking, error)
	TransitionGroup(ctx context.Context, id string, from []domain.GroupStatus, to domain.GroupStatus, at time.Time) (bool, error)
	CreateRegistration(ctx context.Context, reg domain.Registration) error
	CancelMembers(ctx context.Context, groupID string, at time.Time) (int, error)
	ConfirmMembers(ctx context.Context, groupID string, at time.Time) (int, error)
}

// GroupService reserves and releases a party's block of seats as one unit.
// The counter moves by the full party size in a single call on both
// directions; no path commits or frees a subset of a group.
type GroupService struct {
	repo       GroupRepository
	policies   PolicySource
	seats      counter.Counter
	clock      clock.Clock
	promotions PromotionTrigger
	snapshots  SnapshotInvalidator
}

func NewGroupService(
	repo GroupRepository,
	policies PolicySource,
	seats counter.Counter,
	clk clock.Clock,
	promotions PromotionTrigger,
	snapshots SnapshotInvalidator,
) *GroupService {
	return &GroupService{
		repo:       repo,
		policies:   policies,
		seats:      seats,
		clock:      clk,
		promotions: promotions,
		snapshots:  snapshots,
	}
}

type ReserveGroupInput struct {
	EventID   string
	LeaderID  string
	PartySize int
	// MemberIDs may name up to PartySize participants, leader included. The
	// group stays in forming until every slot has a member.
	MemberIDs []string
}

// ReserveGroup commits the whole block with one TryReserve(partySize) call.
// Reserving seat by seat could strand a partial group; one atomic call either
// admits the block or leaves the counter untouched.
func (s *GroupService) ReserveGroup(ctx context.Context, in ReserveGroupInput) (domain.GroupBooking, error) {
	if in.EventID == "" || in.LeaderID == "" {
		return domain.GroupBooking{}, domain.ErrInvalidID
	}
	if in.PartySize < 1 {
		return domain.GroupBooking{}, domain.ErrInvalidPartySize
	}

	members := normalizeMembers(in.LeaderID, in.MemberIDs)
	if len(members) > in.PartySize {
		return domain.GroupBooking{}, domain.ErrInvalidPartySize
	}

	if _, err := s.policies.GetPolicy(ctx, in.EventID); err != nil {
		return domain.GroupBooking{}, err
	}

	if err := s.seats.TryReserve(ctx, in.EventID, in.PartySize); err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			telemetry.GroupReservationsTotal.WithLabelValues("insufficient_capacity").Inc()
			return domain.GroupBooking{}, domain.ErrInsufficientGroupCapacity
		}
		return domain.GroupBooking{}, err
	}

	now := s.clock.Now()
	group := domain.GroupBooking{
		ID:          newID(),
		EventID:     in.EventID,
		LeaderID:    in.LeaderID,
		PartySize:   in.PartySize,
		MemberCount: len(members),
		Status:      domain.GroupReserved,
		CreatedAt:   now,
	}
	if len(members) < in.PartySize {
		group.Status = domain.GroupForming
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateGroup(txCtx, group); err != nil {
			return err
		}
		for _, participantID := range members {
			reg := domain.Registration{
				ID:            newID(),
				EventID:       in.EventID,
				ParticipantID: participantID,
				GroupID:       group.ID,
				Status:        domain.RegistrationReserved,
				ReservedAt:    now,
			}
			if err := s.repo.CreateRegistration(txCtx, reg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The block was committed above; the failed transaction left no
		// member rows, so give the whole block back.
		if relErr := s.seats.Release(ctx, in.EventID, in.PartySize); relErr != nil {
			return domain.GroupBooking{}, relErr
		}
		telemetry.GroupReservationsTotal.WithLabelValues("error").Inc()
		return domain.GroupBooking{}, err
	}

	telemetry.GroupReservationsTotal.WithLabelValues("reserved").Inc()
	s.snapshots.Invalidate(in.EventID)
	return group, nil
}

// AddMember fills one of the group's reserved slots. The seat is already
// committed, so the counter does not move.
func (s *GroupService) AddMember(ctx context.Context, groupID, participantID string) (domain.GroupBooking, error) {
	if groupID == "" || participantID == "" {
		return domain.GroupBooking{}, domain.ErrInvalidID
	}

	var group domain.GroupBooking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		g, err := s.repo.GetGroup(txCtx, groupID)
		if err != nil {
			return err
		}
		if g.Status != domain.GroupForming {
			return domain.ErrGroupFull
		}
		if g.MemberCount >= g.PartySize {
			return domain.ErrGroupFull
		}

		reg := domain.Registration{
			ID:            newID(),
			EventID:       g.EventID,
			ParticipantID: participantID,
			GroupID:       g.ID,
			Status:        domain.RegistrationReserved,
			ReservedAt:    s.clock.Now(),
		}
		if err := s.repo.CreateRegistration(txCtx, reg); err != nil {
			return err
		}

		g.MemberCount++
		if g.MemberCount == g.PartySize {
			if _, err := s.repo.TransitionGroup(txCtx, g.ID,
				[]domain.GroupStatus{domain.GroupForming}, domain.GroupReserved, s.clock.Now()); err != nil {
				return err
			}
			g.Status = domain.GroupReserved
		}
		group = g
		return nil
	})
	if err != nil {
		return domain.GroupBooking{}, err
	}

	s.snapshots.Invalidate(group.EventID)
	return group, nil
}

// ConfirmGroup confirms the booking and every member registration together.
func (s *GroupService) ConfirmGroup(ctx context.Context, groupID string) (domain.GroupBooking, error) {
	if groupID == "" {
		return domain.GroupBooking{}, domain.ErrInvalidID
	}

	var group domain.GroupBooking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		moved, err := s.repo.TransitionGroup(txCtx, groupID,
			[]domain.GroupStatus{domain.GroupReserved}, domain.GroupConfirmed, s.clock.Now())
		if err != nil {
			return err
		}
		if !moved {
			if _, err := s.repo.GetGroup(txCtx, groupID); err != nil {
				return err
			}
			return domain.ErrInvalidTransition
		}
		if _, err := s.repo.ConfirmMembers(txCtx, groupID, s.clock.Now()); err != nil {
			return err
		}
		group, err = s.repo.GetGroup(txCtx, groupID)
		return err
	})
	if err != nil {
		return domain.GroupBooking{}, err
	}

	s.snapshots.Invalidate(group.EventID)
	return group, nil
}

// CancelGroup releases the full block in one Release call and cancels all
// member registrations together.
func (s *GroupService) CancelGroup(ctx context.Context, groupID string) (domain.GroupBooking, error) {
	if groupID == "" {
		return domain.GroupBooking{}, domain.ErrInvalidID
	}

	var group domain.GroupBooking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		moved, err := s.repo.TransitionGroup(txCtx, groupID,
			[]domain.GroupStatus{domain.GroupForming, domain.GroupReserved, domain.GroupConfirmed},
			domain.GroupCancelled, s.clock.Now())
		if err != nil {
			return err
		}
		if !moved {
			if _, err := s.repo.GetGroup(txCtx, groupID); err != nil {
				return err
			}
			return domain.ErrInvalidTransition
		}
		if _, err := s.repo.CancelMembers(txCtx, groupID, s.clock.Now()); err != nil {
			return err
		}
		group, err = s.repo.GetGroup(txCtx, groupID)
		return err
	})
	if err != nil {
		return domain.GroupBooking{}, err
	}

	// The group status CAS above guarantees this release runs once.
	if err := s.seats.Release(ctx, group.EventID, group.PartySize); err != nil {
		return domain.GroupBooking{}, err
	}
	s.snapshots.Invalidate(group.EventID)
	s.promotions.Trigger(group.EventID)
	return group, nil
}

func normalizeMembers(leaderID string, memberIDs []string) []string {
	seen := map[string]struct{}{leaderID: {}}
	members := []string{leaderID}
	for _, id := range memberIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}
