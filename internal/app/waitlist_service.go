package app

import (
	"context"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/domain"
)

type WaitlistRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetPolicyForUpdate(ctx context.Context, eventID string) (domain.CapacityPolicy, error)
	FindEntry(ctx context.Context, eventID, participantID string) (*domain.WaitlistEntry, error)
	NextPosition(ctx context.Context, eventID string) (int, error)
	CreateEntry(ctx context.Context, e domain.WaitlistEntry) error
	DeleteEntry(ctx context.Context, eventID, participantID string) (bool, error)
	Rank(ctx context.Context, eventID, participantID string) (int, error)
}

type WaitlistService struct {
	repo      WaitlistRepository
	clock     clock.Clock
	snapshots SnapshotInvalidator
}

func NewWaitlistService(repo WaitlistRepository, clk clock.Clock, snapshots SnapshotInvalidator) *WaitlistService {
	return &WaitlistService{repo: repo, clock: clk, snapshots: snapshots}
}

type JoinWaitlistInput struct {
	EventID       string
	ParticipantID string
	Priority      int
}

type JoinWaitlistResult struct {
	Entry domain.WaitlistEntry
	Rank  int
}

// Join appends the party to its priority tier. Position assignment is
// serialized by the policy row lock, so the insertion sequence stays dense
// and monotonic per event.
func (s *WaitlistService) Join(ctx context.Context, in JoinWaitlistInput) (JoinWaitlistResult, error) {
	if in.EventID == "" || in.ParticipantID == "" {
		return JoinWaitlistResult{}, domain.ErrInvalidID
	}

	var result JoinWaitlistResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetPolicyForUpdate(txCtx, in.EventID); err != nil {
			return err
		}

		if existing, err := s.repo.FindEntry(txCtx, in.EventID, in.ParticipantID); err != nil {
			return err
		} else if existing != nil {
			return domain.ErrAlreadyWaitlisted
		}

		pos, err := s.repo.NextPosition(txCtx, in.EventID)
		if err != nil {
			return err
		}

		entry := domain.WaitlistEntry{
			ID:            newID(),
			EventID:       in.EventID,
			ParticipantID: in.ParticipantID,
			Position:      pos,
			Priority:      in.Priority,
			JoinedAt:      s.clock.Now(),
		}
		if err := s.repo.CreateEntry(txCtx, entry); err != nil {
			return err
		}

		rank, err := s.repo.Rank(txCtx, in.EventID, in.ParticipantID)
		if err != nil {
			return err
		}
		result = JoinWaitlistResult{Entry: entry, Rank: rank}
		return nil
	})
	if err != nil {
		return JoinWaitlistResult{}, err
	}

	s.snapshots.Invalidate(in.EventID)
	return result, nil
}

// Position returns the live 1-based rank under (priority desc, position asc).
// The stored position is an insertion sequence, not the rank.
func (s *WaitlistService) Position(ctx context.Context, eventID, participantID string) (int, error) {
	if eventID == "" || participantID == "" {
		return 0, domain.ErrInvalidID
	}
	return s.repo.Rank(ctx, eventID, participantID)
}

func (s *WaitlistService) Leave(ctx context.Context, eventID, participantID string) error {
	if eventID == "" || participantID == "" {
		return domain.ErrInvalidID
	}
	removed, err := s.repo.DeleteEntry(ctx, eventID, participantID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrNotWaitlisted
	}
	s.snapshots.Invalidate(eventID)
	return nil
}
