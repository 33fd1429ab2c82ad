package app

import (
	"context"
	"time"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
)

// PolicySource resolves an event's capacity policy. Several services consume
// only this slice of the policy repository.
type PolicySource interface {
	GetPolicy(ctx context.Context, eventID string) (domain.CapacityPolicy, error)
}

type PolicyRepository interface {
	PolicySource
	CreatePolicy(ctx context.Context, p domain.CapacityPolicy) error
	IncreaseCapacity(ctx context.Context, eventID string, delta int) (domain.CapacityPolicy, error)
}

type PolicyService struct {
	repo  PolicyRepository
	seats counter.Counter
	clock clock.Clock
}

func NewPolicyService(repo PolicyRepository, seats counter.Counter, clk clock.Clock) *PolicyService {
	return &PolicyService{repo: repo, seats: seats, clock: clk}
}

type CreatePolicyInput struct {
	EventID            string
	MaxCapacity        int
	WarningThreshold   int
	AllowReservations  bool
	ReservationTimeout time.Duration
}

func (s *PolicyService) CreatePolicy(ctx context.Context, in CreatePolicyInput) (domain.CapacityPolicy, error) {
	policy := domain.CapacityPolicy{
		EventID:            in.EventID,
		MaxCapacity:        in.MaxCapacity,
		WarningThreshold:   in.WarningThreshold,
		AllowReservations:  in.AllowReservations,
		ReservationTimeout: in.ReservationTimeout,
		CreatedAt:          s.clock.Now(),
	}
	if err := policy.Validate(); err != nil {
		return domain.CapacityPolicy{}, err
	}
	if err := s.repo.CreatePolicy(ctx, policy); err != nil {
		return domain.CapacityPolicy{}, err
	}
	return policy, nil
}

func (s *PolicyService) GetPolicy(ctx context.Context, eventID string) (domain.CapacityPolicy, error) {
	if eventID == "" {
		return domain.CapacityPolicy{}, domain.ErrInvalidID
	}
	return s.repo.GetPolicy(ctx, eventID)
}

// IncreaseCapacity raises the limit by delta as one atomic write.
func (s *PolicyService) IncreaseCapacity(ctx context.Context, eventID string, delta int) (domain.CapacityPolicy, error) {
	if eventID == "" {
		return domain.CapacityPolicy{}, domain.ErrInvalidID
	}
	return s.repo.IncreaseCapacity(ctx, eventID, delta)
}

// CapacityStatus is the live admission picture for one event.
type CapacityStatus struct {
	EventID        string
	MaxCapacity    int
	CommittedCount int
	Available      int
	AtCapacity     bool
	NearCapacity   bool
}

func (s *PolicyService) Status(ctx context.Context, eventID string) (CapacityStatus, error) {
	policy, err := s.GetPolicy(ctx, eventID)
	if err != nil {
		return CapacityStatus{}, err
	}
	committed, err := s.seats.Committed(ctx, eventID)
	if err != nil {
		return CapacityStatus{}, err
	}

	available := policy.MaxCapacity - committed
	if available < 0 {
		available = 0
	}
	return CapacityStatus{
		EventID:        eventID,
		MaxCapacity:    policy.MaxCapacity,
		CommittedCount: committed,
		Available:      available,
		AtCapacity:     policy.AtCapacity(committed),
		NearCapacity:   policy.NearCapacity(committed),
	}, nil
}
