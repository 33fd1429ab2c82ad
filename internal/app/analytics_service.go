package app

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/domain"
)

// SnapshotInvalidator drops a cached analytics view after a mutation.
type SnapshotInvalidator interface {
	Invalidate(eventID string)
}

type AnalyticsRepository interface {
	CountRegistrationsByStatus(ctx context.Context, eventID string) (map[domain.RegistrationStatus]int, error)
	CountWaitlist(ctx context.Context, eventID string) (waiting, promoted int, err error)
}

const snapshotCacheSize = 1024

// AnalyticsService derives utilization and conversion views from the ledger
// and waitlist. Snapshots are cached with a short TTL and recomputed on a
// miss; computing one never blocks an admission operation.
type AnalyticsService struct {
	repo     AnalyticsRepository
	policies PolicySource
	clock    clock.Clock
	cache    *expirable.LRU[string, domain.CapacitySnapshot]
}

func NewAnalyticsService(repo AnalyticsRepository, policies PolicySource, clk clock.Clock, ttl time.Duration) *AnalyticsService {
	return &AnalyticsService{
		repo:     repo,
		policies: policies,
		clock:    clk,
		cache:    expirable.NewLRU[string, domain.CapacitySnapshot](snapshotCacheSize, nil, ttl),
	}
}

func (s *AnalyticsService) Snapshot(ctx context.Context, eventID string) (domain.CapacitySnapshot, error) {
	if eventID == "" {
		return domain.CapacitySnapshot{}, domain.ErrInvalidID
	}
	if snap, ok := s.cache.Get(eventID); ok {
		return snap, nil
	}

	snap, err := s.compute(ctx, eventID)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}
	s.cache.Add(eventID, snap)
	return snap, nil
}

func (s *AnalyticsService) Invalidate(eventID string) {
	s.cache.Remove(eventID)
}

func (s *AnalyticsService) compute(ctx context.Context, eventID string) (domain.CapacitySnapshot, error) {
	policy, err := s.policies.GetPolicy(ctx, eventID)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}
	counts, err := s.repo.CountRegistrationsByStatus(ctx, eventID)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}
	waiting, promoted, err := s.repo.CountWaitlist(ctx, eventID)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}

	confirmed := counts[domain.RegistrationConfirmed]
	return domain.CapacitySnapshot{
		EventID:            eventID,
		MaxCapacity:        policy.MaxCapacity,
		Reserved:           counts[domain.RegistrationReserved],
		Confirmed:          confirmed,
		Cancelled:          counts[domain.RegistrationCancelled],
		Expired:            counts[domain.RegistrationExpired],
		Waitlisted:         waiting,
		PromotedCount:      promoted,
		UtilizationPercent: float64(confirmed) / float64(policy.MaxCapacity) * 100,
		GeneratedAt:        s.clock.Now(),
	}, nil
}
