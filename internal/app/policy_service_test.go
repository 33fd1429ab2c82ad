package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
)

type fakePolicyRepo struct {
	mu       sync.Mutex
	policies map[string]domain.CapacityPolicy
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{policies: make(map[string]domain.CapacityPolicy)}
}

func (f *fakePolicyRepo) CreatePolicy(_ context.Context, p domain.CapacityPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.policies[p.EventID]; ok {
		return domain.ErrPolicyExists
	}
	f.policies[p.EventID] = p
	return nil
}

func (f *fakePolicyRepo) GetPolicy(_ context.Context, eventID string) (domain.CapacityPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[eventID]
	if !ok {
		return domain.CapacityPolicy{}, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (f *fakePolicyRepo) IncreaseCapacity(_ context.Context, eventID string, delta int) (domain.CapacityPolicy, error) {
	if delta < 1 {
		return domain.CapacityPolicy{}, domain.ErrInvalidPolicy
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[eventID]
	if !ok {
		return domain.CapacityPolicy{}, domain.ErrPolicyNotFound
	}
	p.MaxCapacity += delta
	f.policies[eventID] = p
	return p, nil
}

func (f *fakePolicyRepo) MaxCapacity(ctx context.Context, eventID string) (int, error) {
	p, err := f.GetPolicy(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return p.MaxCapacity, nil
}

func newPolicyFixture() (*PolicyService, *fakePolicyRepo, *counter.Memory) {
	repo := newFakePolicyRepo()
	seats := counter.NewMemory(repo)
	clk := clock.NewFixed(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewPolicyService(repo, seats, clk), repo, seats
}

func TestPolicyService_CreatePolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid policy", func(t *testing.T) {
		svc, _, _ := newPolicyFixture()
		p, err := svc.CreatePolicy(ctx, CreatePolicyInput{
			EventID:            "e",
			MaxCapacity:        100,
			WarningThreshold:   90,
			AllowReservations:  true,
			ReservationTimeout: 15 * time.Minute,
		})
		if err != nil {
			t.Fatalf("create policy: %v", err)
		}
		if p.CreatedAt.IsZero() {
			t.Fatal("expected created_at to be set")
		}
	})

	t.Run("invalid policies rejected", func(t *testing.T) {
		svc, _, _ := newPolicyFixture()
		cases := []CreatePolicyInput{
			{EventID: "e", MaxCapacity: 0},
			{EventID: "e", MaxCapacity: 10, WarningThreshold: 101},
			{EventID: "e", MaxCapacity: 10, WarningThreshold: -1},
			{EventID: "e", MaxCapacity: 10, AllowReservations: true, ReservationTimeout: -time.Minute},
		}
		for _, in := range cases {
			if _, err := svc.CreatePolicy(ctx, in); !errors.Is(err, domain.ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy for %+v, got %v", in, err)
			}
		}
		if _, err := svc.CreatePolicy(ctx, CreatePolicyInput{MaxCapacity: 10}); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID for missing event id, got %v", err)
		}
	})

	t.Run("duplicate event", func(t *testing.T) {
		svc, _, _ := newPolicyFixture()
		in := CreatePolicyInput{EventID: "e", MaxCapacity: 10}
		if _, err := svc.CreatePolicy(ctx, in); err != nil {
			t.Fatalf("create policy: %v", err)
		}
		if _, err := svc.CreatePolicy(ctx, in); !errors.Is(err, domain.ErrPolicyExists) {
			t.Fatalf("expected ErrPolicyExists, got %v", err)
		}
	})
}

func TestPolicyService_Status(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, seats := newPolicyFixture()
	if _, err := svc.CreatePolicy(ctx, CreatePolicyInput{
		EventID: "e", MaxCapacity: 10, WarningThreshold: 80,
	}); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	status, err := svc.Status(ctx, "e")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Available != 10 || status.AtCapacity || status.NearCapacity {
		t.Fatalf("unexpected empty-event status: %+v", status)
	}

	if err := seats.TryReserve(ctx, "e", 8); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	status, err = svc.Status(ctx, "e")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.NearCapacity || status.AtCapacity || status.Available != 2 {
		t.Fatalf("expected near capacity with 2 left, got %+v", status)
	}

	if err := seats.TryReserve(ctx, "e", 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	status, err = svc.Status(ctx, "e")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.AtCapacity || status.Available != 0 {
		t.Fatalf("expected at capacity, got %+v", status)
	}
}

func TestPolicyService_IncreaseCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, seats := newPolicyFixture()
	if _, err := svc.CreatePolicy(ctx, CreatePolicyInput{EventID: "e", MaxCapacity: 2}); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if err := seats.TryReserve(ctx, "e", 2); err != nil {
		t.Fatalf("fill event: %v", err)
	}
	if err := seats.TryReserve(ctx, "e", 1); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected full event, got %v", err)
	}

	p, err := svc.IncreaseCapacity(ctx, "e", 3)
	if err != nil {
		t.Fatalf("increase capacity: %v", err)
	}
	if p.MaxCapacity != 5 {
		t.Fatalf("expected max 5, got %d", p.MaxCapacity)
	}

	// New headroom is admissible immediately.
	if err := seats.TryReserve(ctx, "e", 3); err != nil {
		t.Fatalf("expected reserve in new headroom, got %v", err)
	}

	if _, err := svc.IncreaseCapacity(ctx, "missing", 1); !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}
