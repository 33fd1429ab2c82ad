package domain

import (
	"testing"
	"time"
)

func TestCapacityPolicyValidate(t *testing.T) {
	t.Parallel()

	valid := CapacityPolicy{
		EventID:            "event-1",
		MaxCapacity:        100,
		WarningThreshold:   80,
		AllowReservations:  true,
		ReservationTimeout: 15 * time.Minute,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid policy, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CapacityPolicy)
		want   error
	}{
		{"zero capacity", func(p *CapacityPolicy) { p.MaxCapacity = 0 }, ErrInvalidPolicy},
		{"negative capacity", func(p *CapacityPolicy) { p.MaxCapacity = -5 }, ErrInvalidPolicy},
		{"threshold above 100", func(p *CapacityPolicy) { p.WarningThreshold = 101 }, ErrInvalidPolicy},
		{"negative threshold", func(p *CapacityPolicy) { p.WarningThreshold = -1 }, ErrInvalidPolicy},
		{"negative timeout", func(p *CapacityPolicy) { p.ReservationTimeout = -time.Minute }, ErrInvalidPolicy},
		{"empty event", func(p *CapacityPolicy) { p.EventID = "" }, ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			if err := p.Validate(); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCapacityPolicyThresholds(t *testing.T) {
	t.Parallel()

	p := CapacityPolicy{EventID: "e", MaxCapacity: 10, WarningThreshold: 80}

	if p.NearCapacity(7) {
		t.Fatalf("7/10 should be below the 80%% threshold")
	}
	if !p.NearCapacity(8) {
		t.Fatalf("8/10 should reach the 80%% threshold")
	}
	if p.AtCapacity(9) {
		t.Fatalf("9/10 is not at capacity")
	}
	if !p.AtCapacity(10) {
		t.Fatalf("10/10 is at capacity")
	}
}
