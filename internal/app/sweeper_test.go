package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openvenue/admission/internal/domain"
)

func TestSweeperExpiresOverdueReservations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, seats, _, clk := newRegistrationFixture(domain.CapacityPolicy{
		EventID: "e", MaxCapacity: 5, AllowReservations: true, ReservationTimeout: time.Minute,
	})
	if _, err := svc.Register(ctx, "e", "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	clk.Advance(2 * time.Minute)

	sweeper := NewSweeper(svc, 10*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		committed, err := seats.Committed(ctx, "e")
		return err == nil && committed == 0
	}, 2*time.Second, 10*time.Millisecond)
}
