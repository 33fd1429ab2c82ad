package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvenue/admission/internal/domain"
	"github.com/openvenue/admission/internal/testutil"
)

func setupDB(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	return ctx, pool
}

func seedPolicy(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventID string, maxCapacity int, timeout time.Duration) {
	t.Helper()
	testutil.InsertPolicy(t, ctx, pool, domain.CapacityPolicy{
		EventID:            eventID,
		MaxCapacity:        maxCapacity,
		WarningThreshold:   80,
		AllowReservations:  true,
		ReservationTimeout: timeout,
	})
}
