package migrations_test

import (
	"context"
	"testing"

	"github.com/openvenue/admission/internal/testutil"
	"github.com/openvenue/admission/migrations"
)

func TestApply(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var applied int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied < 1 {
		t.Fatalf("expected at least one recorded migration, got %d", applied)
	}

	// Idempotent: a second apply records nothing new.
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	var again int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&again); err != nil {
		t.Fatalf("recount migrations: %v", err)
	}
	if again != applied {
		t.Fatalf("expected %d migrations, got %d", applied, again)
	}

	// Core tables exist after apply.
	for _, table := range []string{"capacity_policies", "seat_counters", "registrations", "waitlist_entries", "group_bookings"} {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists); err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if !exists {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}
