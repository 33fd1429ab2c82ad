package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
)

// SeatCounter implements counter.Counter on a seat_counters row. Each
// mutation is a single conditional UPDATE, so atomicity comes from the row
// lock and no read-then-write window exists.
type SeatCounter struct {
	querier
}

var _ counter.Counter = (*SeatCounter)(nil)

func NewSeatCounter(pool *pgxpool.Pool) *SeatCounter {
	return &SeatCounter{querier{pool: pool}}
}

func (c *SeatCounter) TryReserve(ctx context.Context, eventID string, n int) error {
	const stmt = `
UPDATE seat_counters sc
SET committed = sc.committed + $2
FROM capacity_policies p
WHERE sc.event_id = $1 AND p.event_id = sc.event_id AND sc.committed + $2 <= p.max_capacity`

	tag, err := c.exec(ctx, stmt, eventID, n)
	if err != nil {
		return fmt.Errorf("try reserve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := c.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seat_counters WHERE event_id = $1)`, eventID).Scan(&exists); err != nil {
			return fmt.Errorf("try reserve exists check: %w", err)
		}
		if !exists {
			return domain.ErrPolicyNotFound
		}
		return domain.ErrCapacityExceeded
	}
	return nil
}

func (c *SeatCounter) Release(ctx context.Context, eventID string, n int) error {
	const stmt = `
UPDATE seat_counters
SET committed = GREATEST(committed - $2, 0)
WHERE event_id = $1`

	tag, err := c.exec(ctx, stmt, eventID, n)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}

func (c *SeatCounter) Committed(ctx context.Context, eventID string) (int, error) {
	var committed int
	err := c.queryRow(ctx, `SELECT committed FROM seat_counters WHERE event_id = $1`, eventID).Scan(&committed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrPolicyNotFound
		}
		return 0, fmt.Errorf("committed: %w", err)
	}
	return committed, nil
}

// Reconcile rebuilds one counter from the durable ledger: active
// registrations plus unfilled slots of active group bookings. Used for
// disaster recovery; never part of the admission path.
func (c *SeatCounter) Reconcile(ctx context.Context, eventID string) (int, error) {
	const stmt = `
UPDATE seat_counters sc
SET committed = derived.total
FROM (
	SELECT
		COALESCE((
			SELECT COUNT(*) FROM registrations r
			WHERE r.event_id = $1 AND r.status IN ('reserved', 'confirmed')
		), 0)
		+
		COALESCE((
			SELECT SUM(g.party_size - (
				SELECT COUNT(*) FROM registrations m
				WHERE m.group_id = g.id AND m.status IN ('reserved', 'confirmed')
			))
			FROM group_bookings g
			WHERE g.event_id = $1 AND g.status IN ('forming', 'reserved', 'confirmed')
		), 0) AS total
) derived
WHERE sc.event_id = $1
RETURNING sc.committed`

	var committed int
	if err := c.queryRow(ctx, stmt, eventID).Scan(&committed); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrPolicyNotFound
		}
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	return committed, nil
}

// Snapshot reads every counter in one pass. Used to seed the in-memory
// backend from reconciled durable state at startup.
func (c *SeatCounter) Snapshot(ctx context.Context) (map[string]int, error) {
	rows, err := c.query(ctx, `SELECT event_id, committed FROM seat_counters`)
	if err != nil {
		return nil, fmt.Errorf("snapshot counters: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]int)
	for rows.Next() {
		var (
			id        string
			committed int
		)
		if err := rows.Scan(&id, &committed); err != nil {
			return nil, fmt.Errorf("scan counter snapshot: %w", err)
		}
		snapshot[id] = committed
	}
	return snapshot, rows.Err()
}

// ReconcileAll rebuilds every counter, typically at startup.
func (c *SeatCounter) ReconcileAll(ctx context.Context) error {
	rows, err := c.query(ctx, `SELECT event_id FROM seat_counters`)
	if err != nil {
		return fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan counter: %w", err)
		}
		eventIDs = append(eventIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range eventIDs {
		if _, err := c.Reconcile(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
