package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
)

type PolicyRepository struct {
	querier
}

var (
	_ app.PolicyRepository   = (*PolicyRepository)(nil)
	_ counter.CapacityLookup = (*PolicyRepository)(nil)
)

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{querier{pool: pool}}
}

func (r *PolicyRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreatePolicy inserts the policy and seeds its seat counter at zero in one
// transaction, so a counter row always exists when admission checks run.
func (r *PolicyRepository) CreatePolicy(ctx context.Context, p domain.CapacityPolicy) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		const stmt = `
INSERT INTO capacity_policies (event_id, max_capacity, warning_threshold, allow_reservations, reservation_timeout_seconds, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

		_, err := r.exec(txCtx, stmt,
			p.EventID,
			p.MaxCapacity,
			p.WarningThreshold,
			p.AllowReservations,
			int64(p.ReservationTimeout/time.Second),
			p.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrPolicyExists
			}
			return fmt.Errorf("create policy: %w", err)
		}

		if _, err := r.exec(txCtx, `INSERT INTO seat_counters (event_id, committed) VALUES ($1, 0)`, p.EventID); err != nil {
			return fmt.Errorf("seed seat counter: %w", err)
		}
		return nil
	})
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, eventID string) (domain.CapacityPolicy, error) {
	return r.getPolicy(ctx, eventID, false)
}

// GetPolicyForUpdate locks the policy row for the current transaction. The
// waitlist uses this to serialize position assignment per event.
func (r *PolicyRepository) GetPolicyForUpdate(ctx context.Context, eventID string) (domain.CapacityPolicy, error) {
	return r.getPolicy(ctx, eventID, true)
}

func (r *PolicyRepository) getPolicy(ctx context.Context, eventID string, forUpdate bool) (domain.CapacityPolicy, error) {
	query := `
SELECT event_id, max_capacity, warning_threshold, allow_reservations, reservation_timeout_seconds, created_at
FROM capacity_policies
WHERE event_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		p              domain.CapacityPolicy
		timeoutSeconds int64
	)
	err := r.queryRow(ctx, query, eventID).Scan(
		&p.EventID, &p.MaxCapacity, &p.WarningThreshold, &p.AllowReservations, &timeoutSeconds, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CapacityPolicy{}, domain.ErrPolicyNotFound
		}
		return domain.CapacityPolicy{}, fmt.Errorf("get policy: %w", err)
	}
	p.ReservationTimeout = time.Duration(timeoutSeconds) * time.Second
	return p, nil
}

// IncreaseCapacity raises max_capacity as a single atomic write; the new
// bound is visible to the next admission check.
func (r *PolicyRepository) IncreaseCapacity(ctx context.Context, eventID string, delta int) (domain.CapacityPolicy, error) {
	if delta < 1 {
		return domain.CapacityPolicy{}, domain.ErrInvalidPolicy
	}

	const stmt = `
UPDATE capacity_policies
SET max_capacity = max_capacity + $2
WHERE event_id = $1
RETURNING event_id, max_capacity, warning_threshold, allow_reservations, reservation_timeout_seconds, created_at`

	var (
		p              domain.CapacityPolicy
		timeoutSeconds int64
	)
	err := r.queryRow(ctx, stmt, eventID, delta).Scan(
		&p.EventID, &p.MaxCapacity, &p.WarningThreshold, &p.AllowReservations, &timeoutSeconds, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CapacityPolicy{}, domain.ErrPolicyNotFound
		}
		return domain.CapacityPolicy{}, fmt.Errorf("increase capacity: %w", err)
	}
	p.ReservationTimeout = time.Duration(timeoutSeconds) * time.Second
	return p, nil
}

// MaxCapacity satisfies counter.CapacityLookup for the in-memory counter.
func (r *PolicyRepository) MaxCapacity(ctx context.Context, eventID string) (int, error) {
	var max int
	err := r.queryRow(ctx, `SELECT max_capacity FROM capacity_policies WHERE event_id = $1`, eventID).Scan(&max)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrPolicyNotFound
		}
		return 0, fmt.Errorf("max capacity: %w", err)
	}
	return max, nil
}
