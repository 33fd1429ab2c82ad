package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/domain"
)

type GroupRepository struct {
	querier
}

var _ app.GroupRepository = (*GroupRepository)(nil)

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{querier{pool: pool}}
}

func (r *GroupRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *GroupRepository) CreateGroup(ctx context.Context, g domain.GroupBooking) error {
	const stmt = `
INSERT INTO group_bookings (id, event_id, leader_id, party_size, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, g.ID, g.EventID, g.LeaderID, g.PartySize, g.Status, g.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrPolicyNotFound
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetGroup(ctx context.Context, id string) (domain.GroupBooking, error) {
	const query = `
SELECT g.id, g.event_id, g.leader_id, g.party_size, g.status, g.created_at, g.cancelled_at,
       (SELECT COUNT(*) FROM registrations m WHERE m.group_id = g.id AND m.status IN ('reserved', 'confirmed'))
FROM group_bookings g
WHERE g.id = $1`

	var g domain.GroupBooking
	err := r.queryRow(ctx, query, id).Scan(
		&g.ID, &g.EventID, &g.LeaderID, &g.PartySize, &g.Status, &g.CreatedAt, &g.CancelledAt, &g.MemberCount,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.GroupBooking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.GroupBooking{}, domain.ErrGroupNotFound
		}
		return domain.GroupBooking{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// CreateRegistration inserts a member row. Group members live in the same
// ledger as direct registrations and hit the same duplicate guard.
func (r *GroupRepository) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	return (&RegistrationRepository{r.querier}).CreateRegistration(ctx, reg)
}

// TransitionGroup is a compare-and-set on group status; false means the
// group was not in any of the from statuses.
func (r *GroupRepository) TransitionGroup(ctx context.Context, id string, from []domain.GroupStatus, to domain.GroupStatus, at time.Time) (bool, error) {
	const stmt = `
UPDATE group_bookings
SET status = $3,
    cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
WHERE id = $1 AND status = ANY($2)`

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	tag, err := r.exec(ctx, stmt, id, statuses, to, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("transition group: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CancelMembers cancels every active member registration of the group in one
// statement; the caller releases the full party size exactly once.
func (r *GroupRepository) CancelMembers(ctx context.Context, groupID string, at time.Time) (int, error) {
	const stmt = `
UPDATE registrations
SET status = 'cancelled', cancelled_at = $2
WHERE group_id = $1 AND status IN ('reserved', 'confirmed')`

	tag, err := r.exec(ctx, stmt, groupID, at)
	if err != nil {
		return 0, fmt.Errorf("cancel group members: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *GroupRepository) ConfirmMembers(ctx context.Context, groupID string, at time.Time) (int, error) {
	const stmt = `
UPDATE registrations
SET status = 'confirmed', confirmed_at = $2
WHERE group_id = $1 AND status = 'reserved'`

	tag, err := r.exec(ctx, stmt, groupID, at)
	if err != nil {
		return 0, fmt.Errorf("confirm group members: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
