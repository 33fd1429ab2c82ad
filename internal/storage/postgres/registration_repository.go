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

type RegistrationRepository struct {
	querier
}

var _ app.RegistrationRepository = (*RegistrationRepository)(nil)

func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{querier{pool: pool}}
}

func (r *RegistrationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const registrationColumns = `id, event_id, participant_id, group_id, status, reserved_at, confirmed_at, cancelled_at`

func scanRegistration(row pgx.Row) (domain.Registration, error) {
	var (
		reg     domain.Registration
		groupID *string
	)
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.ParticipantID, &groupID,
		&reg.Status, &reg.ReservedAt, &reg.ConfirmedAt, &reg.CancelledAt,
	)
	if err != nil {
		return domain.Registration{}, err
	}
	if groupID != nil {
		reg.GroupID = *groupID
	}
	return reg, nil
}

// CreateRegistration inserts the record; the partial unique index on active
// (event, participant) pairs turns the get-or-create race into a conditional
// insert, so the loser surfaces ErrDuplicateRegistration instead of a second
// row.
func (r *RegistrationRepository) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	const stmt = `
INSERT INTO registrations (id, event_id, participant_id, group_id, status, reserved_at, confirmed_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		reg.ID, reg.EventID, reg.ParticipantID, reg.GroupID, reg.Status, reg.ReservedAt, reg.ConfirmedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRegistration
		}
		if isForeignKeyViolation(err) {
			return domain.ErrPolicyNotFound
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) GetRegistration(ctx context.Context, id string) (domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Registration{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) FindActiveRegistration(ctx context.Context, eventID, participantID string) (*domain.Registration, error) {
	query := `
SELECT ` + registrationColumns + `
FROM registrations
WHERE event_id = $1 AND participant_id = $2 AND status IN ('reserved', 'confirmed')`

	reg, err := scanRegistration(r.queryRow(ctx, query, eventID, participantID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return &reg, nil
}

// TransitionStatus is a compare-and-set: the row moves to the target status
// only if its current status is one of from. Returns nil with no error when
// the CAS misses; callers re-read to map the right failure.
func (r *RegistrationRepository) TransitionStatus(ctx context.Context, id string, from []domain.RegistrationStatus, to domain.RegistrationStatus, at time.Time) (*domain.Registration, error) {
	const stmt = `
UPDATE registrations
SET status = $3,
    confirmed_at = CASE WHEN $3 = 'confirmed' THEN $4 ELSE confirmed_at END,
    cancelled_at = CASE WHEN $3 IN ('cancelled', 'expired') THEN $4 ELSE cancelled_at END
WHERE id = $1 AND status = ANY($2)
RETURNING ` + registrationColumns

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	reg, err := scanRegistration(r.queryRow(ctx, stmt, id, statuses, to, at))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("transition registration: %w", err)
	}
	return &reg, nil
}

// EventsWithOverdue lists events that currently hold at least one reserved
// registration past its timeout. The sweep expires each event separately so
// one event's failure does not hold up the rest.
func (r *RegistrationRepository) EventsWithOverdue(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
SELECT DISTINCT r.event_id
FROM registrations r
JOIN capacity_policies p ON p.event_id = r.event_id
WHERE r.status = 'reserved'
  AND r.group_id IS NULL
  AND p.reservation_timeout_seconds > 0
  AND r.reserved_at + make_interval(secs => p.reservation_timeout_seconds) <= $1`

	rows, err := r.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("events with overdue: %w", err)
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan overdue event: %w", err)
		}
		eventIDs = append(eventIDs, id)
	}
	return eventIDs, rows.Err()
}

// ExpireOverdue atomically expires the event's reserved registrations older
// than its reservation timeout. Group-held seats are governed by the group's
// lifecycle and skipped here.
func (r *RegistrationRepository) ExpireOverdue(ctx context.Context, eventID string, now time.Time) ([]domain.Registration, error) {
	const stmt = `
UPDATE registrations r
SET status = 'expired', cancelled_at = $1
FROM capacity_policies p
WHERE r.event_id = p.event_id
  AND r.event_id = $2
  AND r.status = 'reserved'
  AND r.group_id IS NULL
  AND p.reservation_timeout_seconds > 0
  AND r.reserved_at + make_interval(secs => p.reservation_timeout_seconds) <= $1
RETURNING r.id, r.event_id, r.participant_id, r.group_id, r.status, r.reserved_at, r.confirmed_at, r.cancelled_at`

	rows, err := r.query(ctx, stmt, now, eventID)
	if err != nil {
		return nil, fmt.Errorf("expire overdue: %w", err)
	}
	defer rows.Close()

	var expired []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired: %w", err)
		}
		expired = append(expired, reg)
	}
	return expired, rows.Err()
}
