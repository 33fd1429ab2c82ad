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

type WaitlistRepository struct {
	querier
}

var (
	_ app.WaitlistRepository = (*WaitlistRepository)(nil)
	_ app.PromotionWaitlist  = (*WaitlistRepository)(nil)
)

func NewWaitlistRepository(pool *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{querier{pool: pool}}
}

func (r *WaitlistRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetPolicyForUpdate locks the event's policy row for the current
// transaction, serializing position assignment per event.
func (r *WaitlistRepository) GetPolicyForUpdate(ctx context.Context, eventID string) (domain.CapacityPolicy, error) {
	const query = `
SELECT event_id, max_capacity, warning_threshold, allow_reservations, reservation_timeout_seconds, created_at
FROM capacity_policies
WHERE event_id = $1
FOR UPDATE`

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
		return domain.CapacityPolicy{}, fmt.Errorf("get policy for update: %w", err)
	}
	p.ReservationTimeout = time.Duration(timeoutSeconds) * time.Second
	return p, nil
}

const waitlistColumns = `id, event_id, participant_id, position, priority, joined_at, promoted`

func scanEntry(row pgx.Row) (domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	err := row.Scan(&e.ID, &e.EventID, &e.ParticipantID, &e.Position, &e.Priority, &e.JoinedAt, &e.Promoted)
	return e, err
}

func (r *WaitlistRepository) FindEntry(ctx context.Context, eventID, participantID string) (*domain.WaitlistEntry, error) {
	query := `
SELECT ` + waitlistColumns + `
FROM waitlist_entries
WHERE event_id = $1 AND participant_id = $2 AND NOT promoted`

	e, err := scanEntry(r.queryRow(ctx, query, eventID, participantID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find waitlist entry: %w", err)
	}
	return &e, nil
}

// NextPosition returns the next insertion sequence number for the event.
// Callers must hold the policy row lock so two joins never compute the same
// value.
func (r *WaitlistRepository) NextPosition(ctx context.Context, eventID string) (int, error) {
	var pos int
	err := r.queryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE event_id = $1`,
		eventID,
	).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return pos, nil
}

func (r *WaitlistRepository) CreateEntry(ctx context.Context, e domain.WaitlistEntry) error {
	const stmt = `
INSERT INTO waitlist_entries (id, event_id, participant_id, position, priority, joined_at, promoted)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

	_, err := r.exec(ctx, stmt, e.ID, e.EventID, e.ParticipantID, e.Position, e.Priority, e.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyWaitlisted
		}
		if isForeignKeyViolation(err) {
			return domain.ErrPolicyNotFound
		}
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// DeleteEntry removes a non-promoted entry. Stored positions of later entries
// stay as assigned; ranks are recomputed on read.
func (r *WaitlistRepository) DeleteEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	tag, err := r.exec(ctx,
		`DELETE FROM waitlist_entries WHERE event_id = $1 AND participant_id = $2 AND NOT promoted`,
		eventID, participantID,
	)
	if err != nil {
		return false, fmt.Errorf("delete waitlist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Rank returns the 1-based rank of a non-promoted entry under the promotion
// ordering (priority desc, position asc).
func (r *WaitlistRepository) Rank(ctx context.Context, eventID, participantID string) (int, error) {
	const query = `
SELECT (
	SELECT COUNT(*)
	FROM waitlist_entries w
	WHERE w.event_id = me.event_id AND NOT w.promoted
	  AND (w.priority > me.priority OR (w.priority = me.priority AND w.position < me.position))
) + 1
FROM waitlist_entries me
WHERE me.event_id = $1 AND me.participant_id = $2 AND NOT me.promoted`

	var rank int
	err := r.queryRow(ctx, query, eventID, participantID).Scan(&rank)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotWaitlisted
		}
		return 0, fmt.Errorf("waitlist rank: %w", err)
	}
	return rank, nil
}

func (r *WaitlistRepository) NextCandidates(ctx context.Context, eventID string, limit int) ([]domain.WaitlistEntry, error) {
	query := `
SELECT ` + waitlistColumns + `
FROM waitlist_entries
WHERE event_id = $1 AND NOT promoted
ORDER BY priority DESC, position ASC
LIMIT $2`

	rows, err := r.query(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("next candidates: %w", err)
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *WaitlistRepository) MarkPromoted(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `UPDATE waitlist_entries SET promoted = TRUE WHERE id = $1 AND NOT promoted`, id)
	if err != nil {
		return fmt.Errorf("mark promoted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotWaitlisted
	}
	return nil
}

// EventsWithWaiters feeds the promotion engine's periodic safety net.
func (r *WaitlistRepository) EventsWithWaiters(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, `SELECT DISTINCT event_id FROM waitlist_entries WHERE NOT promoted`)
	if err != nil {
		return nil, fmt.Errorf("events with waiters: %w", err)
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		eventIDs = append(eventIDs, id)
	}
	return eventIDs, rows.Err()
}
