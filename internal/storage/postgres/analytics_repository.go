package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/domain"
)

type AnalyticsRepository struct {
	querier
}

var _ app.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{querier{pool: pool}}
}

func (r *AnalyticsRepository) CountRegistrationsByStatus(ctx context.Context, eventID string) (map[domain.RegistrationStatus]int, error) {
	rows, err := r.query(ctx,
		`SELECT status, COUNT(*) FROM registrations WHERE event_id = $1 GROUP BY status`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RegistrationStatus]int)
	for rows.Next() {
		var (
			status domain.RegistrationStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *AnalyticsRepository) CountWaitlist(ctx context.Context, eventID string) (waiting, promoted int, err error) {
	err = r.queryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE NOT promoted),
	COUNT(*) FILTER (WHERE promoted)
FROM waitlist_entries
WHERE event_id = $1`, eventID).Scan(&waiting, &promoted)
	if err != nil {
		return 0, 0, fmt.Errorf("count waitlist: %w", err)
	}
	return waiting, promoted, nil
}
