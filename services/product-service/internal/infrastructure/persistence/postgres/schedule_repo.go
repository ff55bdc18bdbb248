package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

var _ port.ScheduleRepository = (*ScheduleRepo)(nil)

// ScheduleRepo reads account schedules for the scheduler.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

func (r *ScheduleRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]port.DueSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.account_id, s.event_type, s.next_run_time
		FROM account_schedules s
		JOIN product_accounts a ON a.id = s.account_id
		WHERE a.status = 'OPEN'
			AND s.next_run_time IS NOT NULL
			AND s.next_run_time <= $1
		ORDER BY s.next_run_time, s.account_id, s.event_type
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer rows.Close()

	var due []port.DueSchedule
	for rows.Next() {
		var d port.DueSchedule
		if err := rows.Scan(&d.AccountID, &d.EventType, &d.NextRunTime); err != nil {
			return nil, fmt.Errorf("scan due schedule: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *ScheduleRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]valueobject.EventSchedule, error) {
	return listSchedules(ctx, r.pool, accountID)
}

func listSchedules(ctx context.Context, q pkgpostgres.Querier, accountID uuid.UUID) ([]valueobject.EventSchedule, error) {
	rows, err := q.Query(ctx, `
		SELECT event_type, frequency, expression, shift_holidays, next_run_time
		FROM account_schedules
		WHERE account_id = $1
		ORDER BY event_type
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []valueobject.EventSchedule
	for rows.Next() {
		var (
			s    valueobject.EventSchedule
			expr []byte
			next *time.Time
		)
		if err := rows.Scan(&s.EventType, &s.Frequency, &expr, &s.ShiftHolidays, &next); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if err := json.Unmarshal(expr, &s.Expression); err != nil {
			return nil, fmt.Errorf("unmarshal schedule %s: %w", s.EventType, err)
		}
		if next != nil {
			s.NextRunTime = *next
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
