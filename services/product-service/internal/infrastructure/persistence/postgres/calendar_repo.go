package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

var _ port.CalendarRepository = (*CalendarRepo)(nil)

// CalendarRepo stores holiday calendars.
type CalendarRepo struct {
	pool *pgxpool.Pool
}

func NewCalendarRepo(pool *pgxpool.Pool) *CalendarRepo {
	return &CalendarRepo{pool: pool}
}

// Save replaces every event of calendarID.
func (r *CalendarRepo) Save(ctx context.Context, calendarID string, cal valueobject.Calendar) error {
	return pkgpostgres.WithTransaction(ctx, r.pool, func(tx pkgpostgres.Querier) error {
		if _, err := tx.Exec(ctx, `DELETE FROM calendar_events WHERE calendar_id = $1`, calendarID); err != nil {
			return fmt.Errorf("delete calendar events: %w", err)
		}
		for _, e := range cal {
			_, err := tx.Exec(ctx, `
				INSERT INTO calendar_events (calendar_id, id, start_at, end_at)
				VALUES ($1, $2, $3, $4)
			`, calendarID, e.ID, e.Start, e.End)
			if err != nil {
				return fmt.Errorf("insert calendar event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// FindByID returns the events of calendarID ordered by start. An unknown
// calendar has no events.
func (r *CalendarRepo) FindByID(ctx context.Context, calendarID string) (valueobject.Calendar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_at, end_at FROM calendar_events
		WHERE calendar_id = $1
		ORDER BY start_at
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var cal valueobject.Calendar
	for rows.Next() {
		e := valueobject.CalendarEvent{CalendarID: calendarID}
		if err := rows.Scan(&e.ID, &e.Start, &e.End); err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		cal = append(cal, e)
	}
	return cal, rows.Err()
}
