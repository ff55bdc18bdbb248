package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bib/pkg/events"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/product-service/internal/domain/model"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

// Compile-time interface check.
var _ port.AccountRepository = (*AccountRepo)(nil)

// AccountRepo implements AccountRepository using PostgreSQL. Domain events
// are written to the outbox in the same transaction, addressed to topic.
type AccountRepo struct {
	pool  *pgxpool.Pool
	topic string
}

func NewAccountRepo(pool *pgxpool.Pool, topic string) *AccountRepo {
	return &AccountRepo{pool: pool, topic: topic}
}

func (r *AccountRepo) Save(ctx context.Context, account model.Account) error {
	return pkgpostgres.WithTransaction(ctx, r.pool, func(tx pkgpostgres.Querier) error {
		if err := r.saveAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := saveObservations(ctx, tx, account); err != nil {
			return err
		}
		if err := saveClientTransactions(ctx, tx, account); err != nil {
			return err
		}
		if err := saveBatches(ctx, tx, account); err != nil {
			return err
		}
		if err := saveSchedules(ctx, tx, account); err != nil {
			return err
		}
		return r.saveOutbox(ctx, tx, account)
	})
}

func (r *AccountRepo) saveAccount(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	params, err := json.Marshal(account.Parameters())
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	flags, err := json.Marshal(account.Flags())
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	if account.SavedVersion() == 0 {
		_, err = q.Exec(ctx, `
			INSERT INTO product_accounts (
				id, product_type, tside, denomination, parameters, flags,
				status, opened_at, closed_at, updated_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, account.ID(), string(account.ProductType()), string(account.Tside()), account.Denomination(),
			params, flags, string(account.Status()), account.OpenedAt(), nullTime(account.ClosedAt()),
			account.UpdatedAt(), account.Version())
		if err != nil {
			return fmt.Errorf("insert product account: %w", err)
		}
		return nil
	}

	tag, err := q.Exec(ctx, `
		UPDATE product_accounts SET
			parameters = $3,
			flags = $4,
			status = $5,
			closed_at = $6,
			updated_at = $7,
			version = $8
		WHERE id = $1 AND version = $2
	`, account.ID(), account.SavedVersion(), params, flags, string(account.Status()),
		nullTime(account.ClosedAt()), account.UpdatedAt(), account.Version())
	if err != nil {
		return fmt.Errorf("update product account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s at version %d: %w", account.ID(), account.SavedVersion(), port.ErrVersionConflict)
	}
	return nil
}

func saveObservations(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	for _, o := range account.UnsavedObservations() {
		balances, err := json.Marshal(o.Balances)
		if err != nil {
			return fmt.Errorf("marshal balances: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO balance_observations (account_id, observed_at, balances)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id, observed_at) DO UPDATE SET
				balances = EXCLUDED.balances
		`, account.ID(), o.At, balances)
		if err != nil {
			return fmt.Errorf("upsert balance observation: %w", err)
		}
	}
	return nil
}

func saveClientTransactions(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	for _, ct := range account.UnsavedClientTransactions() {
		instructions, err := json.Marshal(ct.Instructions)
		if err != nil {
			return fmt.Errorf("marshal client transaction: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO client_transactions (account_id, id, instructions, cancelled)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id, id) DO UPDATE SET
				instructions = EXCLUDED.instructions,
				cancelled = EXCLUDED.cancelled
		`, account.ID(), ct.ID, instructions, ct.Cancelled)
		if err != nil {
			return fmt.Errorf("upsert client transaction: %w", err)
		}
	}
	return nil
}

func saveBatches(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	for _, b := range account.UnsavedBatches() {
		instructions, err := json.Marshal(b.Instructions)
		if err != nil {
			return fmt.Errorf("marshal posting batch: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO posting_batches (id, account_id, client_batch_id, value_timestamp, instructions)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, b.ID, account.ID(), b.ClientBatchID, b.ValueTimestamp, instructions)
		if err != nil {
			return fmt.Errorf("insert posting batch: %w", err)
		}
	}
	return nil
}

func saveSchedules(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	for _, s := range account.Schedules() {
		expr, err := json.Marshal(s.Expression)
		if err != nil {
			return fmt.Errorf("marshal schedule expression: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO account_schedules (account_id, event_type, frequency, expression, shift_holidays, next_run_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id, event_type) DO UPDATE SET
				frequency = EXCLUDED.frequency,
				expression = EXCLUDED.expression,
				shift_holidays = EXCLUDED.shift_holidays,
				next_run_time = EXCLUDED.next_run_time
		`, account.ID(), s.EventType, string(s.Frequency), expr, s.ShiftHolidays, nullTime(s.NextRunTime))
		if err != nil {
			return fmt.Errorf("upsert schedule %s: %w", s.EventType, err)
		}
	}
	return nil
}

func (r *AccountRepo) saveOutbox(ctx context.Context, q pkgpostgres.Querier, account model.Account) error {
	for _, evt := range account.Events() {
		entry := events.NewOutboxEntry(r.topic, evt)
		_, err := q.Exec(ctx, `
			INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, topic, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entry.ID, entry.AggregateID, entry.AggregateType, entry.EventType, entry.Topic, entry.Payload, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

// FindByID loads the account and its history from one snapshot.
func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	var s model.AccountState
	err := pkgpostgres.WithSnapshot(ctx, r.pool, func(q pkgpostgres.Querier) error {
		var err error
		if s, err = loadAccount(ctx, q, id); err != nil {
			return err
		}
		if s.Balances, err = observations(ctx, q, id); err != nil {
			return err
		}
		if s.ClientTransactions, err = clientTransactions(ctx, q, id); err != nil {
			return err
		}
		s.Schedules, err = listSchedules(ctx, q, id)
		return err
	})
	if err != nil {
		return model.Account{}, err
	}
	return model.ReconstructAccount(s), nil
}

func loadAccount(ctx context.Context, q pkgpostgres.Querier, id uuid.UUID) (model.AccountState, error) {
	var (
		s        model.AccountState
		params   []byte
		flags    []byte
		closedAt *time.Time
	)
	err := q.QueryRow(ctx, `
		SELECT id, product_type, tside, denomination, parameters, flags,
			status, opened_at, closed_at, updated_at, version
		FROM product_accounts WHERE id = $1
	`, id).Scan(
		&s.ID, &s.ProductType, &s.Tside, &s.Denomination, &params, &flags,
		&s.Status, &s.OpenedAt, &closedAt, &s.UpdatedAt, &s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, port.ErrAccountNotFound
		}
		return s, fmt.Errorf("query product account: %w", err)
	}
	if closedAt != nil {
		s.ClosedAt = *closedAt
	}
	if err := json.Unmarshal(params, &s.Parameters); err != nil {
		return s, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(flags, &s.Flags); err != nil {
		return s, fmt.Errorf("unmarshal flags: %w", err)
	}
	return s, nil
}

func observations(ctx context.Context, q pkgpostgres.Querier, id uuid.UUID) (valueobject.BalanceTimeseries, error) {
	rows, err := q.Query(ctx, `
		SELECT observed_at, balances FROM balance_observations
		WHERE account_id = $1
		ORDER BY observed_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query balance observations: %w", err)
	}
	defer rows.Close()

	var out valueobject.BalanceTimeseries
	for rows.Next() {
		var (
			o   valueobject.BalanceObservation
			raw []byte
		)
		if err := rows.Scan(&o.At, &raw); err != nil {
			return nil, fmt.Errorf("scan balance observation: %w", err)
		}
		if err := json.Unmarshal(raw, &o.Balances); err != nil {
			return nil, fmt.Errorf("unmarshal balances at %s: %w", o.At, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func clientTransactions(ctx context.Context, q pkgpostgres.Querier, id uuid.UUID) ([]valueobject.ClientTransaction, error) {
	rows, err := q.Query(ctx, `
		SELECT id, instructions, cancelled FROM client_transactions
		WHERE account_id = $1
		ORDER BY instructions->0->>'value_timestamp', id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query client transactions: %w", err)
	}
	defer rows.Close()

	var out []valueobject.ClientTransaction
	for rows.Next() {
		var (
			ct  valueobject.ClientTransaction
			raw []byte
		)
		if err := rows.Scan(&ct.ID, &raw, &ct.Cancelled); err != nil {
			return nil, fmt.Errorf("scan client transaction: %w", err)
		}
		if err := json.Unmarshal(raw, &ct.Instructions); err != nil {
			return nil, fmt.Errorf("unmarshal client transaction %s: %w", ct.ID, err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
