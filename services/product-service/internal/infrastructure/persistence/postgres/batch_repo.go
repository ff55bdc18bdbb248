package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bib/services/product-service/internal/domain/port"
	"github.com/bibbank/bib/services/product-service/internal/domain/valueobject"
)

var _ port.PostingBatchRepository = (*BatchRepo)(nil)

// BatchRepo reads committed posting batches.
type BatchRepo struct {
	pool *pgxpool.Pool
}

func NewBatchRepo(pool *pgxpool.Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// ListByAccount returns the newest limit batches of an account, newest first.
func (r *BatchRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]valueobject.PostingInstructionBatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_batch_id, value_timestamp, instructions
		FROM posting_batches
		WHERE account_id = $1
		ORDER BY value_timestamp DESC, created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query posting batches: %w", err)
	}
	defer rows.Close()

	var out []valueobject.PostingInstructionBatch
	for rows.Next() {
		var (
			b   valueobject.PostingInstructionBatch
			raw []byte
		)
		if err := rows.Scan(&b.ID, &b.ClientBatchID, &b.ValueTimestamp, &raw); err != nil {
			return nil, fmt.Errorf("scan posting batch: %w", err)
		}
		if err := json.Unmarshal(raw, &b.Instructions); err != nil {
			return nil, fmt.Errorf("unmarshal posting batch %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
