package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sequencer keeps one counter row per scope. The upsert makes
// increment-and-fetch a single atomic statement.
type Sequencer struct {
	pool *pgxpool.Pool
}

func NewSequencer(pool *pgxpool.Pool) *Sequencer {
	return &Sequencer{pool: pool}
}

func (s *Sequencer) Next(ctx context.Context, scope string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO order_sequences (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value`, scope).Scan(&n)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
