package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/walkup-orders/pkg/apperr"
)

// scopeTTL keeps yesterday's counter around long enough for late requests in
// a different timezone, then lets redis drop it.
const scopeTTL = 48 * time.Hour

// Sequencer hands out order numbers from redis INCR, so several order-service
// replicas share one counter per scope.
type Sequencer struct {
	rdb *redis.Client
}

func NewSequencer(rdb *redis.Client) *Sequencer {
	return &Sequencer{rdb: rdb}
}

func (s *Sequencer) Next(ctx context.Context, scope string) (int64, error) {
	key := "orderseq:" + scope
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, scopeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, apperr.Transient("sequencer_unavailable", "order numbering is temporarily unavailable, retry", err)
	}
	return incr.Val(), nil
}
