package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const HeaderKey = "Idempotency-Key"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen marks key as observed and reports whether it already was.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Release forgets key so a later Seen reports it as new.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

type Checker interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// KeyStore is a Checker whose keys can be handed back.
type KeyStore interface {
	Checker
	Release(ctx context.Context, key string) error
}

// Middleware rejects a repeated request carrying the same Idempotency-Key.
// The key is only kept when the request succeeds (2xx); any other outcome
// releases it so the caller can retry. Requests without the header pass
// through. If the store is unreachable the request is let through; duplicate
// suppression is best effort.
func Middleware(log *slog.Logger, store KeyStore, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			key = fmt.Sprintf("idem:http:%s:%s", scope, key)
			seen, err := store.Seen(r.Context(), key)
			if err != nil {
				log.Warn("idempotency check failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":{"code":"duplicate_request","message":"request with this idempotency key was already accepted"}}`))
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			succeeded := false
			defer func() {
				if succeeded {
					return
				}
				if err := store.Release(context.WithoutCancel(r.Context()), key); err != nil {
					log.Warn("idempotency key release failed", "status", ww.Status(), "err", err)
				}
			}()

			next.ServeHTTP(ww, r)
			status := ww.Status()
			succeeded = status == 0 || (status >= 200 && status < 300)
		})
	}
}
