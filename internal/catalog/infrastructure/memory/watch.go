package memory

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

type ChangeFunc func(ctx context.Context, changes []domain.MenuChange) error

// Watch re-reads the fixture at path whenever its modification time moves,
// swaps it into s and hands the resulting changes to notify. A fixture that
// fails to parse is logged and the previous menu stays in place.
func (s *Store) Watch(ctx context.Context, log *slog.Logger, path string, every time.Duration, notify ChangeFunc) error {
	var last time.Time
	if fi, err := os.Stat(path); err == nil {
		last = fi.ModTime()
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		fi, err := os.Stat(path)
		if err != nil {
			log.Warn("menu fixture unreadable", "path", path, "err", err)
			continue
		}
		if !fi.ModTime().After(last) {
			continue
		}
		last = fi.ModTime()

		items, err := LoadFile(path)
		if err != nil {
			log.Error("menu fixture rejected", "path", path, "err", err)
			continue
		}
		changes := s.Replace(items, time.Now().UTC())
		if len(changes) == 0 {
			continue
		}
		log.Info("menu reloaded", "path", path, "changes", len(changes))
		if err := notify(ctx, changes); err != nil {
			log.Error("publish menu changes", "err", err)
		}
	}
}
