package service

import (
	"context"
	"fmt"
	"time"

	"product-catalog/internal/storage"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sweeper periodically retries the deletions recorded in the ledger.
type Sweeper struct {
	ledger   DeletionLedger
	store    storage.FileStore
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a new instance of Sweeper. A non-positive interval disables Run.
func NewSweeper(ledger DeletionLedger, store storage.FileStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Deletion sweeper disabled")
		return
	}

	s.logger.Info("Deletion sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Deletion sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("Deletion sweep incomplete", zap.Int("removed", removed), zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("Deletion sweep finished", zap.Int("removed", removed))
			}
		}
	}
}

// Sweep makes one deletion attempt per pending file and clears the ones that
// succeeded from the ledger. It returns how many were cleared.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := s.ledger.Pending(ctx)
	if err != nil {
		return 0, err
	}

	var (
		done []string
		errs error
	)
	for _, name := range pending {
		if err := s.store.Delete(ctx, name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		done = append(done, name)
	}

	if err := s.ledger.Remove(ctx, done...); err != nil {
		return 0, multierr.Append(errs, err)
	}

	return len(done), errs
}
