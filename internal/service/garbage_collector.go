package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"product-catalog/internal/storage"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GarbageCollector removes orphaned gallery files from storage.
//
// Every orphan gets exactly one deletion attempt, independent of the others.
// Files that could not be removed are handed to the ledger, when one is set,
// for the sweeper to retry.
type GarbageCollector struct {
	store       storage.FileStore
	ledger      DeletionLedger
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewGarbageCollector creates a new instance of GarbageCollector. ledger may be nil.
func NewGarbageCollector(
	store storage.FileStore,
	ledger DeletionLedger,
	concurrency int,
	timeout time.Duration,
	logger *zap.Logger,
) *GarbageCollector {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &GarbageCollector{
		store:       store,
		ledger:      ledger,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// Collect deletes orphans and returns once every deletion has been attempted.
// Cancelling ctx does not abort deletions already started. The returned error
// combines the individual failures; callers are expected to log, not surface it.
func (c *GarbageCollector) Collect(ctx context.Context, orphans []string) error {
	if len(orphans) == 0 {
		return nil
	}

	ctx, cancel := c.detach(ctx)
	defer cancel()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		errs   error
		failed []string
	)
	g.SetLimit(c.concurrency)

	for _, name := range orphans {
		g.Go(func() error {
			if err := c.store.Delete(ctx, name); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				failed = append(failed, name)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if errs == nil {
		c.logger.Debug("Orphaned files deleted", zap.Int("count", len(orphans)))
		return nil
	}

	c.logger.Warn("Failed to delete orphaned files",
		zap.Strings("files", failed),
		zap.Int("failed", len(failed)),
		zap.Int("total", len(orphans)),
		zap.Error(errs),
	)

	if c.ledger != nil {
		ledgerCtx, cancelLedger := c.detach(ctx)
		defer cancelLedger()

		if err := c.ledger.Add(ledgerCtx, failed...); err != nil {
			c.logger.Error("Failed to record pending deletions",
				zap.Strings("files", failed),
				zap.Error(err),
			)
		}
	}

	return errs
}

func (c *GarbageCollector) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
