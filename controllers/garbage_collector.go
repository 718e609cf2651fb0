package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

// TabletCatalog is the part of the catalog the
// garbage collector needs
type TabletCatalog interface {
	Store() *metastore.Store
	Now() time.Time
	ExpireRequests(deadline time.Time) int
}

var _ Controller = (*GarbageCollector)(nil)

// GarbageCollector moves REPLACED tablets to DELETED after GracePeriod,
// purges DELETED tablets after Retention and forgets finished
// replacement requests after RequestTTL.
type GarbageCollector struct {
	Catalog     TabletCatalog
	GracePeriod time.Duration
	Retention   time.Duration
	RequestTTL  time.Duration
	Logger      *zap.Logger
}

// Name implements Controller.Name
func (gc *GarbageCollector) Name() string {
	return "garbage_collector"
}

// Reconcile implements Controller.Reconcile
func (gc *GarbageCollector) Reconcile(ctx context.Context) error {
	logger := log.OrNop(gc.Logger)
	store := gc.Catalog.Store()
	now := gc.Catalog.Now()
	records, err := store.List(ctx)

	if err != nil {
		return fmt.Errorf("could not list tablets: %w", err)
	}

	var firstErr error

	for _, record := range records {
		age := now.Sub(time.Unix(0, record.StateTime))

		switch {
		case record.State == catalogpb.REPLACED && age >= gc.GracePeriod:
			deleted := record.Clone()
			deleted.State = catalogpb.DELETED
			deleted.StateTime = now.UnixNano()

			if _, err := store.CompareAndSwap(ctx, record.TabletId, record.Version, deleted); err != nil {
				firstErr = keepFirst(firstErr, err)

				continue
			}

			logger.Info("deleted replaced tablet", zap.String("tablet_id", record.TabletId))
		case record.State == catalogpb.DELETED && age >= gc.Retention:
			if err := store.Purge(ctx, record.TabletId, record.Version); err != nil {
				firstErr = keepFirst(firstErr, err)

				continue
			}

			logger.Info("purged tablet", zap.String("tablet_id", record.TabletId))
		}
	}

	if expired := gc.Catalog.ExpireRequests(now.Add(-gc.RequestTTL)); expired > 0 {
		logger.Debug("expired replacement requests", zap.Int("count", expired))
	}

	return firstErr
}

// keepFirst ignores version conflicts, which only mean
// someone else changed the record first
func keepFirst(first error, err error) error {
	if first != nil || errors.Is(err, metastore.ErrVersionConflict) {
		return first
	}

	return err
}
