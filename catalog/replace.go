package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/catalog/placement"
	"github.com/jrife/tablets/utils/uuid"
	"go.uber.org/zap"
)

// replaceAttempts bounds the read-modify-write loop of a
// replacement. One retry tolerates a single benign race.
const replaceAttempts = 2

// ReplaceTablet retires a RUNNING tablet and atomically creates an empty
// successor covering the same partition range. It returns the id of the
// successor. It fails with
//   - ErrNotFound if the tablet does not exist or was already replaced
//   - ErrIllegalState if the tablet is not RUNNING yet or is mid-transition
//   - ErrConflict if another replacement of the same tablet is in flight
//     or the tablet kept changing underneath this one
//   - ErrResourceExhausted if there are not enough live tablet servers
//
// A call that returns a context error has an unknown outcome. Callers
// should use ReplacementStatus or GetTablet to learn it rather than retry.
func (catalog *Catalog) ReplaceTablet(ctx context.Context, tabletID string) (string, error) {
	logger, ctx := catalog.requestLogger(ctx, zap.String("tablet_id", tabletID), zap.String("request_id", uuid.MustUUID()))

	if tabletID == "" {
		return "", fmt.Errorf("%w: tablet id is required", ErrInvalidArgument)
	}

	previous, err := catalog.requests.begin(tabletID, catalog.clock())

	if err != nil {
		logger.Info("rejected replacement request", zap.Error(err))

		return "", err
	}

	newTabletID, err := catalog.replace(ctx, tabletID)
	catalog.requests.finish(tabletID, newTabletID, err, catalog.clock(), previous)

	if err != nil {
		logger.Info("replacement failed", zap.Error(err))

		return "", err
	}

	logger.Info("replaced tablet", zap.String("new_tablet_id", newTabletID))

	return newTabletID, nil
}

// ReplacementStatus returns the most recent replacement request for
// a tablet. Finished requests are forgotten after a while.
func (catalog *Catalog) ReplacementStatus(ctx context.Context, tabletID string) (*catalogpb.ReplacementRequest, error) {
	request, ok := catalog.requests.get(tabletID)

	if !ok {
		return nil, fmt.Errorf("%w: no replacement request for tablet %s", ErrNotFound, tabletID)
	}

	return request, nil
}

// ExpireRequests forgets finished replacement requests that
// finished before deadline
func (catalog *Catalog) ExpireRequests(deadline time.Time) int {
	return catalog.requests.expire(deadline)
}

// replace runs the replacement state machine for one tablet
// without any per-id serialization
func (catalog *Catalog) replace(ctx context.Context, tabletID string) (string, error) {
	logger, ctx := catalog.requestLogger(ctx)

	for attempt := 1; attempt <= replaceAttempts; attempt++ {
		newTabletID, err := catalog.tryReplace(ctx, tabletID)

		if err == nil {
			return newTabletID, nil
		}

		if !errors.Is(err, metastore.ErrVersionConflict) {
			return "", err
		}

		logger.Debug("tablet changed during replacement", zap.Int("attempt", attempt), zap.Error(err))
	}

	return "", fmt.Errorf("%w: tablet %s changed concurrently %d times", ErrConflict, tabletID, replaceAttempts)
}

// tryReplace does one read-modify-write of a replacement. It returns
// metastore.ErrVersionConflict unwrapped if it lost a race.
func (catalog *Catalog) tryReplace(ctx context.Context, tabletID string) (string, error) {
	old, err := catalog.store.Get(ctx, tabletID)

	if err != nil {
		return "", wrapError("could not read tablet", err)
	}

	switch old.State {
	case catalogpb.RUNNING:
	case catalogpb.REPLACED, catalogpb.DELETED:
		return "", fmt.Errorf("%w: tablet %s is %s", ErrNotFound, tabletID, old.State)
	default:
		return "", fmt.Errorf("%w: tablet %s is %s", ErrIllegalState, tabletID, old.State)
	}

	table, err := catalog.store.GetTable(ctx, old.TableId)

	if err != nil {
		return "", wrapError("could not read table", err)
	}

	snapshot, dead, err := catalog.loadSnapshot(ctx)

	if err != nil {
		return "", wrapError("could not read server load", err)
	}

	replicas, err := placement.NewPlanner(snapshot).PlanReplicas(old.PartitionRange, int(table.ReplicationFactor), dead, placement.WithAvoid(old.ReplicaSet...))

	if err != nil {
		return "", wrapError("could not place replicas", err)
	}

	now := catalog.clock().UnixNano()
	newTabletID := uuid.MustID()

	replaced := old.Clone()
	replaced.State = catalogpb.REPLACED
	replaced.SuccessorId = newTabletID
	replaced.StateTime = now

	successor := &catalogpb.TabletRecord{
		TabletId:       newTabletID,
		TableId:        old.TableId,
		PartitionRange: old.PartitionRange.Clone(),
		State:          catalogpb.CREATING,
		ReplicaSet:     replicas,
		PredecessorId:  old.TabletId,
		StateTime:      now,
	}

	if catalog.beforeCommit != nil {
		catalog.beforeCommit(ctx, tabletID)
	}

	err = catalog.store.Commit(ctx, metastore.Swap(old.Version, replaced), metastore.Swap(0, successor))

	if errors.Is(err, metastore.ErrVersionConflict) {
		return "", err
	}

	if err != nil {
		return "", wrapError("could not commit replacement", err)
	}

	return newTabletID, nil
}
