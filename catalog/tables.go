package catalog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/catalog/placement"
	"github.com/jrife/tablets/utils/uuid"
	"go.uber.org/zap"
)

// CreateTable creates a table whose key space is divided by
// splitPoints into len(splitPoints)+1 tablets. Split points must
// be non-empty and strictly increasing. A replicationFactor of 0
// uses the catalog's default. The table and all its tablets are
// created in a single commit, with tablets in state CREATING.
func (catalog *Catalog) CreateTable(ctx context.Context, name string, splitPoints [][]byte, replicationFactor int) (*catalogpb.TableRecord, []*catalogpb.TabletRecord, error) {
	if replicationFactor == 0 {
		replicationFactor = catalog.replicationFactor
	}

	if replicationFactor < 0 {
		return nil, nil, fmt.Errorf("%w: replication factor must be positive", ErrInvalidArgument)
	}

	for i, split := range splitPoints {
		if len(split) == 0 {
			return nil, nil, fmt.Errorf("%w: split point %d is empty", ErrInvalidArgument, i)
		}

		if i > 0 && bytes.Compare(splitPoints[i-1], split) >= 0 {
			return nil, nil, fmt.Errorf("%w: split points must be strictly increasing", ErrInvalidArgument)
		}
	}

	snapshot, dead, err := catalog.loadSnapshot(ctx)

	if err != nil {
		return nil, nil, wrapError("could not read server load", err)
	}

	now := catalog.clock().UnixNano()
	table := &catalogpb.TableRecord{
		TableId:           uuid.MustID(),
		Name:              name,
		ReplicationFactor: int32(replicationFactor),
		CreateTime:        now,
	}

	planner := placement.NewPlanner(snapshot)
	ops := []metastore.Op{metastore.CreateTable(table)}
	tablets := make([]*catalogpb.TabletRecord, 0, len(splitPoints)+1)

	for i := 0; i <= len(splitPoints); i++ {
		r := &catalogpb.PartitionRange{}

		if i > 0 {
			r.Lower = splitPoints[i-1]
		}

		if i < len(splitPoints) {
			r.Upper = splitPoints[i]
		}

		replicas, err := planner.PlanReplicas(r, replicationFactor, dead)

		if err != nil {
			return nil, nil, wrapError("could not place replicas", err)
		}

		planner.Assign(replicas)

		tablet := &catalogpb.TabletRecord{
			TabletId:       uuid.MustID(),
			TableId:        table.TableId,
			PartitionRange: r.Clone(),
			State:          catalogpb.CREATING,
			ReplicaSet:     replicas,
			StateTime:      now,
		}

		ops = append(ops, metastore.Swap(0, tablet))
		tablets = append(tablets, tablet)
	}

	if err := catalog.store.Commit(ctx, ops...); err != nil {
		return nil, nil, wrapError("could not create table", err)
	}

	for _, tablet := range tablets {
		tablet.Version = 1
	}

	catalog.logger.Info("created table", zap.String("table_id", table.TableId), zap.String("name", name), zap.Int("tablets", len(tablets)))

	return table, tablets, nil
}
