package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"go.uber.org/zap"
)

// Heartbeat processes a tablet server's report of the tablet replicas
// it hosts. It marks the server live, moves CREATING tablets the server
// reports RUNNING to RUNNING and tells the server which replicas it must
// create and which it must delete. A reported tablet is deleted if it is
// unknown, no longer live or no longer assigned to the server.
func (catalog *Catalog) Heartbeat(ctx context.Context, request *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error) {
	if request.ServerId == "" {
		return nil, fmt.Errorf("%w: server id is required", ErrInvalidArgument)
	}

	logger, ctx := catalog.requestLogger(ctx, zap.String("server_id", request.ServerId))
	catalog.tservers.Touch(request.ServerId, catalog.clock())

	records, err := catalog.store.List(ctx)

	if err != nil {
		return nil, wrapError("could not list tablets", err)
	}

	byID := make(map[string]*catalogpb.TabletRecord, len(records))

	for _, record := range records {
		byID[record.TabletId] = record
	}

	response := &catalogpb.HeartbeatResponse{
		TabletsToCreate: []*catalogpb.TabletRecord{},
		TabletsToDelete: []string{},
	}
	reported := make(map[string]bool, len(request.Reports))

	for _, report := range request.Reports {
		reported[report.TabletId] = true
		record, ok := byID[report.TabletId]

		if !ok || !record.Live() || !record.HasReplica(request.ServerId) {
			response.TabletsToDelete = append(response.TabletsToDelete, report.TabletId)

			continue
		}

		if record.State == catalogpb.CREATING && report.State == catalogpb.RUNNING {
			catalog.markRunning(ctx, logger, record)
		}
	}

	for _, record := range records {
		if record.Live() && record.HasReplica(request.ServerId) && !reported[record.TabletId] {
			response.TabletsToCreate = append(response.TabletsToCreate, record)
		}
	}

	sort.Strings(response.TabletsToDelete)

	return response, nil
}

// markRunning moves a CREATING tablet to RUNNING. Losing a race is
// harmless since the next heartbeat reports the tablet again.
func (catalog *Catalog) markRunning(ctx context.Context, logger *zap.Logger, record *catalogpb.TabletRecord) {
	running := record.Clone()
	running.State = catalogpb.RUNNING
	running.StateTime = catalog.clock().UnixNano()

	if _, err := catalog.store.CompareAndSwap(ctx, record.TabletId, record.Version, running); err != nil {
		if errors.Is(err, metastore.ErrVersionConflict) || errors.Is(err, metastore.ErrIllegalTransition) {
			logger.Debug("tablet changed before it could be marked running", zap.String("tablet_id", record.TabletId), zap.Error(err))
		} else {
			logger.Warn("could not mark tablet running", zap.String("tablet_id", record.TabletId), zap.Error(err))
		}

		return
	}

	logger.Info("tablet is running", zap.String("tablet_id", record.TabletId))
}
