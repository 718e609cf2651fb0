package tserver

import (
	"context"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

// Catalog is the heartbeat endpoint of the catalog
type Catalog interface {
	Heartbeat(ctx context.Context, request *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error)
}

// Heartbeater periodically reports a server's replicas to
// the catalog and applies the catalog's instructions
type Heartbeater struct {
	Server   *Server
	Catalog  Catalog
	Interval time.Duration
	Logger   *zap.Logger
}

// Run heartbeats until ctx ends. Failed heartbeats are
// logged and retried on the next tick.
func (heartbeater *Heartbeater) Run(ctx context.Context) {
	logger := log.OrNop(heartbeater.Logger)
	interval := heartbeater.Interval

	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := heartbeater.Beat(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("heartbeat failed", zap.String("server_id", heartbeater.Server.ID()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Beat sends one heartbeat. If the catalog assigned new replicas
// the server creates them and reports them right away so that
// they start serving without waiting for the next tick.
func (heartbeater *Heartbeater) Beat(ctx context.Context) error {
	created, err := heartbeater.beat(ctx)

	if err != nil || !created {
		return err
	}

	_, err = heartbeater.beat(ctx)

	return err
}

func (heartbeater *Heartbeater) beat(ctx context.Context) (bool, error) {
	server := heartbeater.Server
	response, err := heartbeater.Catalog.Heartbeat(ctx, &catalogpb.HeartbeatRequest{
		ServerId: server.ID(),
		Reports:  server.Tablets(),
	})

	if err != nil {
		return false, err
	}

	for _, tabletID := range response.TabletsToDelete {
		if err := server.DeleteTablet(tabletID); err != nil {
			return false, err
		}
	}

	for _, record := range response.TabletsToCreate {
		if err := server.CreateTablet(record); err != nil {
			return false, err
		}
	}

	return len(response.TabletsToCreate) > 0, nil
}
