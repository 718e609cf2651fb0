// Package controllers runs the catalog's background reconciliation
// loops.
//
// garbage_collector: retires REPLACED tablets once clients had time
// to observe the replacement, purges DELETED tablets after a retention
// period and forgets finished replacement requests.
package controllers

import (
	"context"
	"time"

	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

// Controller is one reconciliation loop. Reconcile is called
// periodically while the coordinator holds leadership.
type Controller interface {
	Name() string
	Reconcile(ctx context.Context) error
}

// Elector hands out leadership terms. Each context it sends is
// cancelled when the term ends. The channel is closed when the
// elector gives up, usually because ctx ended.
type Elector interface {
	Campaign(ctx context.Context) <-chan context.Context
}

// SoleLeader is an Elector for a catalog that is the only
// authority. It grants a single term that lasts until ctx ends.
type SoleLeader struct {
}

// Campaign implements Elector.Campaign
func (SoleLeader) Campaign(ctx context.Context) <-chan context.Context {
	terms := make(chan context.Context, 1)
	terms <- ctx
	close(terms)

	return terms
}

// Coordinator runs controllers while it is the leader
type Coordinator struct {
	Controllers []Controller
	Elector     Elector
	Interval    time.Duration
	Logger      *zap.Logger
}

// Run runs the coordinator until ctx ends
func (coordinator *Coordinator) Run(ctx context.Context) {
	for term := range coordinator.campaign(ctx) {
		coordinator.run(term)
	}
}

func (coordinator *Coordinator) run(ctx context.Context) {
	interval := coordinator.Interval

	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		coordinator.reconcile(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reconcile runs every controller once
func (coordinator *Coordinator) reconcile(ctx context.Context) {
	logger := log.OrNop(coordinator.Logger)

	for _, controller := range coordinator.Controllers {
		if ctx.Err() != nil {
			return
		}

		if err := controller.Reconcile(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("reconciliation failed", zap.String("controller", controller.Name()), zap.Error(err))
		}
	}
}

func (coordinator *Coordinator) campaign(ctx context.Context) <-chan context.Context {
	if coordinator.Elector == nil {
		return SoleLeader{}.Campaign(ctx)
	}

	return coordinator.Elector.Campaign(ctx)
}
