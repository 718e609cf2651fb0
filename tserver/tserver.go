// Package tserver is an in-process tablet server. It hosts tablet
// replicas whose rows live in memory kv stores, reports them to the
// catalog through heartbeats and follows the catalog's instructions
// to create or delete replicas.
package tserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/keys"
	"github.com/jrife/tablets/storage/kv/plugins/memory"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

var (
	// ErrTabletNotFound is returned for tablets the server does not
	// host, including tablets it deleted after they were replaced.
	// Clients treat it as a signal that their cached location is stale.
	ErrTabletNotFound = errors.New("tablet not found")
	// ErrKeyOutOfRange is returned when a row key falls outside
	// of the tablet's partition range
	ErrKeyOutOfRange = errors.New("key is outside of the tablet's partition range")
	// ErrServerStopped is returned once the server was stopped
	ErrServerStopped = errors.New("tablet server was stopped")
)

type replica struct {
	record *catalogpb.TabletRecord
	rows   kv.Store
}

// Server is a tablet server. It is safe for concurrent use.
type Server struct {
	id       string
	logger   *zap.Logger
	mu       sync.RWMutex
	replicas map[string]*replica
	stopped  bool
}

// New creates a tablet server with no replicas
func New(id string, logger *zap.Logger) *Server {
	return &Server{
		id:       id,
		logger:   log.OrNop(logger).With(zap.String("server_id", id)),
		replicas: map[string]*replica{},
	}
}

// ID returns the server's id
func (server *Server) ID() string {
	return server.id
}

// CreateTablet starts a replica of a tablet. Replicas start RUNNING.
// Creating a replica that already exists has no effect.
func (server *Server) CreateTablet(record *catalogpb.TabletRecord) error {
	server.mu.Lock()
	defer server.mu.Unlock()

	if server.stopped {
		return ErrServerStopped
	}

	if _, ok := server.replicas[record.TabletId]; ok {
		return nil
	}

	server.replicas[record.TabletId] = &replica{record: record.Clone(), rows: memory.New()}
	server.logger.Info("created tablet replica", zap.String("tablet_id", record.TabletId), zap.String("range", record.PartitionRange.Format()))

	return nil
}

// DeleteTablet deletes a replica and all its rows. It waits for
// writes in flight to the replica so that no write is acknowledged
// after the replica is gone.
func (server *Server) DeleteTablet(tabletID string) error {
	server.mu.Lock()
	defer server.mu.Unlock()

	replica, ok := server.replicas[tabletID]

	if !ok {
		return nil
	}

	delete(server.replicas, tabletID)
	server.logger.Info("deleted tablet replica", zap.String("tablet_id", tabletID))

	return replica.rows.Delete()
}

// Write writes a row to a tablet replica
func (server *Server) Write(ctx context.Context, tabletID string, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	server.mu.RLock()
	defer server.mu.RUnlock()

	replica, err := server.replica(tabletID)

	if err != nil {
		return err
	}

	if !replica.record.PartitionRange.Contains(key) {
		return fmt.Errorf("%w: key %q, tablet %s covers %s", ErrKeyOutOfRange, key, tabletID, replica.record.PartitionRange.Format())
	}

	transaction, err := replica.rows.Begin(true)

	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer transaction.Rollback()

	if err := transaction.Put(key, value); err != nil {
		return fmt.Errorf("could not write row: %w", err)
	}

	return transaction.Commit()
}

// Read reads a row from a tablet replica. It returns nil
// if the row does not exist.
func (server *Server) Read(ctx context.Context, tabletID string, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	server.mu.RLock()
	defer server.mu.RUnlock()

	replica, err := server.replica(tabletID)

	if err != nil {
		return nil, err
	}

	if !replica.record.PartitionRange.Contains(key) {
		return nil, fmt.Errorf("%w: key %q, tablet %s covers %s", ErrKeyOutOfRange, key, tabletID, replica.record.PartitionRange.Format())
	}

	transaction, err := replica.rows.Begin(false)

	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer transaction.Rollback()

	return transaction.Get(key)
}

// Count returns the number of rows in a tablet replica
func (server *Server) Count(tabletID string) (int, error) {
	server.mu.RLock()
	defer server.mu.RUnlock()

	replica, err := server.replica(tabletID)

	if err != nil {
		return 0, err
	}

	transaction, err := replica.rows.Begin(false)

	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer transaction.Rollback()

	iter, err := transaction.Keys(keys.All(), kv.SortOrderAsc)

	if err != nil {
		return 0, fmt.Errorf("could not scan rows: %w", err)
	}

	count := 0

	for iter.Next() {
		count++
	}

	return count, iter.Error()
}

// Tablets reports every replica the server hosts, sorted by tablet id
func (server *Server) Tablets() []*catalogpb.TabletReport {
	server.mu.RLock()
	defer server.mu.RUnlock()

	reports := make([]*catalogpb.TabletReport, 0, len(server.replicas))

	for tabletID := range server.replicas {
		reports = append(reports, &catalogpb.TabletReport{TabletId: tabletID, State: catalogpb.RUNNING})
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].TabletId < reports[j].TabletId })

	return reports
}

// Stop deletes every replica. Afterwards all calls fail.
func (server *Server) Stop() {
	server.mu.Lock()
	defer server.mu.Unlock()

	for tabletID, replica := range server.replicas {
		replica.rows.Delete()
		delete(server.replicas, tabletID)
	}

	server.stopped = true
}

func (server *Server) replica(tabletID string) (*replica, error) {
	if server.stopped {
		return nil, ErrServerStopped
	}

	replica, ok := server.replicas[tabletID]

	if !ok {
		return nil, fmt.Errorf("%w: %s on server %s", ErrTabletNotFound, tabletID, server.id)
	}

	return replica, nil
}
