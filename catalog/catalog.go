// Package catalog implements the catalog manager: the single
// authority that owns tablet metadata. It serializes replacement
// requests per tablet id, drives the replacement state machine,
// resolves row keys to tablets and processes tablet server heartbeats.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/catalog/placement"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

const (
	// DefaultReplicationFactor is used for tables
	// created without a replication factor
	DefaultReplicationFactor = 3
	// DefaultHeartbeatTimeout is how long a tablet server is
	// considered live after its last heartbeat
	DefaultHeartbeatTimeout = 3 * time.Second
)

// Config configures a catalog
type Config struct {
	// Store is the tablet metadata store. Required.
	Store *metastore.Store
	// Logger defaults to a no-op logger
	Logger *zap.Logger
	// ReplicationFactor is used for tables created
	// without one. Defaults to DefaultReplicationFactor.
	ReplicationFactor int
	// HeartbeatTimeout defaults to DefaultHeartbeatTimeout
	HeartbeatTimeout time.Duration
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Catalog is the catalog manager. All of its methods
// are safe for concurrent use.
type Catalog struct {
	store             *metastore.Store
	logger            *zap.Logger
	replicationFactor int
	clock             func() time.Time
	tservers          *TabletServerRegistry
	requests          *requestRegistry
	// beforeCommit runs between the read and the commit of a
	// replacement. Tests use it to race the commit.
	beforeCommit func(ctx context.Context, tabletID string)
}

// New creates a catalog
func New(config Config) (*Catalog, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("%w: a metadata store is required", ErrInvalidArgument)
	}

	if config.ReplicationFactor == 0 {
		config.ReplicationFactor = DefaultReplicationFactor
	}

	if config.ReplicationFactor < 0 {
		return nil, fmt.Errorf("%w: replication factor must be positive", ErrInvalidArgument)
	}

	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Catalog{
		store:             config.Store,
		logger:            log.OrNop(config.Logger).With(zap.String("component", "catalog")),
		replicationFactor: config.ReplicationFactor,
		clock:             config.Clock,
		tservers:          NewTabletServerRegistry(config.HeartbeatTimeout),
		requests:          newRequestRegistry(),
	}, nil
}

// Store returns the catalog's metadata store
func (catalog *Catalog) Store() *metastore.Store {
	return catalog.store
}

// TabletServers returns the registry of tablet servers
func (catalog *Catalog) TabletServers() *TabletServerRegistry {
	return catalog.tservers
}

// Now returns the current time according to the catalog's clock
func (catalog *Catalog) Now() time.Time {
	return catalog.clock()
}

// GetTablet returns a tablet record in any state
func (catalog *Catalog) GetTablet(ctx context.Context, tabletID string) (*catalogpb.TabletRecord, error) {
	record, err := catalog.store.Get(ctx, tabletID)

	if err != nil {
		return nil, wrapError("could not get tablet", err)
	}

	return record, nil
}

// ListTablets lists the tablets of a table. REPLACED and DELETED
// tablets are only included if includeInactive is true.
func (catalog *Catalog) ListTablets(ctx context.Context, tableID string, includeInactive bool) ([]*catalogpb.TabletRecord, error) {
	if _, err := catalog.store.GetTable(ctx, tableID); err != nil {
		return nil, wrapError("could not list tablets", err)
	}

	records, err := catalog.store.ListByTable(ctx, tableID)

	if err != nil {
		return nil, wrapError("could not list tablets", err)
	}

	if includeInactive {
		return records, nil
	}

	live := []*catalogpb.TabletRecord{}

	for _, record := range records {
		if record.Live() {
			live = append(live, record)
		}
	}

	return live, nil
}

// ResolveKey returns the live tablet of a table whose partition
// range contains key. Replaced tablets are never returned.
func (catalog *Catalog) ResolveKey(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error) {
	records, err := catalog.ListTablets(ctx, tableID, false)

	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.PartitionRange.Contains(key) {
			return record, nil
		}
	}

	return nil, fmt.Errorf("%w: no live tablet of table %s contains key %q", ErrNotFound, tableID, key)
}

// ListTables lists all tables
func (catalog *Catalog) ListTables(ctx context.Context) ([]*catalogpb.TableRecord, error) {
	tables, err := catalog.store.ListTables(ctx)

	if err != nil {
		return nil, wrapError("could not list tables", err)
	}

	return tables, nil
}

// loadSnapshot counts the live tablets hosted by each live
// tablet server. It also returns the servers that stopped
// heartbeating so placement can exclude them.
func (catalog *Catalog) loadSnapshot(ctx context.Context) (placement.LoadSnapshot, []string, error) {
	live, dead := catalog.tservers.LiveServers(catalog.clock())
	records, err := catalog.store.List(ctx)

	if err != nil {
		return nil, nil, err
	}

	counts := make(map[string]int, len(live))

	for _, id := range live {
		counts[id] = 0
	}

	for _, record := range records {
		if !record.Live() {
			continue
		}

		for _, replica := range record.ReplicaSet {
			if _, ok := counts[replica]; ok {
				counts[replica]++
			}
		}
	}

	snapshot := make(placement.LoadSnapshot, 0, len(live))

	for _, id := range live {
		snapshot = append(snapshot, placement.ServerLoad{ID: id, Tablets: counts[id]})
	}

	return snapshot, dead, nil
}

func (catalog *Catalog) requestLogger(ctx context.Context, fields ...zap.Field) (*zap.Logger, context.Context) {
	return log.LoggerFromContext(log.WithFields(ctx, fields...), catalog.logger)
}
