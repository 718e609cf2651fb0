// Package minicluster runs a catalog and a set of tablet servers in
// one process. Tablet servers find out about their replicas through
// heartbeats exactly as they would against a remote catalog. With
// Config.GRPC set, heartbeats and clients reach the catalog through
// the gRPC frontend over an in-memory listener.
package minicluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/client"
	"github.com/jrife/tablets/controllers"
	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/plugins/memory"
	"github.com/jrife/tablets/transport"
	"github.com/jrife/tablets/transport/clients"
	"github.com/jrife/tablets/transport/frontends"
	grpcfrontend "github.com/jrife/tablets/transport/frontends/grpc"
	"github.com/jrife/tablets/tserver"
	"github.com/jrife/tablets/utils/log"
	"github.com/jrife/tablets/verifier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const pollInterval = 10 * time.Millisecond

// Config configures a mini cluster. Zero values get defaults
// suited to tests: timers run in milliseconds, not seconds.
type Config struct {
	// Servers is the number of tablet servers. Defaults to 3.
	Servers           int
	ReplicationFactor int
	// Store defaults to a memory kv store
	Store             kv.Store
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	GracePeriod       time.Duration
	Retention         time.Duration
	RequestTTL        time.Duration
	GCInterval        time.Duration
	GRPC              bool
	Logger            *zap.Logger
}

func (config *Config) setDefaults() {
	if config.Servers <= 0 {
		config.Servers = 3
	}

	if config.Store == nil {
		config.Store = memory.New()
	}

	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 20 * time.Millisecond
	}

	if config.HeartbeatTimeout <= 0 {
		config.HeartbeatTimeout = time.Second
	}

	if config.GracePeriod <= 0 {
		config.GracePeriod = time.Minute
	}

	if config.Retention <= 0 {
		config.Retention = time.Minute
	}

	if config.RequestTTL <= 0 {
		config.RequestTTL = time.Minute
	}

	if config.GCInterval <= 0 {
		config.GCInterval = 50 * time.Millisecond
	}

	config.Logger = log.OrNop(config.Logger)
}

// Cluster is a running mini cluster
type Cluster struct {
	catalog  *catalog.Catalog
	service  transport.CatalogService
	store    *metastore.Store
	servers  []*tserver.Server
	frontend *grpcfrontend.Frontend
	conn     *clients.Catalog
	cancel   context.CancelFunc
	group    *errgroup.Group
	logger   *zap.Logger
}

// Start starts a cluster and waits until every
// tablet server has registered with the catalog
func Start(ctx context.Context, config Config) (*Cluster, error) {
	config.setDefaults()

	store := metastore.New(config.Store, config.Logger)
	c, err := catalog.New(catalog.Config{
		Store:             store,
		Logger:            config.Logger,
		ReplicationFactor: config.ReplicationFactor,
		HeartbeatTimeout:  config.HeartbeatTimeout,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create catalog: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)
	cluster := &Cluster{
		catalog: c,
		service: c,
		store:   store,
		cancel:  cancel,
		group:   group,
		logger:  config.Logger.With(zap.String("component", "minicluster")),
	}

	if config.GRPC {
		if err := cluster.serveGRPC(ctx, config.Logger); err != nil {
			cluster.Stop()

			return nil, err
		}
	}

	for i := 0; i < config.Servers; i++ {
		server := tserver.New(fmt.Sprintf("ts-%d", i+1), config.Logger)
		heartbeater := &tserver.Heartbeater{
			Server:   server,
			Catalog:  cluster.service,
			Interval: config.HeartbeatInterval,
			Logger:   config.Logger,
		}

		cluster.servers = append(cluster.servers, server)
		group.Go(func() error {
			heartbeater.Run(runCtx)

			return nil
		})
	}

	coordinator := &controllers.Coordinator{
		Controllers: []controllers.Controller{
			&controllers.GarbageCollector{
				Catalog:     c,
				GracePeriod: config.GracePeriod,
				Retention:   config.Retention,
				RequestTTL:  config.RequestTTL,
				Logger:      config.Logger,
			},
		},
		Interval: config.GCInterval,
		Logger:   config.Logger,
	}

	group.Go(func() error {
		coordinator.Run(runCtx)

		return nil
	})

	if err := cluster.waitForServers(ctx, config.Servers); err != nil {
		cluster.Stop()

		return nil, err
	}

	cluster.logger.Info("cluster started", zap.Int("servers", config.Servers), zap.Bool("grpc", config.GRPC))

	return cluster, nil
}

func (cluster *Cluster) serveGRPC(ctx context.Context, logger *zap.Logger) error {
	frontend := &grpcfrontend.Frontend{}

	if err := frontend.Init(frontends.Options{Server: cluster.catalog, Logger: logger}); err != nil {
		return fmt.Errorf("could not initialize gRPC frontend: %w", err)
	}

	listener := bufconn.Listen(1 << 20)
	cluster.frontend = frontend
	cluster.group.Go(func() error {
		return frontend.Listen(listener)
	})

	conn, err := clients.Dial(
		ctx,
		"bufnet",
		grpc.WithInsecure(),
		grpc.WithContextDialer(func(ctx context.Context, address string) (net.Conn, error) {
			return listener.Dial()
		}),
	)

	if err != nil {
		return fmt.Errorf("could not dial catalog: %w", err)
	}

	cluster.conn = conn
	cluster.service = conn

	return nil
}

func (cluster *Cluster) waitForServers(ctx context.Context, servers int) error {
	return poll(ctx, func() (bool, error) {
		live, _ := cluster.catalog.TabletServers().LiveServers(cluster.catalog.Now())

		return len(live) == servers, nil
	})
}

// Catalog returns the in-process catalog
func (cluster *Cluster) Catalog() *catalog.Catalog {
	return cluster.catalog
}

// Service returns the catalog as seen by clients. It goes
// through gRPC if the cluster was started with GRPC set.
func (cluster *Cluster) Service() transport.CatalogService {
	return cluster.service
}

// Servers returns the tablet servers
func (cluster *Cluster) Servers() []*tserver.Server {
	return cluster.servers
}

// Server returns the tablet server with this id or nil
func (cluster *Cluster) Server(id string) *tserver.Server {
	for _, server := range cluster.servers {
		if server.ID() == id {
			return server
		}
	}

	return nil
}

// Client returns a new client of the cluster
func (cluster *Cluster) Client() *client.Client {
	return client.New(client.Config{
		Catalog: cluster.service,
		Dial: func(serverID string) (client.TabletServer, error) {
			server := cluster.Server(serverID)

			if server == nil {
				return nil, fmt.Errorf("no tablet server %s", serverID)
			}

			return server, nil
		},
		Logger: cluster.logger,
	})
}

// WaitForRunning waits until every live tablet of a
// table is RUNNING and hosted by its leader replica
func (cluster *Cluster) WaitForRunning(ctx context.Context, tableID string) error {
	return poll(ctx, func() (bool, error) {
		tablets, err := cluster.catalog.ListTablets(ctx, tableID, false)

		if err != nil {
			return false, err
		}

		for _, tablet := range tablets {
			if tablet.State != catalogpb.RUNNING || !cluster.hosts(tablet.Leader(), tablet.TabletId) {
				return false, nil
			}
		}

		return true, nil
	})
}

// WaitForGone waits until no tablet server hosts a tablet
func (cluster *Cluster) WaitForGone(ctx context.Context, tabletID string) error {
	return poll(ctx, func() (bool, error) {
		for _, server := range cluster.servers {
			if cluster.hosts(server.ID(), tabletID) {
				return false, nil
			}
		}

		return true, nil
	})
}

func (cluster *Cluster) hosts(serverID string, tabletID string) bool {
	server := cluster.Server(serverID)

	if server == nil {
		return false
	}

	_, err := server.Count(tabletID)

	return err == nil
}

// CountRows returns the number of rows visible in a
// table, counted at the leader of each live tablet
func (cluster *Cluster) CountRows(ctx context.Context, tableID string) (int, error) {
	tablets, err := cluster.catalog.ListTablets(ctx, tableID, false)

	if err != nil {
		return 0, err
	}

	total := 0

	for _, tablet := range tablets {
		server := cluster.Server(tablet.Leader())

		if server == nil {
			return 0, fmt.Errorf("tablet %s has unknown leader %q", tablet.TabletId, tablet.Leader())
		}

		count, err := server.Count(tablet.TabletId)

		if err != nil {
			return 0, fmt.Errorf("could not count rows of tablet %s: %w", tablet.TabletId, err)
		}

		total += count
	}

	return total, nil
}

// Verify runs the cluster health verifier
func (cluster *Cluster) Verify(ctx context.Context) (verifier.Report, error) {
	hosts := make([]verifier.TabletHost, 0, len(cluster.servers))

	for _, server := range cluster.servers {
		hosts = append(hosts, server)
	}

	return verifier.CheckCluster(ctx, cluster.catalog, hosts)
}

// Stop stops the cluster and closes its store
func (cluster *Cluster) Stop() error {
	cluster.cancel()

	if cluster.conn != nil {
		cluster.conn.Close()
	}

	if cluster.frontend != nil {
		cluster.frontend.Stop()
	}

	err := cluster.group.Wait()

	for _, server := range cluster.servers {
		server.Stop()
	}

	if closeErr := cluster.store.Close(); err == nil {
		err = closeErr
	}

	return err
}

// poll calls check until it returns true, returns an error or ctx ends
func poll(ctx context.Context, check func() (bool, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		done, err := check()

		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return err
		}

		if done && err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
