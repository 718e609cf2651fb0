// catalogd serves the tablet catalog over gRPC
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/config"
	"github.com/jrife/tablets/controllers"
	"github.com/jrife/tablets/transport/frontends"
	grpcfrontend "github.com/jrife/tablets/transport/frontends/grpc"
	"github.com/jrife/tablets/utils/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath    string
	listenAddress string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:          "catalogd",
	Short:        "serves the tablet catalog",
	SilenceUsage: true,
	RunE:         runCatalog,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&listenAddress, "listen", "", "address to listen on, overrides listen_address")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level, overrides log_level")
}

func loadConfig() (config.Config, error) {
	c := config.Default()

	if configPath != "" {
		var err error

		if c, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}

	if listenAddress != "" {
		c.ListenAddress = listenAddress
	}

	if logLevel != "" {
		c.LogLevel = logLevel
	}

	return c, c.Validate()
}

func runCatalog(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()

	if err != nil {
		return err
	}

	logger, err := log.New(c.LogLevel)

	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}

	defer logger.Sync()

	kvStore, err := c.OpenStore()

	if err != nil {
		return fmt.Errorf("could not open %s store: %w", c.Storage.Driver, err)
	}

	store := metastore.New(kvStore, logger)
	defer store.Close()

	cat, err := catalog.New(catalog.Config{
		Store:             store,
		Logger:            logger,
		ReplicationFactor: c.ReplicationFactor,
		HeartbeatTimeout:  c.HeartbeatTimeout,
	})

	if err != nil {
		return fmt.Errorf("could not create catalog: %w", err)
	}

	frontend := &grpcfrontend.Frontend{}

	if err := frontend.Init(frontends.Options{Server: cat, Logger: logger}); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", c.ListenAddress)

	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", c.ListenAddress, err)
	}

	defer listener.Close()

	coordinator := &controllers.Coordinator{
		Controllers: []controllers.Controller{
			&controllers.GarbageCollector{
				Catalog:     cat,
				GracePeriod: c.ReplacedTabletGracePeriod,
				Retention:   c.DeletedTabletRetention,
				RequestTTL:  c.RequestRecordTTL,
				Logger:      logger,
			},
		},
		Interval: c.GCInterval,
		Logger:   logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		select {
		case sig := <-signals:
			logger.Info("received signal", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}

		return nil
	})

	group.Go(func() error {
		return frontend.Listen(listener)
	})

	group.Go(func() error {
		coordinator.Run(ctx)

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		return frontend.Stop()
	})

	logger.Info("catalog started", zap.String("address", listener.Addr().String()), zap.String("storage", c.Storage.Driver))

	return group.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
