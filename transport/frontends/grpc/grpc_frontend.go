package grpc

import (
	"errors"
	"net"

	"github.com/jrife/tablets/transport"
	"github.com/jrife/tablets/transport/frontends"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var _ frontends.Frontend = (*Frontend)(nil)

// Frontend is an implementation of
// Frontend for the gRPC protocol
type Frontend struct {
	catalogService transport.CatalogService
	grpcServer     *grpc.Server
	logger         *zap.Logger
}

// Init initializes the frontend
func (frontend *Frontend) Init(options frontends.Options) error {
	if options.Server == nil {
		return errors.New("a catalog service is required")
	}

	frontend.catalogService = options.Server
	frontend.logger = log.OrNop(options.Logger).With(zap.String("frontend", "grpc"))
	frontend.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(frontend.logger)))

	RegisterCatalogServer(frontend.grpcServer, NewCatalogServer(frontend.catalogService))

	return nil
}

// Listen accepts connections from this listener
func (frontend *Frontend) Listen(listener net.Listener) error {
	if frontend.grpcServer == nil {
		return errors.New("frontend is not initialized")
	}

	frontend.logger.Info("listening", zap.String("address", listener.Addr().String()))

	if err := frontend.grpcServer.Serve(listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}

	return nil
}

// Stop stops accepting connections from listeners and causes
// all calls to Listen to return
func (frontend *Frontend) Stop() error {
	if frontend.grpcServer == nil {
		return nil
	}

	frontend.grpcServer.GracefulStop()

	return nil
}
