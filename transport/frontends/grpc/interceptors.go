package grpc

import (
	"context"
	"time"

	"github.com/jrife/tablets/utils/log"
	"github.com/jrife/tablets/utils/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// loggingInterceptor tags each request with a request id
// and logs its outcome. Handlers pick up the fields through
// the request context.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = log.WithFields(ctx, zap.String("request_id", uuid.MustUUID()), zap.String("method", info.FullMethod))
		start := time.Now()
		resp, err := handler(ctx, req)
		requestLogger := log.WithContext(ctx, logger).With(zap.Duration("duration", time.Since(start)), zap.Stringer("code", status.Code(err)))

		if err != nil {
			requestLogger.Info("request failed", zap.Error(err))
		} else {
			requestLogger.Debug("request finished")
		}

		return resp, err
	}
}
