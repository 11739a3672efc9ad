package api

import (
	"context"

	"github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// MetricsInterceptor records APIRequestsTotal/APIRequestDuration for every
// unary RPC and logs failures. Its original form gated methods by name for
// a Unix socket listener; this server's unary RPCs (Query, CheckTx) need no
// such distinction, so the interceptor's role here is instrumentation
// rather than access control. Watch, the one streaming RPC, is exempt -
// grpc.UnaryServerInterceptor only wraps unary calls.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)

		st := "ok"
		if err != nil {
			st = status.Code(err).String()
			apiLogger := log.WithComponent("api")
			apiLogger.Error().Err(err).Str("method", info.FullMethod).Msg("rpc failed")
		}
		metrics.APIRequestsTotal.WithLabelValues(info.FullMethod, st).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, info.FullMethod)

		return resp, err
	}
}
