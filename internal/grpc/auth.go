package grpc

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/elonr01/survey-server/internal/service"
)

// AuthInterceptor resolves the bearer token in the "authorization" metadata
// for calls to the analytics service. Other services (health, reflection)
// pass through untouched.
func AuthInterceptor(parser TokenParser, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing credentials")
		}
		raw, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok || raw == "" {
			return nil, status.Error(codes.Unauthenticated, "authorization must be a bearer token")
		}

		p, err := parser.ParseToken(raw)
		if err != nil {
			logger.Info("token rejected", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(service.ContextWithPrincipal(ctx, p), req)
	}
}
