package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const defaultPort = 50051

type config struct {
	port         int
	listener     net.Listener
	logger       *zap.Logger
	reflection   bool
	logRequests  bool
	interceptors []grpc.UnaryServerInterceptor
}

type Option func(*config)

func WithPort(port int) Option {
	return func(c *config) { c.port = port }
}

// WithListener serves on an existing listener instead of opening a TCP port.
func WithListener(lis net.Listener) Option {
	return func(c *config) { c.listener = lis }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func WithReflection(enabled bool) Option {
	return func(c *config) { c.reflection = enabled }
}

// WithLogging logs every unary call with its code and latency.
func WithLogging(enabled bool) Option {
	return func(c *config) { c.logRequests = enabled }
}

// WithUnaryInterceptors appends interceptors after recovery and logging.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(c *config) { c.interceptors = append(c.interceptors, interceptors...) }
}

// Server owns the listener, the gRPC server and its health service.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
	logger     *zap.Logger
}

func New(opts ...Option) (*Server, error) {
	cfg := &config{port: defaultPort}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	lis := cfg.listener
	if lis == nil {
		var err error
		if lis, err = listen(cfg.port); err != nil {
			return nil, err
		}
	}

	chain := []grpc.UnaryServerInterceptor{RecoveryInterceptor(cfg.logger)}
	if cfg.logRequests {
		chain = append(chain, LoggingInterceptor(cfg.logger))
	}
	chain = append(chain, cfg.interceptors...)

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	if cfg.reflection {
		reflection.Register(gs)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpcServer: gs,
		health:     hs,
		lis:        lis,
		logger:     cfg.logger.Named("grpc-server"),
	}, nil
}

func listen(port int) (net.Listener, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return lis, nil
}

// RegisterServiceWithHealth registers a service and reports it as serving
// under name.
func (s *Server) RegisterServiceWithHealth(name string, register func(*grpc.Server)) {
	register(s.grpcServer)
	if name != "" {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		s.logger.Info("service registered", zap.String("service", name))
	}
}

func (s *Server) SetServiceHealth(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(name, status)
	s.logger.Info("service health changed", zap.String("service", name), zap.Stringer("status", status))
}

// Start serves in the background and returns immediately.
func (s *Server) Start() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("gRPC server listening", zap.Stringer("addr", s.lis.Addr()))

	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
}

// Shutdown reports every service as not serving, then drains in-flight calls
// until ctx expires and stops hard after that.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}
