package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/elonr01/survey-server/internal/config"
	handler "github.com/elonr01/survey-server/internal/grpc"
	"github.com/elonr01/survey-server/internal/httpapi"
	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
	"github.com/elonr01/survey-server/pkg/cache"
	dbbuilder "github.com/elonr01/survey-server/pkg/database"
	grpcsrv "github.com/elonr01/survey-server/pkg/grpc/server"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      cache.Cacher
	grpcServer *grpcsrv.Server
	httpServer *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.AppEnv == "production" {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	store, dbPool, degraded := openStore(ctx, cfg, logger)

	cacheClient := openCache(ctx, cfg, logger)
	rt := cache.NewReadThrough(cacheClient, cfg.CacheTTL, logger)
	logger.Debug("analytics read-through ready", zap.Duration("ttl", rt.TTL()))

	catalog, err := methodology.Load()
	if err != nil {
		return nil, fmt.Errorf("load methodologies: %w", err)
	}
	engine, err := scoring.New(catalog)
	if err != nil {
		return nil, fmt.Errorf("build scoring engine: %w", err)
	}

	accounts := service.NewAccountService(store, store, service.AccountOptions{
		Secret:   []byte(secret),
		TokenTTL: cfg.TokenTTL,
	}, logger)
	if err := accounts.EnsureBootstrapAdmin(ctx, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if err := applyPublicBaseURL(ctx, store, cfg.PublicBaseURL); err != nil {
		logger.Warn("could not apply PUBLIC_BASE_URL", zap.Error(err))
	}

	surveys := service.NewSurveyService(store, store, catalog, engine, logger)
	companies := service.NewCompanyService(store, catalog, engine, nil, logger)
	analytics := service.NewAnalyticsService(store, catalog, engine, degraded, logger)

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithLogging(true),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithUnaryInterceptors(handler.AuthInterceptor(accounts, logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}
	grpcHandlers := handler.NewGRPCHandlers(analytics, rt, logger)
	companies.OnChange(grpcHandlers.CompanyChanged)
	surveys.OnSubmit(grpcHandlers.CompanyChanged)
	grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterAnalyticsServer(s, grpcHandlers)
	})

	api := httpapi.New(surveys, companies, analytics, accounts, store, cfg.CORSOrigins, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		grpcServer: grpcServer,
		httpServer: httpServer,
	}, nil
}

// openStore connects to the configured database. When that fails the
// application keeps serving from memory and reports itself degraded.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, *sql.DB, bool) {
	if cfg.DBDriver == "sqlite3" && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			logger.Warn("could not create database directory", zap.Error(err))
		}
	}

	dbPool, err := dbbuilder.New(ctx,
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithSchema(repository.Schema...),
	)
	if err != nil {
		logger.Error("database unavailable, running on in-memory storage", zap.Error(err))
		return repository.NewMemoryRepository(), nil, true
	}
	logger.Info("Database pool initialized", zap.String("driver", cfg.DBDriver))
	return repository.NewSurveyRepository(dbPool, cfg.DBDriver), dbPool, false
}

func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Cacher {
	if !cfg.CacheEnabled {
		return cache.Noop{}
	}
	c, err := cache.New(ctx,
		cache.WithAddress(cfg.RedisAddr),
		cache.WithPassword(cfg.RedisPassword),
	)
	if err != nil {
		logger.Warn("cache unavailable, continuing without it", zap.Error(err))
		return cache.Noop{}
	}
	logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	return c
}

// applyPublicBaseURL seeds the survey base address while the settings still
// hold the factory default.
func applyPublicBaseURL(ctx context.Context, store service.SettingsStore, baseURL string) error {
	if baseURL == "" {
		return nil
	}
	settings, err := store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.BaseURL != models.DefaultSettings().BaseURL {
		return nil
	}
	settings.BaseURL = baseURL
	return store.SaveSettings(ctx, settings)
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting")

	a.grpcServer.Start()

	httpErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case err := <-httpErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", zap.Error(err))
	}
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		a.logger.Error("grpc shutdown error", zap.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("cache shutdown error", zap.Error(err))
	}
	if a.dbPool != nil {
		if err := a.dbPool.Close(); err != nil {
			a.logger.Error("database shutdown error", zap.Error(err))
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		a.logger.Warn("shutdown completed but deadline exceeded")
	} else {
		a.logger.Info("graceful shutdown completed successfully")
	}

	_ = a.logger.Sync()
	return runErr
}
