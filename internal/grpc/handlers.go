package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
	"github.com/elonr01/survey-server/pkg/cache"
)

const defaultGRPCTimeout = 10 * time.Second

type CacheKeyType string

const (
	cacheKeyCompany         CacheKeyType = "grpc:company_analytics"
	cacheKeyHistory         CacheKeyType = "grpc:history"
	cacheKeyComparison      CacheKeyType = "grpc:comparison"
	cacheKeyRecommendations CacheKeyType = "grpc:recommendations"
	cacheKeyDashboard       CacheKeyType = "grpc:dashboard"
)

type GRPCHandlers struct {
	analytics AnalyticsService
	cache     *cache.ReadThrough
	logger    *zap.Logger
	now       func() time.Time
}

// NewGRPCHandlers initializes the gRPC handlers. A nil read-through cache
// disables caching.
func NewGRPCHandlers(analytics AnalyticsService, rt *cache.ReadThrough, logger *zap.Logger) *GRPCHandlers {
	if analytics == nil {
		panic("nil AnalyticsService provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rt == nil {
		rt = cache.NewReadThrough(cache.Noop{}, 0, logger).WithoutRefresh()
	}
	return &GRPCHandlers{
		analytics: analytics,
		cache:     rt,
		logger:    logger.Named("grpc-handler"),
		now:       time.Now,
	}
}

// normalizeKey scopes a cache entry to the caller so portfolios never leak
// between accounts.
func normalizeKey(prefix CacheKeyType, p service.Principal, parts ...string) string {
	key := fmt.Sprintf("%s:%s:%s", prefix, p.Role, p.Username)
	for _, part := range parts {
		key += ":" + strings.ToUpper(strings.TrimSpace(part))
	}
	return key
}

const portfolioScope = "portfolio"

func companyScope(id string) string {
	return "company:" + strings.ToUpper(strings.TrimSpace(id))
}

// scopedKey appends the generation of scope so entries cached before the
// last CompanyChanged are never served again.
func (s *GRPCHandlers) scopedKey(ctx context.Context, scope string, prefix CacheKeyType, p service.Principal, parts ...string) string {
	return normalizeKey(prefix, p, parts...) + ":g" + s.cache.Generation(ctx, scope)
}

// CompanyChanged drops the cached analytics of a company and of every
// dashboard that may include it.
func (s *GRPCHandlers) CompanyChanged(ctx context.Context, companyID string) {
	s.cache.Bump(ctx, companyScope(companyID), portfolioScope)
	s.logger.Debug("cached analytics invalidated", zap.String("company_id", companyID))
}

func (s *GRPCHandlers) principal(ctx context.Context) (service.Principal, error) {
	p, ok := service.PrincipalFromContext(ctx)
	if !ok {
		return service.Principal{}, status.Error(codes.Unauthenticated, "missing credentials")
	}
	return p, nil
}

func requireCompany(id string) error {
	if strings.TrimSpace(id) == "" {
		return status.Error(codes.InvalidArgument, "company_id is required")
	}
	return nil
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrCompanyNotFound), errors.Is(err, service.ErrPeriodNotFound):
		s.logger.Info("not found", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrNotEnoughPeriods):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) GetCompanyAnalytics(ctx context.Context, req *CompanyRequest) (*CompanyAnalyticsResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireCompany(req.CompanyID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	key := s.scopedKey(ctx, companyScope(req.CompanyID), cacheKeyCompany, p, req.CompanyID)
	view, err := cache.Fetch(ctx, s.cache, key, func(fetchCtx context.Context) (service.CompanyView, error) {
		return s.analytics.CompanyAnalytics(fetchCtx, p, req.CompanyID)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetCompanyAnalytics", err)
	}
	return &CompanyAnalyticsResponse{Company: view, GeneratedAt: timestamppb.New(s.now())}, nil
}

func (s *GRPCHandlers) GetHistory(ctx context.Context, req *CompanyRequest) (*HistoryResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireCompany(req.CompanyID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	key := s.scopedKey(ctx, companyScope(req.CompanyID), cacheKeyHistory, p, req.CompanyID)
	periods, err := cache.Fetch(ctx, s.cache, key, func(fetchCtx context.Context) ([]scoring.PeriodRecord, error) {
		return s.analytics.History(fetchCtx, p, req.CompanyID)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetHistory", err)
	}
	return &HistoryResponse{Periods: periods, GeneratedAt: timestamppb.New(s.now())}, nil
}

func (s *GRPCHandlers) ComparePeriods(ctx context.Context, req *CompareRequest) (*CompareResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireCompany(req.CompanyID); err != nil {
		return nil, err
	}
	if (req.PeriodA == "") != (req.PeriodB == "") {
		return nil, status.Error(codes.InvalidArgument, "period_a and period_b go together")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	key := s.scopedKey(ctx, companyScope(req.CompanyID), cacheKeyComparison, p, req.CompanyID, req.PeriodA, req.PeriodB)
	cmp, err := cache.Fetch(ctx, s.cache, key, func(fetchCtx context.Context) (scoring.Comparison, error) {
		return s.analytics.Compare(fetchCtx, p, req.CompanyID, req.PeriodA, req.PeriodB)
	})
	if err != nil {
		return nil, s.handleError(ctx, "ComparePeriods", err)
	}
	return &CompareResponse{Comparison: cmp, GeneratedAt: timestamppb.New(s.now())}, nil
}

func (s *GRPCHandlers) GetRecommendations(ctx context.Context, req *CompanyRequest) (*RecommendationsResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireCompany(req.CompanyID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	key := s.scopedKey(ctx, companyScope(req.CompanyID), cacheKeyRecommendations, p, req.CompanyID)
	suggestions, err := cache.Fetch(ctx, s.cache, key, func(fetchCtx context.Context) ([]scoring.Suggestion, error) {
		return s.analytics.Recommendations(fetchCtx, p, req.CompanyID)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetRecommendations", err)
	}
	return &RecommendationsResponse{
		Suggestions: suggestions,
		ActionPlan:  scoring.DefaultActionPlan(suggestions),
		GeneratedAt: timestamppb.New(s.now()),
	}, nil
}

func (s *GRPCHandlers) GetDashboard(ctx context.Context, req *DashboardRequest) (*DashboardResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	key := s.scopedKey(ctx, portfolioScope, cacheKeyDashboard, p, req.CompanyID)
	d, err := cache.Fetch(ctx, s.cache, key, func(fetchCtx context.Context) (service.Dashboard, error) {
		return s.analytics.Dashboard(fetchCtx, p, req.CompanyID)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetDashboard", err)
	}
	return &DashboardResponse{Dashboard: d, GeneratedAt: timestamppb.New(s.now())}, nil
}
