package grpc

import (
	"context"

	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
)

type AnalyticsService interface {
	CompanyAnalytics(ctx context.Context, p service.Principal, id string) (service.CompanyView, error)
	History(ctx context.Context, p service.Principal, id string) ([]scoring.PeriodRecord, error)
	Compare(ctx context.Context, p service.Principal, id, periodA, periodB string) (scoring.Comparison, error)
	Recommendations(ctx context.Context, p service.Principal, id string) ([]scoring.Suggestion, error)
	Dashboard(ctx context.Context, p service.Principal, companyID string) (service.Dashboard, error)
}

type TokenParser interface {
	ParseToken(raw string) (service.Principal, error)
}
