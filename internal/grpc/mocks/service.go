package mocks

import (
	"context"
	"errors"

	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
)

// MockAnalyticsService is a mock implementation of the AnalyticsService
// interface for testing the handler layer.
type MockAnalyticsService struct {
	CompanyAnalyticsFunc func(ctx context.Context, p service.Principal, id string) (service.CompanyView, error)
	HistoryFunc          func(ctx context.Context, p service.Principal, id string) ([]scoring.PeriodRecord, error)
	CompareFunc          func(ctx context.Context, p service.Principal, id, periodA, periodB string) (scoring.Comparison, error)
	RecommendationsFunc  func(ctx context.Context, p service.Principal, id string) ([]scoring.Suggestion, error)
	DashboardFunc        func(ctx context.Context, p service.Principal, companyID string) (service.Dashboard, error)
}

func (m *MockAnalyticsService) CompanyAnalytics(ctx context.Context, p service.Principal, id string) (service.CompanyView, error) {
	if m.CompanyAnalyticsFunc != nil {
		return m.CompanyAnalyticsFunc(ctx, p, id)
	}
	return service.CompanyView{}, errors.New("CompanyAnalyticsFunc not implemented")
}

func (m *MockAnalyticsService) History(ctx context.Context, p service.Principal, id string) ([]scoring.PeriodRecord, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, p, id)
	}
	return nil, errors.New("HistoryFunc not implemented")
}

func (m *MockAnalyticsService) Compare(ctx context.Context, p service.Principal, id, periodA, periodB string) (scoring.Comparison, error) {
	if m.CompareFunc != nil {
		return m.CompareFunc(ctx, p, id, periodA, periodB)
	}
	return scoring.Comparison{}, errors.New("CompareFunc not implemented")
}

func (m *MockAnalyticsService) Recommendations(ctx context.Context, p service.Principal, id string) ([]scoring.Suggestion, error) {
	if m.RecommendationsFunc != nil {
		return m.RecommendationsFunc(ctx, p, id)
	}
	return nil, errors.New("RecommendationsFunc not implemented")
}

func (m *MockAnalyticsService) Dashboard(ctx context.Context, p service.Principal, companyID string) (service.Dashboard, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx, p, companyID)
	}
	return service.Dashboard{}, errors.New("DashboardFunc not implemented")
}

// MockTokenParser accepts the tokens in its map.
type MockTokenParser struct {
	Tokens map[string]service.Principal
}

func (m *MockTokenParser) ParseToken(raw string) (service.Principal, error) {
	if p, ok := m.Tokens[raw]; ok {
		return p, nil
	}
	return service.Principal{}, service.ErrInvalidToken
}
