package grpc

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
)

type CompanyRequest struct {
	CompanyID string `json:"company_id"`
}

type CompareRequest struct {
	CompanyID string `json:"company_id"`
	PeriodA   string `json:"period_a"`
	PeriodB   string `json:"period_b"`
}

// DashboardRequest narrows the dashboard to one company when CompanyID is set.
type DashboardRequest struct {
	CompanyID string `json:"company_id"`
}

type CompanyAnalyticsResponse struct {
	Company     service.CompanyView    `json:"company"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}

type HistoryResponse struct {
	Periods     []scoring.PeriodRecord `json:"periods"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}

type CompareResponse struct {
	Comparison  scoring.Comparison     `json:"comparison"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}

type RecommendationsResponse struct {
	Suggestions []scoring.Suggestion   `json:"suggestions"`
	ActionPlan  []scoring.ActionItem   `json:"action_plan"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}

type DashboardResponse struct {
	Dashboard   service.Dashboard      `json:"dashboard"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}
