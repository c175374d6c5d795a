package service

import (
	"time"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
)

// Principal is the authenticated administrator acting on a request.
type Principal struct {
	Username        string      `json:"username"`
	Role            models.Role `json:"role"`
	Credits         int         `json:"credits"`
	LinkedCompanyID string      `json:"linked_company_id,omitempty"`
}

func (p Principal) IsMaster() bool { return p.Role == models.RoleMaster }

// CanSee reports whether the company is in the principal's portfolio.
func (p Principal) CanSee(c models.Company) bool {
	switch p.Role {
	case models.RoleMaster:
		return true
	case models.RoleManager:
		return c.Owner == p.Username
	case models.RoleAnalyst:
		return c.ID == p.LinkedCompanyID
	default:
		return false
	}
}

// CanManage reports whether the principal may create and edit companies.
func (p Principal) CanManage() bool {
	return p.Role == models.RoleMaster || p.Role == models.RoleManager
}

type SurveyForm struct {
	CompanyID       string                   `json:"company_id"`
	CompanyName     string                   `json:"company_name"`
	Methodology     *methodology.Methodology `json:"methodology"`
	Sectors         []string                 `json:"sectors"`
	Roles           map[string][]string      `json:"roles"`
	RequireIdentity bool                     `json:"require_identity"`
	ValidUntil      time.Time                `json:"valid_until"`
}

type SubmitRequest struct {
	CompanyID string            `json:"company_id" validate:"required,max=64"`
	Identity  string            `json:"identity" validate:"max=32"`
	Sector    string            `json:"sector" validate:"max=120"`
	Answers   map[string]string `json:"answers"`
	Consent   bool              `json:"consent"`
	// Preview skips link expiry and quota; set only for authenticated staff.
	Preview bool `json:"-"`
}

type SubmitResult struct {
	ResponseID string    `json:"response_id"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

type CompanyInput struct {
	LegalName       string              `json:"legal_name" validate:"required,max=200"`
	TaxID           string              `json:"tax_id" validate:"max=32"`
	CNAE            string              `json:"cnae" validate:"max=32"`
	RiskGrade       int                 `json:"risk_grade" validate:"omitempty,min=1,max=4"`
	Headcount       int                 `json:"headcount" validate:"min=1"`
	ResponseQuota   int                 `json:"response_quota" validate:"min=1"`
	Methodology     string              `json:"methodology"`
	Segmentation    string              `json:"segmentation" validate:"omitempty,oneof=GHE Setor GES"`
	ContactName     string              `json:"contact_name" validate:"max=120"`
	ContactEmail    string              `json:"contact_email" validate:"omitempty,email"`
	Phone           string              `json:"phone" validate:"max=40"`
	Address         string              `json:"address" validate:"max=300"`
	OrgStructure    map[string][]string `json:"org_structure"`
	RequireIdentity *bool               `json:"require_identity"`
	ValidUntil      *time.Time          `json:"valid_until"`
	Owner           string              `json:"owner"`

	// Optional analyst account linked to a new company.
	AnalystUsername string `json:"analyst_username" validate:"omitempty,min=3,max=64"`
	AnalystPassword string `json:"analyst_password" validate:"omitempty,min=4,max=72"`
}

// CompanyView is a company with its derived analytics, computed per request.
type CompanyView struct {
	models.Company
	Responded    int                      `json:"responded"`
	Score        float64                  `json:"score"`
	Dimensions   []scoring.DimensionScore `json:"dimensions"`
	QuestionRisk []scoring.QuestionRisk   `json:"question_risk"`
	SurveyLink   string                   `json:"survey_link"`
}

type QuestionDetail struct {
	scoring.QuestionRisk
	Band scoring.Band `json:"band"`
}

type DimensionReport struct {
	Name      string           `json:"name"`
	Average   float64          `json:"average"`
	Band      scoring.Band     `json:"band"`
	Questions []QuestionDetail `json:"questions"`
}

// Report is the structured content of a company's technical report.
type Report struct {
	Company     CompanyView             `json:"company"`
	Settings    models.PlatformSettings `json:"settings"`
	Methodology string                  `json:"methodology"`
	Dimensions  []DimensionReport       `json:"dimensions"`
	Diagnosis   string                  `json:"diagnosis"`
	Suggestions []scoring.Suggestion    `json:"suggestions"`
	ActionPlan  []scoring.ActionItem    `json:"action_plan"`
	GeneratedAt time.Time               `json:"generated_at"`
}

type SectorScore struct {
	Sector    string  `json:"sector"`
	Score     float64 `json:"score"`
	Responses int     `json:"responses"`
}

type CompanyStatus struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Responded int    `json:"responded"`
	Headcount int    `json:"headcount"`
	Adhesion  int    `json:"adhesion"`
	Completed bool   `json:"completed"`
}

type Dashboard struct {
	Companies   int                      `json:"companies"`
	Responses   int                      `json:"responses"`
	Headcount   int                      `json:"headcount"`
	CreditsLeft int                      `json:"credits_left"`
	RiskAlerts  int                      `json:"risk_alerts"`
	Methodology string                   `json:"methodology,omitempty"`
	Radar       []scoring.DimensionScore `json:"radar"`
	Sectors     []SectorScore            `json:"sectors"`
	Status      []CompanyStatus          `json:"status"`
	Degraded    bool                     `json:"degraded"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal Principal `json:"principal"`
}

type UserInput struct {
	Username        string      `json:"username" validate:"required,min=3,max=64"`
	Password        string      `json:"password" validate:"required,min=4,max=72"`
	Role            models.Role `json:"role" validate:"required,oneof=Master Gestor Analista"`
	ValidUntil      *time.Time  `json:"valid_until"`
	LinkedCompanyID string      `json:"linked_company_id"`
}

type SettingsInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Consultancy string `json:"consultancy" validate:"max=200"`
	BaseURL     string `json:"base_url" validate:"required,url"`
}
