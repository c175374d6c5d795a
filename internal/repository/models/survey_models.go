package models

import "time"

type Role string

const (
	RoleMaster   Role = "Master"
	RoleManager  Role = "Gestor"
	RoleAnalyst  Role = "Analista"
	DefaultGroup      = "Geral"
)

type Company struct {
	ID              string              `json:"id"`
	LegalName       string              `json:"legal_name"`
	TaxID           string              `json:"tax_id"`
	CNAE            string              `json:"cnae"`
	RiskGrade       int                 `json:"risk_grade"`
	Headcount       int                 `json:"headcount"`
	ResponseQuota   int                 `json:"response_quota"`
	Methodology     string              `json:"methodology"`
	Segmentation    string              `json:"segmentation"`
	ContactName     string              `json:"contact_name"`
	ContactEmail    string              `json:"contact_email"`
	Phone           string              `json:"phone"`
	Address         string              `json:"address"`
	OrgStructure    map[string][]string `json:"org_structure"`
	RequireIdentity bool                `json:"require_identity"`
	ValidUntil      time.Time           `json:"valid_until"`
	Owner           string              `json:"owner"`
	CreatedAt       time.Time           `json:"created_at"`
}

// DefaultOrgStructure is the structure of a company with no sectors configured.
func DefaultOrgStructure() map[string][]string {
	return map[string][]string{DefaultGroup: {DefaultGroup}}
}

type Response struct {
	ID           string            `json:"id"`
	CompanyID    string            `json:"company_id"`
	IdentityHash string            `json:"-"`
	Sector       string            `json:"sector"`
	Answers      map[string]string `json:"answers"`
	CreatedAt    time.Time         `json:"created_at"`
}

type AdminUser struct {
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	Role            Role       `json:"role"`
	Credits         int        `json:"credits"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	LinkedCompanyID string     `json:"linked_company_id,omitempty"`
}

type PlatformSettings struct {
	Name        string `json:"name"`
	Consultancy string `json:"consultancy"`
	BaseURL     string `json:"base_url"`
}

func DefaultSettings() PlatformSettings {
	return PlatformSettings{
		Name:        "Elo NR-01",
		Consultancy: "Pessin Gestão e Desenvolvimento Humano",
		BaseURL:     "https://elonr01-cris.streamlit.app",
	}
}
