package service

import (
	"context"

	"github.com/elonr01/survey-server/internal/repository/models"
)

type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, id string) (models.Company, error)
	CreateCompany(ctx context.Context, c models.Company) error
	UpdateCompany(ctx context.Context, c models.Company) error
	DeleteCompany(ctx context.Context, id string) error
}

type ResponseStore interface {
	ListResponses(ctx context.Context, companyIDs ...string) ([]models.Response, error)
	CountResponses(ctx context.Context, companyID string) (int, error)
	HasResponse(ctx context.Context, companyID, identityHash string) (bool, error)
	InsertResponse(ctx context.Context, r models.Response) error
}

type UserStore interface {
	GetUser(ctx context.Context, username string) (models.AdminUser, error)
	ListUsers(ctx context.Context) ([]models.AdminUser, error)
	SaveUser(ctx context.Context, u models.AdminUser) error
	DeleteUser(ctx context.Context, username string) error
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (models.PlatformSettings, error)
	SaveSettings(ctx context.Context, s models.PlatformSettings) error
}

// Store is everything the services persist. Both the SQL repository and the
// in-memory fallback implement it.
type Store interface {
	CompanyStore
	ResponseStore
	UserStore
	SettingsStore
	Ping(ctx context.Context) error
}
