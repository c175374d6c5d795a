package mocks

import (
	"context"

	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
)

// MockStore implements service.Store. A method whose Func field is set calls
// it; otherwise the call goes to the embedded in-memory repository, which
// tests can seed directly.
type MockStore struct {
	*repository.MemoryRepository

	ListCompaniesFunc  func(ctx context.Context) ([]models.Company, error)
	GetCompanyFunc     func(ctx context.Context, id string) (models.Company, error)
	CreateCompanyFunc  func(ctx context.Context, c models.Company) error
	UpdateCompanyFunc  func(ctx context.Context, c models.Company) error
	DeleteCompanyFunc  func(ctx context.Context, id string) error
	ListResponsesFunc  func(ctx context.Context, companyIDs ...string) ([]models.Response, error)
	CountResponsesFunc func(ctx context.Context, companyID string) (int, error)
	HasResponseFunc    func(ctx context.Context, companyID, identityHash string) (bool, error)
	InsertResponseFunc func(ctx context.Context, r models.Response) error
	GetUserFunc        func(ctx context.Context, username string) (models.AdminUser, error)
	SaveUserFunc       func(ctx context.Context, u models.AdminUser) error
	GetSettingsFunc    func(ctx context.Context) (models.PlatformSettings, error)
	PingFunc           func(ctx context.Context) error
}

func NewMockStore() *MockStore {
	return &MockStore{MemoryRepository: repository.NewMemoryRepository()}
}

func (m *MockStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	if m.ListCompaniesFunc != nil {
		return m.ListCompaniesFunc(ctx)
	}
	return m.MemoryRepository.ListCompanies(ctx)
}

func (m *MockStore) GetCompany(ctx context.Context, id string) (models.Company, error) {
	if m.GetCompanyFunc != nil {
		return m.GetCompanyFunc(ctx, id)
	}
	return m.MemoryRepository.GetCompany(ctx, id)
}

func (m *MockStore) CreateCompany(ctx context.Context, c models.Company) error {
	if m.CreateCompanyFunc != nil {
		return m.CreateCompanyFunc(ctx, c)
	}
	return m.MemoryRepository.CreateCompany(ctx, c)
}

func (m *MockStore) UpdateCompany(ctx context.Context, c models.Company) error {
	if m.UpdateCompanyFunc != nil {
		return m.UpdateCompanyFunc(ctx, c)
	}
	return m.MemoryRepository.UpdateCompany(ctx, c)
}

func (m *MockStore) DeleteCompany(ctx context.Context, id string) error {
	if m.DeleteCompanyFunc != nil {
		return m.DeleteCompanyFunc(ctx, id)
	}
	return m.MemoryRepository.DeleteCompany(ctx, id)
}

func (m *MockStore) ListResponses(ctx context.Context, companyIDs ...string) ([]models.Response, error) {
	if m.ListResponsesFunc != nil {
		return m.ListResponsesFunc(ctx, companyIDs...)
	}
	return m.MemoryRepository.ListResponses(ctx, companyIDs...)
}

func (m *MockStore) CountResponses(ctx context.Context, companyID string) (int, error) {
	if m.CountResponsesFunc != nil {
		return m.CountResponsesFunc(ctx, companyID)
	}
	return m.MemoryRepository.CountResponses(ctx, companyID)
}

func (m *MockStore) HasResponse(ctx context.Context, companyID, identityHash string) (bool, error) {
	if m.HasResponseFunc != nil {
		return m.HasResponseFunc(ctx, companyID, identityHash)
	}
	return m.MemoryRepository.HasResponse(ctx, companyID, identityHash)
}

func (m *MockStore) InsertResponse(ctx context.Context, r models.Response) error {
	if m.InsertResponseFunc != nil {
		return m.InsertResponseFunc(ctx, r)
	}
	return m.MemoryRepository.InsertResponse(ctx, r)
}

func (m *MockStore) GetUser(ctx context.Context, username string) (models.AdminUser, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, username)
	}
	return m.MemoryRepository.GetUser(ctx, username)
}

func (m *MockStore) SaveUser(ctx context.Context, u models.AdminUser) error {
	if m.SaveUserFunc != nil {
		return m.SaveUserFunc(ctx, u)
	}
	return m.MemoryRepository.SaveUser(ctx, u)
}

func (m *MockStore) GetSettings(ctx context.Context) (models.PlatformSettings, error) {
	if m.GetSettingsFunc != nil {
		return m.GetSettingsFunc(ctx)
	}
	return m.MemoryRepository.GetSettings(ctx)
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return m.MemoryRepository.Ping(ctx)
}
