package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/elonr01/survey-server/internal/repository/models"
)

// MemoryRepository keeps everything in process memory. It backs the service
// when the database is unreachable; nothing survives a restart.
type MemoryRepository struct {
	mu        sync.RWMutex
	companies map[string]models.Company
	responses []models.Response
	users     map[string]models.AdminUser
	settings  *models.PlatformSettings
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		companies: make(map[string]models.Company),
		users:     make(map[string]models.AdminUser),
	}
}

func cloneCompany(c models.Company) models.Company {
	org := make(map[string][]string, len(c.OrgStructure))
	for k, v := range c.OrgStructure {
		org[k] = append([]string(nil), v...)
	}
	c.OrgStructure = org
	return c
}

func cloneResponse(r models.Response) models.Response {
	answers := make(map[string]string, len(r.Answers))
	for k, v := range r.Answers {
		answers[k] = v
	}
	r.Answers = answers
	return r
}

func (m *MemoryRepository) ListCompanies(_ context.Context) ([]models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, cloneCompany(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) GetCompany(_ context.Context, id string) (models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[id]
	if !ok {
		return models.Company{}, ErrNotFound
	}
	return cloneCompany(c), nil
}

func (m *MemoryRepository) CreateCompany(_ context.Context, c models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.companies[c.ID]; ok {
		return ErrConflict
	}
	m.companies[c.ID] = cloneCompany(c)
	return nil
}

func (m *MemoryRepository) UpdateCompany(_ context.Context, c models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.companies[c.ID]; !ok {
		return ErrNotFound
	}
	m.companies[c.ID] = cloneCompany(c)
	return nil
}

func (m *MemoryRepository) DeleteCompany(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.companies[id]; !ok {
		return ErrNotFound
	}

	kept := m.responses[:0]
	for _, r := range m.responses {
		if r.CompanyID != id {
			kept = append(kept, r)
		}
	}
	m.responses = kept

	for name, u := range m.users {
		if u.LinkedCompanyID == id {
			delete(m.users, name)
		}
	}
	delete(m.companies, id)
	return nil
}

func (m *MemoryRepository) ListResponses(_ context.Context, companyIDs ...string) ([]models.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(companyIDs))
	for _, id := range companyIDs {
		wanted[id] = true
	}

	var out []models.Response
	for _, r := range m.responses {
		if len(wanted) == 0 || wanted[r.CompanyID] {
			out = append(out, cloneResponse(r))
		}
	}
	return out, nil
}

func (m *MemoryRepository) CountResponses(_ context.Context, companyID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.responses {
		if r.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) HasResponse(_ context.Context, companyID, identityHash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasResponseLocked(companyID, identityHash), nil
}

func (m *MemoryRepository) hasResponseLocked(companyID, identityHash string) bool {
	for _, r := range m.responses {
		if r.CompanyID == companyID && r.IdentityHash == identityHash {
			return true
		}
	}
	return false
}

// InsertResponse checks for a duplicate and appends under one lock.
func (m *MemoryRepository) InsertResponse(_ context.Context, resp models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasResponseLocked(resp.CompanyID, resp.IdentityHash) {
		return ErrConflict
	}
	m.responses = append(m.responses, cloneResponse(resp))
	return nil
}

func (m *MemoryRepository) GetUser(_ context.Context, username string) (models.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return models.AdminUser{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) ListUsers(_ context.Context) ([]models.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AdminUser, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemoryRepository) SaveUser(_ context.Context, u models.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Username] = u
	return nil
}

func (m *MemoryRepository) DeleteUser(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; !ok {
		return ErrNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *MemoryRepository) GetSettings(_ context.Context) (models.PlatformSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *MemoryRepository) SaveSettings(_ context.Context, s models.PlatformSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}
