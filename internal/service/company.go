package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
)

const (
	companyIDLength    = 8
	defaultValidity    = 365 * 24 * time.Hour
	companyIDAttempts  = 3
	defaultRiskGrade   = 1
	defaultSegmentMode = "GHE"
)

// CompanyService administers client companies and their org structure.
type CompanyService struct {
	store       Store
	analyzer    analyzer
	passwords   PasswordHasher
	logger      *zap.Logger
	now         func() time.Time
	idGenerator func() string
	onChange    func(ctx context.Context, companyID string)
}

func NewCompanyService(store Store, catalog *methodology.Catalog, engine *scoring.Engine, passwords PasswordHasher, logger *zap.Logger) *CompanyService {
	if store == nil {
		panic("storage must not be nil")
	}
	if catalog == nil || engine == nil {
		panic("scoring engine must not be nil")
	}
	if passwords == nil {
		passwords = BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{
		store:       store,
		analyzer:    analyzer{catalog: catalog, engine: engine},
		passwords:   passwords,
		logger:      logger.Named("company"),
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: newCompanyID,
		onChange:    func(context.Context, string) {},
	}
}

// OnChange registers a hook run after a company or its responses change.
func (s *CompanyService) OnChange(fn func(ctx context.Context, companyID string)) {
	if fn != nil {
		s.onChange = fn
	}
}

func newCompanyID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:companyIDLength])
}

func (s *CompanyService) baseURL(ctx context.Context) string {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.logger.Warn("falling back to default settings", zap.Error(err))
		return models.DefaultSettings().BaseURL
	}
	return settings.BaseURL
}

// List returns the principal's companies with analytics.
func (s *CompanyService) List(ctx context.Context, p Principal) ([]CompanyView, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	all, err := s.store.ListCompanies(dbCtx)
	if err != nil {
		return nil, storageErr(err)
	}
	visible := visibleCompanies(p, all)
	if len(visible) == 0 {
		return []CompanyView{}, nil
	}

	resps, err := s.store.ListResponses(dbCtx, companyIDs(visible)...)
	if err != nil {
		return nil, storageErr(err)
	}
	return s.analyzer.views(visible, resps, s.baseURL(dbCtx)), nil
}

func (s *CompanyService) lookup(ctx context.Context, p Principal, id string) (models.Company, error) {
	return findCompany(ctx, s.store, p, id)
}

func (s *CompanyService) Get(ctx context.Context, p Principal, id string) (CompanyView, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return CompanyView{}, err
	}
	resps, err := s.store.ListResponses(dbCtx, c.ID)
	if err != nil {
		return CompanyView{}, storageErr(err)
	}
	return s.analyzer.view(c, resps, s.baseURL(dbCtx)), nil
}

func (s *CompanyService) Create(ctx context.Context, p Principal, in CompanyInput) (CompanyView, error) {
	if !p.CanManage() {
		return CompanyView{}, ErrForbidden
	}
	if err := validateRequest(in); err != nil {
		return CompanyView{}, err
	}
	if in.AnalystUsername != "" && in.AnalystPassword == "" {
		return CompanyView{}, fmt.Errorf("%w: analyst password is required", ErrInvalidRequest)
	}

	if !p.IsMaster() {
		views, err := s.List(ctx, p)
		if err != nil {
			return CompanyView{}, err
		}
		left := CreditsLeft(p, views)
		if left <= 0 {
			return CompanyView{}, ErrNoCredits
		}
		if in.ResponseQuota > left {
			return CompanyView{}, fmt.Errorf("%w: quota %d exceeds the %d remaining", ErrNoCredits, in.ResponseQuota, left)
		}
	}

	c, err := s.fromInput(models.Company{}, p, in)
	if err != nil {
		return CompanyView{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if in.AnalystUsername != "" {
		if _, err := s.store.GetUser(dbCtx, in.AnalystUsername); err == nil {
			return CompanyView{}, ErrUserExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return CompanyView{}, storageErr(err)
		}
	}

	c.CreatedAt = s.now()
	for attempt := 1; ; attempt++ {
		c.ID = s.idGenerator()
		err = s.store.CreateCompany(dbCtx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == companyIDAttempts {
			return CompanyView{}, storageErr(err)
		}
	}

	if in.AnalystUsername != "" {
		hash, err := s.passwords.Hash(in.AnalystPassword)
		if err != nil {
			return CompanyView{}, fmt.Errorf("hash analyst password: %w", err)
		}
		validUntil := c.ValidUntil
		analyst := models.AdminUser{
			Username:        in.AnalystUsername,
			PasswordHash:    hash,
			Role:            models.RoleAnalyst,
			Credits:         c.ResponseQuota,
			ValidUntil:      &validUntil,
			LinkedCompanyID: c.ID,
		}
		if err := s.store.SaveUser(dbCtx, analyst); err != nil {
			return CompanyView{}, storageErr(err)
		}
	}

	s.onChange(ctx, c.ID)
	s.logger.Info("company created",
		zap.String("company_id", c.ID),
		zap.String("owner", c.Owner),
		zap.String("methodology", c.Methodology),
		zap.Bool("analyst", in.AnalystUsername != ""))

	return s.analyzer.view(c, nil, s.baseURL(dbCtx)), nil
}

// fromInput applies input fields over base, filling defaults.
func (s *CompanyService) fromInput(base models.Company, p Principal, in CompanyInput) (models.Company, error) {
	c := base
	c.LegalName = strings.TrimSpace(in.LegalName)
	c.TaxID = in.TaxID
	c.CNAE = in.CNAE
	c.RiskGrade = in.RiskGrade
	if c.RiskGrade == 0 {
		c.RiskGrade = defaultRiskGrade
	}
	c.Headcount = in.Headcount
	c.ResponseQuota = in.ResponseQuota
	c.ContactName = in.ContactName
	c.ContactEmail = in.ContactEmail
	c.Phone = in.Phone
	c.Address = in.Address

	c.Methodology = in.Methodology
	if c.Methodology == "" {
		c.Methodology = methodology.Default
	}
	if _, ok := s.analyzer.catalog.Get(c.Methodology); !ok {
		return models.Company{}, fmt.Errorf("%w: unknown methodology %q", ErrInvalidRequest, c.Methodology)
	}

	c.Segmentation = in.Segmentation
	if c.Segmentation == "" {
		c.Segmentation = defaultSegmentMode
	}

	if in.OrgStructure != nil {
		c.OrgStructure = in.OrgStructure
	}
	if len(c.OrgStructure) == 0 {
		c.OrgStructure = models.DefaultOrgStructure()
	}

	switch {
	case in.RequireIdentity != nil:
		c.RequireIdentity = *in.RequireIdentity
	case base.ID == "":
		c.RequireIdentity = true
	}

	switch {
	case in.ValidUntil != nil:
		c.ValidUntil = dateOf(*in.ValidUntil)
	case c.ValidUntil.IsZero():
		c.ValidUntil = dateOf(s.now().Add(defaultValidity))
	}

	switch {
	case p.IsMaster() && in.Owner != "":
		c.Owner = in.Owner
	case c.Owner == "":
		c.Owner = p.Username
	}
	return c, nil
}

func (s *CompanyService) Update(ctx context.Context, p Principal, id string, in CompanyInput) (CompanyView, error) {
	if !p.CanManage() {
		return CompanyView{}, ErrForbidden
	}
	if err := validateRequest(in); err != nil {
		return CompanyView{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	current, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return CompanyView{}, err
	}
	c, err := s.fromInput(current, p, in)
	if err != nil {
		return CompanyView{}, err
	}
	if err := s.store.UpdateCompany(dbCtx, c); err != nil {
		return CompanyView{}, storageErr(err)
	}
	s.onChange(ctx, c.ID)
	s.logger.Info("company updated", zap.String("company_id", c.ID))

	resps, err := s.store.ListResponses(dbCtx, c.ID)
	if err != nil {
		return CompanyView{}, storageErr(err)
	}
	return s.analyzer.view(c, resps, s.baseURL(dbCtx)), nil
}

// Delete removes the company with its responses and linked accounts.
func (s *CompanyService) Delete(ctx context.Context, p Principal, id string) error {
	if !p.CanManage() {
		return ErrForbidden
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCompany(dbCtx, c.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCompanyNotFound
		}
		return storageErr(err)
	}
	s.onChange(ctx, c.ID)
	s.logger.Info("company deleted", zap.String("company_id", c.ID))
	return nil
}

func (s *CompanyService) editStructure(ctx context.Context, p Principal, id string, edit func(org map[string][]string) error) (map[string][]string, error) {
	if !p.CanManage() {
		return nil, ErrForbidden
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return nil, err
	}
	org := make(map[string][]string, len(c.OrgStructure)+1)
	for k, v := range c.OrgStructure {
		org[k] = v
	}
	if err := edit(org); err != nil {
		return nil, err
	}
	c.OrgStructure = org
	if err := s.store.UpdateCompany(dbCtx, c); err != nil {
		return nil, storageErr(err)
	}
	s.onChange(ctx, c.ID)
	return org, nil
}

func cleanRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	var out []string
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		return []string{models.DefaultGroup}
	}
	return out
}

func (s *CompanyService) AddSector(ctx context.Context, p Principal, id, sector string, roles []string) (map[string][]string, error) {
	sector = strings.TrimSpace(sector)
	if sector == "" || strings.HasPrefix(sector, "_") {
		return nil, fmt.Errorf("%w: invalid sector name", ErrInvalidRequest)
	}
	return s.editStructure(ctx, p, id, func(org map[string][]string) error {
		if _, ok := org[sector]; ok {
			return ErrSectorExists
		}
		org[sector] = cleanRoles(roles)
		return nil
	})
}

func (s *CompanyService) RemoveSector(ctx context.Context, p Principal, id, sector string) (map[string][]string, error) {
	return s.editStructure(ctx, p, id, func(org map[string][]string) error {
		if _, ok := org[sector]; !ok {
			return ErrSectorNotFound
		}
		if len(Sectors(org)) == 1 {
			return ErrLastSector
		}
		delete(org, sector)
		return nil
	})
}

func (s *CompanyService) SetRoles(ctx context.Context, p Principal, id, sector string, roles []string) (map[string][]string, error) {
	return s.editStructure(ctx, p, id, func(org map[string][]string) error {
		if _, ok := org[sector]; !ok {
			return ErrSectorNotFound
		}
		org[sector] = cleanRoles(roles)
		return nil
	})
}

// Structure returns sectors and their roles, sorted by sector.
func (s *CompanyService) Structure(ctx context.Context, p Principal, id string) ([]string, map[string][]string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return nil, nil, err
	}
	sectors := Sectors(c.OrgStructure)
	roles := make(map[string][]string, len(sectors))
	for _, sec := range sectors {
		r := append([]string(nil), c.OrgStructure[sec]...)
		sort.Strings(r)
		roles[sec] = r
	}
	return sectors, roles, nil
}

// SurveyLink returns the public survey address of a company.
func (s *CompanyService) SurveyLink(ctx context.Context, p Principal, id string) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.lookup(dbCtx, p, id)
	if err != nil {
		return "", err
	}
	return SurveyLink(s.baseURL(dbCtx), c.ID), nil
}
