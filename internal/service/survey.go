package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
)

const (
	dbTimeout         = 2 * time.Second
	identityDigits    = 11
	anonymousIDPrefix = "anon_livre_"
)

// SurveyService serves the public survey form and records submissions.
type SurveyService struct {
	companies   CompanyStore
	responses   ResponseStore
	catalog     *methodology.Catalog
	engine      *scoring.Engine
	logger      *zap.Logger
	now         func() time.Time
	idGenerator func() string
	onSubmit    func(ctx context.Context, companyID string)
}

func NewSurveyService(companies CompanyStore, responses ResponseStore, catalog *methodology.Catalog, engine *scoring.Engine, logger *zap.Logger) *SurveyService {
	if companies == nil || responses == nil {
		panic("storage must not be nil")
	}
	if catalog == nil || engine == nil {
		panic("scoring engine must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{
		companies:   companies,
		responses:   responses,
		catalog:     catalog,
		engine:      engine,
		logger:      logger.Named("survey"),
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
		onSubmit:    func(context.Context, string) {},
	}
}

// OnSubmit registers a hook run after a response is stored.
func (s *SurveyService) OnSubmit(fn func(ctx context.Context, companyID string)) {
	if fn != nil {
		s.onSubmit = fn
	}
}

func (s *SurveyService) company(ctx context.Context, code string) (models.Company, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := s.companies.GetCompany(dbCtx, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, repository.ErrNotFound) {
		return models.Company{}, ErrInvalidLink
	}
	if err != nil {
		return models.Company{}, storageErr(err)
	}
	return c, nil
}

// Survey returns what a respondent needs to fill in the form. Expired or
// full links are refused unless preview is set.
func (s *SurveyService) Survey(ctx context.Context, code string, preview bool) (SurveyForm, error) {
	c, err := s.company(ctx, code)
	if err != nil {
		return SurveyForm{}, err
	}
	if !preview {
		if err := s.checkOpen(ctx, c, s.now()); err != nil {
			return SurveyForm{}, err
		}
	}

	sectors := Sectors(c.OrgStructure)
	roles := make(map[string][]string, len(sectors))
	for _, sec := range sectors {
		roles[sec] = c.OrgStructure[sec]
	}

	return SurveyForm{
		CompanyID:       c.ID,
		CompanyName:     c.LegalName,
		Methodology:     s.catalog.Resolve(c.Methodology),
		Sectors:         sectors,
		Roles:           roles,
		RequireIdentity: c.RequireIdentity,
		ValidUntil:      c.ValidUntil,
	}, nil
}

// Submit validates and stores one respondent's answers. Nothing is stored
// when any check fails.
func (s *SurveyService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := validateRequest(req); err != nil {
		return SubmitResult{}, err
	}

	c, err := s.company(ctx, req.CompanyID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	if !req.Preview {
		if err := s.checkOpen(ctx, c, now); err != nil {
			return SubmitResult{}, err
		}
	}

	identityHash, err := s.identityHash(c, req.Identity)
	if err != nil {
		return SubmitResult{}, err
	}
	if !req.Consent {
		return SubmitResult{}, ErrConsentRequired
	}

	m := s.catalog.Resolve(c.Methodology)
	answers, err := s.normalizeAnswers(m, req.Answers)
	if err != nil {
		return SubmitResult{}, err
	}

	sector, err := resolveSector(c.OrgStructure, req.Sector)
	if err != nil {
		return SubmitResult{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if c.RequireIdentity {
		exists, err := s.responses.HasResponse(dbCtx, c.ID, identityHash)
		if err != nil {
			return SubmitResult{}, storageErr(err)
		}
		if exists {
			s.logger.Info("duplicate submission rejected", zap.String("company_id", c.ID))
			return SubmitResult{}, ErrDuplicateSubmission
		}
	}

	resp := models.Response{
		ID:           s.idGenerator(),
		CompanyID:    c.ID,
		IdentityHash: identityHash,
		Sector:       sector,
		Answers:      answers,
		CreatedAt:    now,
	}
	if err := s.responses.InsertResponse(dbCtx, resp); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Info("duplicate submission rejected at insert", zap.String("company_id", c.ID))
			return SubmitResult{}, ErrDuplicateSubmission
		}
		return SubmitResult{}, storageErr(err)
	}
	s.onSubmit(ctx, c.ID)

	score := s.engine.ScoreResponse(m, answers)
	s.logger.Info("survey response recorded",
		zap.String("company_id", c.ID),
		zap.String("sector", sector),
		zap.Bool("preview", req.Preview),
		zap.Float64("score", score))

	return SubmitResult{ResponseID: resp.ID, Score: score, CreatedAt: now}, nil
}

func (s *SurveyService) checkOpen(ctx context.Context, c models.Company, now time.Time) error {
	if !c.ValidUntil.IsZero() && dateOf(now).After(dateOf(c.ValidUntil)) {
		return ErrLinkExpired
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	n, err := s.responses.CountResponses(dbCtx, c.ID)
	if err != nil {
		return storageErr(err)
	}
	if n >= c.ResponseQuota {
		return ErrQuotaReached
	}
	return nil
}

func (s *SurveyService) identityHash(c models.Company, identity string) (string, error) {
	if !c.RequireIdentity {
		return anonymousIDPrefix + strings.ReplaceAll(s.idGenerator(), "-", ""), nil
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, identity)
	if len(digits) != identityDigits {
		return "", ErrInvalidIdentity
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:]), nil
}

// normalizeAnswers requires an option for every question and stores the
// canonical spelling of each label. Answers to unknown questions are dropped.
func (s *SurveyService) normalizeAnswers(m *methodology.Methodology, in map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for _, q := range m.Questions() {
		label := strings.TrimSpace(in[q.Text])
		if label == "" {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteAnswers, q.ID)
		}
		pos, ok := s.engine.Mapper().Position(label, q.Scale)
		if !ok || pos < 1 || pos > len(q.Options) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAnswer, q.ID)
		}
		out[q.Text] = q.Options[pos-1]
	}
	return out, nil
}

// Sectors lists the respondent-facing sectors; keys starting with "_" are
// internal.
func Sectors(org map[string][]string) []string {
	var out []string
	for k := range org {
		if !strings.HasPrefix(k, "_") {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return []string{models.DefaultGroup}
	}
	sort.Strings(out)
	return out
}

func resolveSector(org map[string][]string, sector string) (string, error) {
	sectors := Sectors(org)
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return sectors[0], nil
	}
	for _, s := range sectors {
		if s == sector {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSector, sector)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
