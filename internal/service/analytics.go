package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
)

// AnalyticsService derives indicators, history and reports from stored
// responses. Every call recomputes from a full fetch.
type AnalyticsService struct {
	store    Store
	analyzer analyzer
	degraded bool
	logger   *zap.Logger
	now      func() time.Time
}

func NewAnalyticsService(store Store, catalog *methodology.Catalog, engine *scoring.Engine, degraded bool, logger *zap.Logger) *AnalyticsService {
	if store == nil {
		panic("storage must not be nil")
	}
	if catalog == nil || engine == nil {
		panic("scoring engine must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		store:    store,
		analyzer: analyzer{catalog: catalog, engine: engine},
		degraded: degraded,
		logger:   logger.Named("analytics"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Degraded reports whether the service runs on the in-memory fallback store.
func (s *AnalyticsService) Degraded() bool { return s.degraded }

func (s *AnalyticsService) load(ctx context.Context, p Principal, id string) (models.Company, []models.Response, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := findCompany(dbCtx, s.store, p, id)
	if err != nil {
		return models.Company{}, nil, err
	}
	resps, err := s.store.ListResponses(dbCtx, c.ID)
	if err != nil {
		return models.Company{}, nil, storageErr(err)
	}
	return c, resps, nil
}

func (s *AnalyticsService) baseURL(ctx context.Context) string {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return models.DefaultSettings().BaseURL
	}
	return settings.BaseURL
}

func (s *AnalyticsService) CompanyAnalytics(ctx context.Context, p Principal, id string) (CompanyView, error) {
	c, resps, err := s.load(ctx, p, id)
	if err != nil {
		return CompanyView{}, err
	}
	return s.analyzer.view(c, resps, s.baseURL(ctx)), nil
}

// History returns one record per calendar month, oldest first.
func (s *AnalyticsService) History(ctx context.Context, p Principal, id string) ([]scoring.PeriodRecord, error) {
	c, resps, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	m := s.analyzer.catalog.Resolve(c.Methodology)
	return s.analyzer.engine.History(m, submissions(resps), c.Headcount), nil
}

// Compare contrasts two periods of the company history. Empty labels pick the
// two most recent periods.
func (s *AnalyticsService) Compare(ctx context.Context, p Principal, id, periodA, periodB string) (scoring.Comparison, error) {
	records, err := s.History(ctx, p, id)
	if err != nil {
		return scoring.Comparison{}, err
	}
	if len(records) < 2 {
		return scoring.Comparison{}, ErrNotEnoughPeriods
	}

	if periodA == "" && periodB == "" {
		return scoring.ComparePeriods(records[len(records)-2], records[len(records)-1]), nil
	}

	a, okA := findPeriod(records, periodA)
	b, okB := findPeriod(records, periodB)
	if !okA || !okB {
		return scoring.Comparison{}, fmt.Errorf("%w: %q/%q", ErrPeriodNotFound, periodA, periodB)
	}
	return scoring.ComparePeriods(a, b), nil
}

func findPeriod(records []scoring.PeriodRecord, label string) (scoring.PeriodRecord, bool) {
	for _, r := range records {
		if r.Period == label {
			return r, true
		}
	}
	return scoring.PeriodRecord{}, false
}

func (s *AnalyticsService) Recommendations(ctx context.Context, p Principal, id string) ([]scoring.Suggestion, error) {
	c, resps, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	m := s.analyzer.catalog.Resolve(c.Methodology)
	stats := s.analyzer.engine.Aggregate(m, submissions(resps))
	return s.analyzer.engine.Recommend(stats.DimensionMap()), nil
}

// Report assembles the technical report content for a company.
func (s *AnalyticsService) Report(ctx context.Context, p Principal, id string) (Report, error) {
	c, resps, err := s.load(ctx, p, id)
	if err != nil {
		return Report{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	settings, err := s.store.GetSettings(dbCtx)
	if err != nil {
		return Report{}, storageErr(err)
	}

	m := s.analyzer.catalog.Resolve(c.Methodology)
	view := s.analyzer.view(c, resps, settings.BaseURL)

	byDimension := make(map[string][]QuestionDetail, len(view.Dimensions))
	for _, q := range view.QuestionRisk {
		byDimension[q.Dimension] = append(byDimension[q.Dimension], QuestionDetail{
			QuestionRisk: q,
			Band:         scoring.QuestionBand(q.Risk),
		})
	}

	dims := make([]DimensionReport, len(view.Dimensions))
	dimMap := make(map[string]float64, len(view.Dimensions))
	for i, d := range view.Dimensions {
		dims[i] = DimensionReport{
			Name:      d.Name,
			Average:   d.Average,
			Band:      scoring.DimensionBand(d.Average),
			Questions: byDimension[d.Name],
		}
		dimMap[d.Name] = d.Average
	}

	suggestions := s.analyzer.engine.Recommend(dimMap)
	return Report{
		Company:     view,
		Settings:    settings,
		Methodology: m.Name,
		Dimensions:  dims,
		Diagnosis:   scoring.Diagnosis(view.Dimensions),
		Suggestions: suggestions,
		ActionPlan:  scoring.DefaultActionPlan(suggestions),
		GeneratedAt: s.now(),
	}, nil
}

// Dashboard aggregates the principal's portfolio. A non-empty companyID
// narrows it to that company.
func (s *AnalyticsService) Dashboard(ctx context.Context, p Principal, companyID string) (Dashboard, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		all      []models.Company
		resps    []models.Response
		settings models.PlatformSettings
		account  models.AdminUser
	)
	g, gctx := errgroup.WithContext(dbCtx)
	g.Go(func() error {
		var err error
		all, err = s.store.ListCompanies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		resps, err = s.store.ListResponses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		settings, err = s.store.GetSettings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		account, err = s.store.GetUser(gctx, p.Username)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, storageErr(err)
	}
	// Credits may have changed since the token was issued.
	if account.Username != "" {
		p.Credits = principalOf(account).Credits
	}

	visible := visibleCompanies(p, all)
	views := s.analyzer.views(visible, resps, settings.BaseURL)

	d := Dashboard{
		CreditsLeft: CreditsLeft(p, views),
		Radar:       []scoring.DimensionScore{},
		Sectors:     []SectorScore{},
		Status:      []CompanyStatus{},
		Degraded:    s.degraded,
	}

	if companyID != "" {
		var picked []CompanyView
		for _, v := range views {
			if v.ID == companyID {
				picked = append(picked, v)
			}
		}
		if len(picked) == 0 {
			return Dashboard{}, ErrCompanyNotFound
		}
		views = picked
	}

	byCompany := groupByCompany(resps)
	d.Companies = len(views)
	for _, v := range views {
		d.Responses += v.Responded
		d.Headcount += v.Headcount
		if len(scoring.AtRisk(v.Dimensions)) > 0 {
			d.RiskAlerts++
		}
		d.Status = append(d.Status, companyStatus(v))
	}

	d.Methodology, d.Radar = s.radar(views)
	d.Sectors = s.sectorScores(views, byCompany)
	return d, nil
}

func companyStatus(v CompanyView) CompanyStatus {
	adhesion := 0
	if v.Headcount > 0 {
		adhesion = int(float64(v.Responded) / float64(v.Headcount) * 100)
	}
	return CompanyStatus{
		CompanyID: v.ID,
		Name:      v.LegalName,
		Responded: v.Responded,
		Headcount: v.Headcount,
		Adhesion:  adhesion,
		Completed: v.Headcount > 0 && v.Responded >= v.Headcount,
	}
}

// radar averages dimension scores under the methodology of the first listed
// company, over the companies sharing it that have responses. Companies on
// other methodologies are left out; when none sharing it has data every
// dimension reads 0.
func (s *AnalyticsService) radar(views []CompanyView) (string, []scoring.DimensionScore) {
	responded := 0
	for _, v := range views {
		responded += v.Responded
	}
	if len(views) == 0 || responded == 0 {
		return "", []scoring.DimensionScore{}
	}

	m := s.analyzer.catalog.Resolve(views[0].Methodology)
	sums := make(map[string]float64)
	withData := 0
	for _, v := range views {
		if v.Responded == 0 || s.analyzer.catalog.Resolve(v.Methodology).Name != m.Name {
			continue
		}
		withData++
		for _, dim := range v.Dimensions {
			sums[dim.Name] += dim.Average
		}
	}

	out := make([]scoring.DimensionScore, 0, len(m.Dimensions))
	for _, name := range m.DimensionNames() {
		avg := 0.0
		if withData > 0 {
			avg = roundTenth(sums[name] / float64(withData))
		}
		out = append(out, scoring.DimensionScore{Name: name, Average: avg})
	}
	return m.Name, out
}

func (s *AnalyticsService) sectorScores(views []CompanyView, byCompany map[string][]models.Response) []SectorScore {
	type acc struct {
		sum   float64
		count int
	}
	sectors := make(map[string]*acc)
	for _, v := range views {
		m := s.analyzer.catalog.Resolve(v.Methodology)
		for _, r := range byCompany[v.ID] {
			a, ok := sectors[r.Sector]
			if !ok {
				a = &acc{}
				sectors[r.Sector] = a
			}
			a.sum += s.analyzer.engine.ScoreResponse(m, r.Answers)
			a.count++
		}
	}

	out := make([]SectorScore, 0, len(sectors))
	for name, a := range sectors {
		out = append(out, SectorScore{
			Sector:    name,
			Score:     roundHundredth(a.sum / float64(a.count)),
			Responses: a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out
}

// ExportResponsesCSV writes one row per response: timestamp, sector, score and
// the label chosen for every question in methodology order.
func (s *AnalyticsService) ExportResponsesCSV(ctx context.Context, p Principal, id string, w io.Writer) error {
	c, resps, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	m := s.analyzer.catalog.Resolve(c.Methodology)
	questions := m.Questions()

	cw := csv.NewWriter(w)
	header := []string{"created_at", "sector", "score"}
	for _, q := range questions {
		header = append(header, q.ID)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range resps {
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		score := s.analyzer.engine.ScoreResponse(m, r.Answers)
		row := []string{created, r.Sector, strconv.FormatFloat(score, 'f', 2, 64)}
		for _, q := range questions {
			row = append(row, r.Answers[q.Text])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	s.logger.Info("responses exported", zap.String("company_id", c.ID), zap.Int("rows", len(resps)))
	return nil
}
