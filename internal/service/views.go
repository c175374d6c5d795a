package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
)

// analyzer turns stored rows into derived views. Nothing it computes is persisted.
type analyzer struct {
	catalog *methodology.Catalog
	engine  *scoring.Engine
}

func submissions(resps []models.Response) []scoring.Submission {
	out := make([]scoring.Submission, len(resps))
	for i, r := range resps {
		out[i] = scoring.Submission{Sector: r.Sector, Answers: r.Answers, CreatedAt: r.CreatedAt}
	}
	return out
}

func groupByCompany(resps []models.Response) map[string][]models.Response {
	out := make(map[string][]models.Response)
	for _, r := range resps {
		out[r.CompanyID] = append(out[r.CompanyID], r)
	}
	return out
}

func (a analyzer) view(c models.Company, resps []models.Response, baseURL string) CompanyView {
	m := a.catalog.Resolve(c.Methodology)
	stats := a.engine.Aggregate(m, submissions(resps))
	return CompanyView{
		Company:      c,
		Responded:    stats.Responded,
		Score:        stats.Score,
		Dimensions:   stats.Dimensions,
		QuestionRisk: stats.Questions,
		SurveyLink:   SurveyLink(baseURL, c.ID),
	}
}

func (a analyzer) views(companies []models.Company, resps []models.Response, baseURL string) []CompanyView {
	byCompany := groupByCompany(resps)
	out := make([]CompanyView, len(companies))
	for i, c := range companies {
		out[i] = a.view(c, byCompany[c.ID], baseURL)
	}
	return out
}

// SurveyLink is the public address respondents open for a company.
func SurveyLink(baseURL, companyID string) string {
	return strings.TrimRight(baseURL, "/") + "/?cod=" + companyID
}

func visibleCompanies(p Principal, all []models.Company) []models.Company {
	var out []models.Company
	for _, c := range all {
		if p.CanSee(c) {
			out = append(out, c)
		}
	}
	return out
}

func companyIDs(companies []models.Company) []string {
	ids := make([]string, len(companies))
	for i, c := range companies {
		ids[i] = c.ID
	}
	return ids
}

// CreditsLeft is the principal's credit balance less the responses already
// collected by the companies they see. Analysts are charged for their linked
// company only.
func CreditsLeft(p Principal, views []CompanyView) int {
	used := 0
	for _, v := range views {
		if p.Role == models.RoleAnalyst && v.ID != p.LinkedCompanyID {
			continue
		}
		used += v.Responded
	}
	return p.Credits - used
}

// findCompany loads a company the principal can see. Companies outside the
// portfolio are reported as missing.
func findCompany(ctx context.Context, store CompanyStore, p Principal, id string) (models.Company, error) {
	c, err := store.GetCompany(ctx, strings.ToUpper(strings.TrimSpace(id)))
	if errors.Is(err, repository.ErrNotFound) {
		return models.Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return models.Company{}, storageErr(err)
	}
	if !p.CanSee(c) {
		return models.Company{}, ErrCompanyNotFound
	}
	return c, nil
}

func roundTenth(v float64) float64     { return math.RoundToEven(v*10) / 10 }
func roundHundredth(v float64) float64 { return math.RoundToEven(v*100) / 100 }
