package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service/mocks"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

var (
	master  = Principal{Username: "admin", Role: models.RoleMaster, Credits: 999999}
	manager = Principal{Username: "gestora", Role: models.RoleManager, Credits: 100}
)

func testEngine(t *testing.T) (*methodology.Catalog, *scoring.Engine) {
	t.Helper()
	catalog, err := methodology.Load()
	require.NoError(t, err)
	engine, err := scoring.New(catalog)
	require.NoError(t, err)
	return catalog, engine
}

// uniformAnswers answers every question with the option at pos (1..5).
func uniformAnswers(m *methodology.Methodology, pos int) map[string]string {
	out := make(map[string]string)
	for _, q := range m.Questions() {
		out[q.Text] = q.Options[pos-1]
	}
	return out
}

func testCompany(id, owner string) models.Company {
	return models.Company{
		ID:              id,
		LegalName:       "Empresa " + id,
		Headcount:       10,
		ResponseQuota:   5,
		Methodology:     methodology.Default,
		Segmentation:    "GHE",
		OrgStructure:    map[string][]string{"Operação": {"Operador"}, "Administrativo": {"Analista"}, "_exigir_cpf": {"1"}},
		RequireIdentity: true,
		ValidUntil:      fixedNow.AddDate(0, 1, 0),
		Owner:           owner,
		CreatedAt:       fixedNow.AddDate(0, -2, 0),
	}
}

func seedCompany(t *testing.T, store *mocks.MockStore, c models.Company) {
	t.Helper()
	require.NoError(t, store.MemoryRepository.CreateCompany(context.Background(), c))
}

func seedResponses(t *testing.T, store *mocks.MockStore, companyID, sector string, answers map[string]string, at ...time.Time) {
	t.Helper()
	for i, ts := range at {
		require.NoError(t, store.MemoryRepository.InsertResponse(context.Background(), models.Response{
			ID:           companyID + sector + ts.Format(time.RFC3339Nano) + string(rune('a'+i)),
			CompanyID:    companyID,
			IdentityHash: companyID + sector + ts.Format(time.RFC3339Nano) + string(rune('a'+i)),
			Sector:       sector,
			Answers:      answers,
			CreatedAt:    ts,
		}))
	}
}

// scoredAnswers picks, for every question, the option that maps to value v
// once reverse scoring is applied.
func scoredAnswers(m *methodology.Methodology, v int) map[string]string {
	out := make(map[string]string)
	for _, q := range m.Questions() {
		pos := v
		if q.Reverse {
			pos = 6 - v
		}
		out[q.Text] = q.Options[pos-1]
	}
	return out
}
