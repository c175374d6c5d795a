package repository_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/pkg/database"
)

type store interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, id string) (models.Company, error)
	CreateCompany(ctx context.Context, c models.Company) error
	UpdateCompany(ctx context.Context, c models.Company) error
	DeleteCompany(ctx context.Context, id string) error
	ListResponses(ctx context.Context, companyIDs ...string) ([]models.Response, error)
	CountResponses(ctx context.Context, companyID string) (int, error)
	HasResponse(ctx context.Context, companyID, identityHash string) (bool, error)
	InsertResponse(ctx context.Context, r models.Response) error
	GetUser(ctx context.Context, username string) (models.AdminUser, error)
	ListUsers(ctx context.Context) ([]models.AdminUser, error)
	SaveUser(ctx context.Context, u models.AdminUser) error
	DeleteUser(ctx context.Context, username string) error
	GetSettings(ctx context.Context) (models.PlatformSettings, error)
	SaveSettings(ctx context.Context, s models.PlatformSettings) error
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(context.Background(),
		database.WithDriver("sqlite3"),
		database.WithDataSource(":memory:"),
		database.WithPool(1, 1),
		database.WithSchema(repository.Schema...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCompany(id string, created time.Time) models.Company {
	return models.Company{
		ID:              id,
		LegalName:       "Empresa " + id,
		TaxID:           "12.345.678/0001-90",
		RiskGrade:       2,
		Headcount:       10,
		ResponseQuota:   10,
		Methodology:     "HSE-IT (35 itens)",
		Segmentation:    "Setor",
		OrgStructure:    map[string][]string{"Produção": {"Operador", "Supervisor"}, "_interno": {"x"}},
		RequireIdentity: true,
		ValidUntil:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Owner:           "gestor1",
		CreatedAt:       created,
	}
}

func stores(t *testing.T) map[string]store {
	return map[string]store{
		"sql":    repository.NewSurveyRepository(setupTestDB(t), "sqlite3"),
		"memory": repository.NewMemoryRepository(),
	}
}

func TestSurveyStores(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("companies", func(t *testing.T) {
				require.NoError(t, s.CreateCompany(ctx, testCompany("AAAA0001", base)))
				require.NoError(t, s.CreateCompany(ctx, testCompany("BBBB0002", base.Add(time.Hour))))
				assert.ErrorIs(t, s.CreateCompany(ctx, testCompany("AAAA0001", base)), repository.ErrConflict)

				got, err := s.GetCompany(ctx, "AAAA0001")
				require.NoError(t, err)
				assert.Equal(t, "Empresa AAAA0001", got.LegalName)
				assert.Equal(t, []string{"Operador", "Supervisor"}, got.OrgStructure["Produção"])
				assert.True(t, got.RequireIdentity)
				assert.True(t, got.ValidUntil.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
				assert.True(t, got.CreatedAt.Equal(base))

				got.Headcount = 42
				got.RequireIdentity = false
				require.NoError(t, s.UpdateCompany(ctx, got))
				got, err = s.GetCompany(ctx, "AAAA0001")
				require.NoError(t, err)
				assert.Equal(t, 42, got.Headcount)
				assert.False(t, got.RequireIdentity)

				all, err := s.ListCompanies(ctx)
				require.NoError(t, err)
				require.Len(t, all, 2)
				assert.Equal(t, "AAAA0001", all[0].ID)

				_, err = s.GetCompany(ctx, "NOPE")
				assert.ErrorIs(t, err, repository.ErrNotFound)
				assert.ErrorIs(t, s.UpdateCompany(ctx, testCompany("NOPE", base)), repository.ErrNotFound)
			})

			t.Run("responses", func(t *testing.T) {
				r := models.Response{
					ID:           "r1",
					CompanyID:    "AAAA0001",
					IdentityHash: "hash-1",
					Sector:       "Produção",
					Answers:      map[string]string{"Tenho prazos irrealistas?": "Raramente"},
					CreatedAt:    base,
				}
				require.NoError(t, s.InsertResponse(ctx, r))

				dup := r
				dup.ID = "r2"
				assert.ErrorIs(t, s.InsertResponse(ctx, dup), repository.ErrConflict)

				other := r
				other.ID = "r3"
				other.CompanyID = "BBBB0002"
				other.CreatedAt = time.Time{}
				require.NoError(t, s.InsertResponse(ctx, other))

				has, err := s.HasResponse(ctx, "AAAA0001", "hash-1")
				require.NoError(t, err)
				assert.True(t, has)
				has, err = s.HasResponse(ctx, "AAAA0001", "hash-2")
				require.NoError(t, err)
				assert.False(t, has)

				n, err := s.CountResponses(ctx, "AAAA0001")
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				mine, err := s.ListResponses(ctx, "AAAA0001")
				require.NoError(t, err)
				require.Len(t, mine, 1)
				assert.Equal(t, "Raramente", mine[0].Answers["Tenho prazos irrealistas?"])
				assert.True(t, mine[0].CreatedAt.Equal(base))

				theirs, err := s.ListResponses(ctx, "BBBB0002")
				require.NoError(t, err)
				require.Len(t, theirs, 1)
				assert.True(t, theirs[0].CreatedAt.IsZero())

				all, err := s.ListResponses(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 2)
			})

			t.Run("users", func(t *testing.T) {
				until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
				require.NoError(t, s.SaveUser(ctx, models.AdminUser{Username: "ana", PasswordHash: "h", Role: models.RoleAnalyst, Credits: 10, ValidUntil: &until, LinkedCompanyID: "AAAA0001"}))
				require.NoError(t, s.SaveUser(ctx, models.AdminUser{Username: "gestor1", PasswordHash: "h", Role: models.RoleManager, Credits: 500}))

				u, err := s.GetUser(ctx, "ana")
				require.NoError(t, err)
				assert.Equal(t, models.RoleAnalyst, u.Role)
				require.NotNil(t, u.ValidUntil)
				assert.True(t, u.ValidUntil.Equal(until))

				u.Credits = 20
				require.NoError(t, s.SaveUser(ctx, u))
				u, err = s.GetUser(ctx, "ana")
				require.NoError(t, err)
				assert.Equal(t, 20, u.Credits)

				users, err := s.ListUsers(ctx)
				require.NoError(t, err)
				require.Len(t, users, 2)
				assert.Equal(t, "ana", users[0].Username)
				assert.Nil(t, users[1].ValidUntil)

				_, err = s.GetUser(ctx, "ghost")
				assert.ErrorIs(t, err, repository.ErrNotFound)
			})

			t.Run("settings", func(t *testing.T) {
				got, err := s.GetSettings(ctx)
				require.NoError(t, err)
				assert.Equal(t, models.DefaultSettings(), got)

				want := models.PlatformSettings{Name: "Plataforma", Consultancy: "RH+", BaseURL: "https://example.org"}
				require.NoError(t, s.SaveSettings(ctx, want))
				require.NoError(t, s.SaveSettings(ctx, want))
				got, err = s.GetSettings(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})

			t.Run("delete company cascades", func(t *testing.T) {
				require.NoError(t, s.DeleteCompany(ctx, "AAAA0001"))

				_, err := s.GetCompany(ctx, "AAAA0001")
				assert.ErrorIs(t, err, repository.ErrNotFound)

				n, err := s.CountResponses(ctx, "AAAA0001")
				require.NoError(t, err)
				assert.Zero(t, n)

				_, err = s.GetUser(ctx, "ana")
				assert.ErrorIs(t, err, repository.ErrNotFound)
				_, err = s.GetUser(ctx, "gestor1")
				assert.NoError(t, err)

				others, err := s.ListResponses(ctx, "BBBB0002")
				require.NoError(t, err)
				assert.Len(t, others, 1)

				assert.ErrorIs(t, s.DeleteCompany(ctx, "AAAA0001"), repository.ErrNotFound)
			})

			t.Run("delete user", func(t *testing.T) {
				require.NoError(t, s.DeleteUser(ctx, "gestor1"))
				assert.ErrorIs(t, s.DeleteUser(ctx, "gestor1"), repository.ErrNotFound)
			})
		})
	}
}

func TestInsertResponse_ConcurrentDuplicates(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateCompany(ctx, testCompany("CCCC0003", time.Now().UTC())))

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				accepted  int
				conflicts int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := s.InsertResponse(ctx, models.Response{
						ID:           "race-" + string(rune('a'+i)),
						CompanyID:    "CCCC0003",
						IdentityHash: "same-person",
						Answers:      map[string]string{},
						CreatedAt:    time.Now().UTC(),
					})
					mu.Lock()
					defer mu.Unlock()
					switch err {
					case nil:
						accepted++
					case repository.ErrConflict:
						conflicts++
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, accepted)
			assert.Equal(t, workers-1, conflicts)
		})
	}
}
