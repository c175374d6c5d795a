package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/internal/scoring"
	"github.com/elonr01/survey-server/internal/service"
	"github.com/elonr01/survey-server/internal/service/mocks"
)

const adminPassword = "root-pass"

type testEnv struct {
	store   *mocks.MockStore
	catalog *methodology.Catalog
	server  *httptest.Server
}

func newTestEnv(t *testing.T, degraded bool) *testEnv {
	t.Helper()
	catalog, err := methodology.Load()
	require.NoError(t, err)
	engine, err := scoring.New(catalog)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	store := mocks.NewMockStore()
	hasher := service.BcryptHasher{Cost: bcrypt.MinCost}

	accounts := service.NewAccountService(store, store, service.AccountOptions{Secret: []byte("secret"), Hasher: hasher}, logger)
	require.NoError(t, accounts.EnsureBootstrapAdmin(context.Background(), adminPassword))

	api := New(
		service.NewSurveyService(store, store, catalog, engine, logger),
		service.NewCompanyService(store, catalog, engine, hasher, logger),
		service.NewAnalyticsService(store, catalog, engine, degraded, logger),
		accounts,
		store,
		nil,
		logger,
	)
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{store: store, catalog: catalog, server: srv}
}

func (e *testEnv) seedCompany(t *testing.T, id, owner string) {
	t.Helper()
	require.NoError(t, e.store.MemoryRepository.CreateCompany(context.Background(), models.Company{
		ID:              id,
		LegalName:       "Empresa " + id,
		Headcount:       10,
		ResponseQuota:   5,
		Methodology:     methodology.Default,
		Segmentation:    "GHE",
		OrgStructure:    map[string][]string{"Operação": {"Operador"}},
		RequireIdentity: true,
		ValidUntil:      time.Now().UTC().AddDate(0, 1, 0),
		Owner:           owner,
		CreatedAt:       time.Now().UTC().AddDate(0, -1, 0),
	}))
}

func (e *testEnv) answers(pos int) map[string]string {
	out := make(map[string]string)
	for _, q := range e.catalog.Resolve(methodology.Default).Questions() {
		out[q.Text] = q.Options[pos-1]
	}
	return out
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", "", loginBody{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.LoginResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res.Token
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestNew(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil, nil, nil, nil, nil) })
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t, true)
		resp := env.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, true, body["degraded"])
	})

	t.Run("store unreachable", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.store.PingFunc = func(context.Context) error { return errors.New("down") }
		resp := env.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestSurveyRoutes(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedCompany(t, "ABC12345", "gestora")

	t.Run("get survey", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/survey/abc12345", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var form service.SurveyForm
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&form))
		assert.Equal(t, "ABC12345", form.CompanyID)
		assert.Equal(t, []string{"Operação"}, form.Sectors)
	})

	t.Run("unknown link", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/survey/NOPE", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "invalid_link", decodeError(t, resp).Code)
	})

	submit := submitBody{Identity: "123.456.789-09", Sector: "Operação", Answers: env.answers(3), Consent: true}

	t.Run("submit", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses", "", submit)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var res service.SubmitResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.NotEmpty(t, res.ResponseID)
	})

	t.Run("duplicate", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses", "", submit)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "duplicate_submission", decodeError(t, resp).Code)
	})

	t.Run("no consent", func(t *testing.T) {
		body := submit
		body.Identity = "98765432100"
		body.Consent = false
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses", "", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses", "", `{"consent":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_json", decodeError(t, resp).Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses", "", `{"consent":true,"extra":1}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("preview needs a token", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/survey/ABC12345/responses?preview=1", "", submit)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPreviewSubmission(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.store.MemoryRepository.CreateCompany(context.Background(), models.Company{
		ID:            "OLD00001",
		LegalName:     "Antiga",
		Headcount:     1,
		ResponseQuota: 1,
		Methodology:   methodology.Default,
		OrgStructure:  models.DefaultOrgStructure(),
		ValidUntil:    time.Now().UTC().AddDate(0, 0, -3),
		Owner:         service.BootstrapAdmin,
	}))
	body := submitBody{Answers: env.answers(2), Consent: true}

	resp := env.do(t, http.MethodPost, "/api/v1/survey/OLD00001/responses", "", body)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	token := env.login(t, service.BootstrapAdmin, adminPassword)
	resp = env.do(t, http.MethodPost, "/api/v1/survey/OLD00001/responses?preview=1", token, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClosedSurveyForm(t *testing.T) {
	env := newTestEnv(t, false)
	closed := func(id string, validUntil time.Time, quota int) {
		require.NoError(t, env.store.MemoryRepository.CreateCompany(context.Background(), models.Company{
			ID:            id,
			LegalName:     "Fechada " + id,
			Headcount:     1,
			ResponseQuota: quota,
			Methodology:   methodology.Default,
			OrgStructure:  models.DefaultOrgStructure(),
			ValidUntil:    validUntil,
			Owner:         service.BootstrapAdmin,
		}))
	}
	closed("OLD00001", time.Now().UTC().AddDate(0, 0, -3), 5)
	closed("FULL0001", time.Now().UTC().AddDate(0, 1, 0), 1)
	require.NoError(t, env.store.MemoryRepository.InsertResponse(context.Background(), models.Response{
		ID:           "r1",
		CompanyID:    "FULL0001",
		IdentityHash: "h1",
		Sector:       "Geral",
		Answers:      env.answers(3),
		CreatedAt:    time.Now().UTC(),
	}))

	t.Run("expired link", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/survey/old00001", "", nil)
		assert.Equal(t, http.StatusGone, resp.StatusCode)
		assert.Equal(t, "link_expired", decodeError(t, resp).Code)
	})

	t.Run("quota reached", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/survey/FULL0001", "", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "quota_reached", decodeError(t, resp).Code)
	})

	t.Run("preview needs a token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/survey/OLD00001?preview=1", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("staff preview renders closed links", func(t *testing.T) {
		token := env.login(t, service.BootstrapAdmin, adminPassword)
		for _, id := range []string{"OLD00001", "FULL0001"} {
			resp := env.do(t, http.MethodGet, "/api/v1/survey/"+id+"?preview=1", token, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, id)

			var form service.SurveyForm
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&form))
			assert.Equal(t, id, form.CompanyID)
		}
	})
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, false)

	t.Run("bad credentials", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", loginBody{Username: "admin", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid_credentials", decodeError(t, resp).Code)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/companies", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "missing_token", decodeError(t, resp).Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/companies", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid_token", decodeError(t, resp).Code)
	})

	t.Run("me", func(t *testing.T) {
		token := env.login(t, service.BootstrapAdmin, adminPassword)
		resp := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var p service.Principal
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
		assert.Equal(t, models.RoleMaster, p.Role)
	})
}

func TestCompanyLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	token := env.login(t, service.BootstrapAdmin, adminPassword)

	resp := env.do(t, http.MethodPost, "/api/v1/companies", token, service.CompanyInput{
		LegalName:     "Metalúrgica Sul",
		Headcount:     20,
		ResponseQuota: 20,
		OrgStructure:  map[string][]string{"Produção": {"Soldador"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created service.CompanyView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created.ID, 8)
	base := "/api/v1/companies/" + created.ID

	t.Run("list", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/companies", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var views []service.CompanyView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
		assert.Len(t, views, 1)
	})

	t.Run("sectors", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, base+"/sectors", token, sectorBody{Name: "Logística", Roles: []string{"Motorista"}})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = env.do(t, http.MethodPost, base+"/sectors", token, sectorBody{Name: "Logística"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = env.do(t, http.MethodGet, base+"/structure", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st structureResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		assert.Equal(t, []string{"Logística", "Produção"}, st.Sectors)
	})

	t.Run("link", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, base+"/link", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, strings.HasSuffix(body["link"], created.ID))
	})

	t.Run("analytics and export", func(t *testing.T) {
		submit := submitBody{Identity: "11122233344", Sector: "Produção", Answers: env.answers(4), Consent: true}
		resp := env.do(t, http.MethodPost, "/api/v1/survey/"+created.ID+"/responses", "", submit)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = env.do(t, http.MethodGet, base+"/analytics", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var view service.CompanyView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
		assert.Equal(t, 1, view.Responded)

		resp = env.do(t, http.MethodGet, base+"/responses.csv", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), created.ID)

		resp = env.do(t, http.MethodGet, base+"/compare", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/v1/dashboard?company="+created.ID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var d service.Dashboard
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
		assert.Equal(t, 1, d.Responses)
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, base, token, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.do(t, http.MethodGet, base, token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestManagerVisibility(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedCompany(t, "AAA00001", "outra")
	admin := env.login(t, service.BootstrapAdmin, adminPassword)

	resp := env.do(t, http.MethodPost, "/api/v1/users", admin, service.UserInput{Username: "gestora", Password: "senha", Role: models.RoleManager})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := env.login(t, "gestora", "senha")

	resp = env.do(t, http.MethodGet, "/api/v1/companies/AAA00001", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/v1/settings", token, service.SettingsInput{Name: "X", BaseURL: "https://x.example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStorageFailureHidesDetails(t *testing.T) {
	env := newTestEnv(t, false)
	token := env.login(t, service.BootstrapAdmin, adminPassword)
	env.store.ListCompaniesFunc = func(context.Context) ([]models.Company, error) {
		return nil, errors.New("pq: connection refused at 10.0.0.3")
	}

	resp := env.do(t, http.MethodGet, "/api/v1/companies", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "storage_failure", body.Code)
	assert.NotContains(t, body.Message, "10.0.0.3")
}
