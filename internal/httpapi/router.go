package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/elonr01/survey-server/internal/service"
)

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 30 * time.Second
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API serves the public survey and the administration panel over HTTP.
type API struct {
	surveys   *service.SurveyService
	companies *service.CompanyService
	analytics *service.AnalyticsService
	accounts  *service.AccountService
	store     Pinger
	origins   []string
	logger    *zap.Logger
}

func New(surveys *service.SurveyService, companies *service.CompanyService, analytics *service.AnalyticsService, accounts *service.AccountService, store Pinger, origins []string, logger *zap.Logger) *API {
	if surveys == nil || companies == nil || analytics == nil || accounts == nil || store == nil {
		panic("httpapi: nil dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &API{
		surveys:   surveys,
		companies: companies,
		analytics: analytics,
		accounts:  accounts,
		store:     store,
		origins:   origins,
		logger:    logger.Named("http"),
	}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(a.logger), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", a.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/survey/{code}", a.getSurvey)
		r.Post("/survey/{code}/responses", a.submitSurvey)
		r.Post("/auth/login", a.login)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.Get("/me", a.me)
			r.Get("/dashboard", a.dashboard)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", a.listCompanies)
				r.Post("/", a.createCompany)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.getCompany)
					r.Put("/", a.updateCompany)
					r.Delete("/", a.deleteCompany)
					r.Get("/link", a.surveyLink)

					r.Get("/structure", a.structure)
					r.Post("/sectors", a.addSector)
					r.Delete("/sectors/{sector}", a.removeSector)
					r.Put("/sectors/{sector}/roles", a.setRoles)

					r.Get("/analytics", a.companyAnalytics)
					r.Get("/history", a.history)
					r.Get("/compare", a.compare)
					r.Get("/recommendations", a.recommendations)
					r.Get("/report", a.report)
					r.Get("/responses.csv", a.exportCSV)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", a.listUsers)
				r.Post("/", a.createUser)
				r.Delete("/{username}", a.deleteUser)
			})

			r.Get("/settings", a.getSettings)
			r.Put("/settings", a.updateSettings)
		})
	})
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok", "degraded": a.analytics.Degraded()}
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		body["status"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
