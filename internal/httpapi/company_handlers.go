package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elonr01/survey-server/internal/service"
)

type sectorBody struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type rolesBody struct {
	Roles []string `json:"roles"`
}

type structureResponse struct {
	Sectors []string            `json:"sectors"`
	Roles   map[string][]string `json:"roles"`
}

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	views, err := a.companies.List(r.Context(), principal(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	var in service.CompanyInput
	if !a.decode(w, r, &in) {
		return
	}
	v, err := a.companies.Create(r.Context(), principal(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	v, err := a.companies.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request) {
	var in service.CompanyInput
	if !a.decode(w, r, &in) {
		return
	}
	v, err := a.companies.Update(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) deleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := a.companies.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) surveyLink(w http.ResponseWriter, r *http.Request) {
	link, err := a.companies.SurveyLink(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (a *API) structure(w http.ResponseWriter, r *http.Request) {
	sectors, roles, err := a.companies.Structure(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, structureResponse{Sectors: sectors, Roles: roles})
}

func (a *API) addSector(w http.ResponseWriter, r *http.Request) {
	var body sectorBody
	if !a.decode(w, r, &body) {
		return
	}
	org, err := a.companies.AddSector(r.Context(), principal(r), chi.URLParam(r, "id"), body.Name, body.Roles)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) removeSector(w http.ResponseWriter, r *http.Request) {
	org, err := a.companies.RemoveSector(r.Context(), principal(r), chi.URLParam(r, "id"), chi.URLParam(r, "sector"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) setRoles(w http.ResponseWriter, r *http.Request) {
	var body rolesBody
	if !a.decode(w, r, &body) {
		return
	}
	org, err := a.companies.SetRoles(r.Context(), principal(r), chi.URLParam(r, "id"), chi.URLParam(r, "sector"), body.Roles)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) companyAnalytics(w http.ResponseWriter, r *http.Request) {
	v, err := a.analytics.CompanyAnalytics(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	records, err := a.analytics.History(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := a.analytics.Compare(r.Context(), principal(r), chi.URLParam(r, "id"), q.Get("a"), q.Get("b"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) recommendations(w http.ResponseWriter, r *http.Request) {
	s, err := a.analytics.Recommendations(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	rep, err := a.analytics.Report(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.analytics.Dashboard(r.Context(), principal(r), r.URL.Query().Get("company"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// exportCSV buffers the file so a failure can still produce a JSON error.
func (a *API) exportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var buf bytes.Buffer
	if err := a.analytics.ExportResponsesCSV(r.Context(), principal(r), id, &buf); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="respostas_%s.csv"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
