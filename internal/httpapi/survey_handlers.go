package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elonr01/survey-server/internal/service"
)

type submitBody struct {
	Identity string            `json:"identity"`
	Sector   string            `json:"sector"`
	Answers  map[string]string `json:"answers"`
	Consent  bool              `json:"consent"`
}

// previewRequested reports whether the caller asked for ?preview=1 and holds
// staff credentials for it. It writes the error response and returns false
// in ok when the credentials are missing or insufficient.
func (a *API) previewRequested(w http.ResponseWriter, r *http.Request) (preview, ok bool) {
	if r.URL.Query().Get("preview") != "1" {
		return false, true
	}
	raw, found := bearerToken(r)
	if !found {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "missing_token", Message: "preview requires staff credentials"})
		return false, false
	}
	p, err := a.accounts.ParseToken(raw)
	if err != nil {
		a.writeError(w, r, err)
		return false, false
	}
	if !p.CanManage() {
		a.writeError(w, r, service.ErrForbidden)
		return false, false
	}
	return true, true
}

// getSurvey serves the form. Expired or full links answer 410 or 409 unless
// staff pass ?preview=1.
func (a *API) getSurvey(w http.ResponseWriter, r *http.Request) {
	preview, ok := a.previewRequested(w, r)
	if !ok {
		return
	}
	form, err := a.surveys.Survey(r.Context(), chi.URLParam(r, "code"), preview)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// submitSurvey records a response. Staff holding a valid token may pass
// ?preview=1 to test a closed link.
func (a *API) submitSurvey(w http.ResponseWriter, r *http.Request) {
	preview, ok := a.previewRequested(w, r)
	if !ok {
		return
	}
	var body submitBody
	if !a.decode(w, r, &body) {
		return
	}

	res, err := a.surveys.Submit(r.Context(), service.SubmitRequest{
		CompanyID: chi.URLParam(r, "code"),
		Identity:  body.Identity,
		Sector:    body.Sector,
		Answers:   body.Answers,
		Consent:   body.Consent,
		Preview:   preview,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
