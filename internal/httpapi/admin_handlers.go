package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elonr01/survey-server/internal/service"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !a.decode(w, r, &body) {
		return
	}
	res, err := a.accounts.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principal(r))
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.accounts.ListUsers(r.Context(), principal(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if !a.decode(w, r, &in) {
		return
	}
	u, err := a.accounts.CreateUser(r.Context(), principal(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.DeleteUser(r.Context(), principal(r), chi.URLParam(r, "username")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.accounts.Settings(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) updateSettings(w http.ResponseWriter, r *http.Request) {
	var in service.SettingsInput
	if !a.decode(w, r, &in) {
		return
	}
	s, err := a.accounts.UpdateSettings(r.Context(), principal(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
