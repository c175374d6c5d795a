package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/elonr01/survey-server/internal/service"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order; the first match wins.
var errorTable = []errorMapping{
	{service.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidLink, http.StatusNotFound, "invalid_link"},
	{service.ErrLinkExpired, http.StatusGone, "link_expired"},
	{service.ErrQuotaReached, http.StatusConflict, "quota_reached"},
	{service.ErrInvalidIdentity, http.StatusUnprocessableEntity, "invalid_identity"},
	{service.ErrConsentRequired, http.StatusUnprocessableEntity, "consent_required"},
	{service.ErrIncompleteAnswers, http.StatusUnprocessableEntity, "incomplete_answers"},
	{service.ErrInvalidAnswer, http.StatusUnprocessableEntity, "invalid_answer"},
	{service.ErrUnknownSector, http.StatusUnprocessableEntity, "unknown_sector"},
	{service.ErrDuplicateSubmission, http.StatusConflict, "duplicate_submission"},
	{service.ErrCompanyNotFound, http.StatusNotFound, "company_not_found"},
	{service.ErrNoCredits, http.StatusPaymentRequired, "no_credits"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrSectorExists, http.StatusConflict, "sector_exists"},
	{service.ErrSectorNotFound, http.StatusNotFound, "sector_not_found"},
	{service.ErrLastSector, http.StatusConflict, "last_sector"},
	{service.ErrNotEnoughPeriods, http.StatusUnprocessableEntity, "not_enough_periods"},
	{service.ErrPeriodNotFound, http.StatusNotFound, "period_not_found"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrAccessExpired, http.StatusForbidden, "access_expired"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{service.ErrUserExists, http.StatusConflict, "user_exists"},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{service.ErrStorageFailure, http.StatusServiceUnavailable, "storage_failure"},
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				a.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeJSON(w, m.status, errorBody{Code: m.code, Message: m.err.Error()})
				return
			}
			writeJSON(w, m.status, errorBody{Code: m.code, Message: err.Error()})
			return
		}
	}
	a.logger.Error("unexpected error", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: err.Error()})
		return false
	}
	return true
}
