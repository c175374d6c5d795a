package service

import "errors"

var (
	ErrStorageFailure = errors.New("storage failure")
	ErrInvalidRequest = errors.New("invalid request")

	ErrInvalidLink         = errors.New("invalid survey link")
	ErrLinkExpired         = errors.New("survey link expired")
	ErrQuotaReached        = errors.New("response quota reached")
	ErrInvalidIdentity     = errors.New("identity document must have 11 digits")
	ErrConsentRequired     = errors.New("consent is required")
	ErrIncompleteAnswers   = errors.New("every question must be answered")
	ErrInvalidAnswer       = errors.New("answer is not an option of the question")
	ErrUnknownSector       = errors.New("sector is not part of the company structure")
	ErrDuplicateSubmission = errors.New("identity already answered this survey")

	ErrCompanyNotFound  = errors.New("company not found")
	ErrNoCredits        = errors.New("no evaluation credits left")
	ErrForbidden        = errors.New("operation not allowed for this account")
	ErrSectorExists     = errors.New("sector already exists")
	ErrSectorNotFound   = errors.New("sector not found")
	ErrLastSector       = errors.New("a company needs at least one sector")
	ErrNotEnoughPeriods = errors.New("at least two periods are needed to compare")
	ErrPeriodNotFound   = errors.New("period not found")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccessExpired      = errors.New("account access expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
)
