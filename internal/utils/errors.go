package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInvalidPhone   = errors.New("invalid_phone")
	ErrPhoneExists    = errors.New("phone_exists")
	ErrPhoneClaimed   = errors.New("phone_claimed")
	ErrPhoneOptedOut  = errors.New("sms_opted_out")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("token_expired")
	ErrForbidden       = errors.New("forbidden")
	ErrNoRole          = errors.New("no_role")
	ErrNotFound        = errors.New("not_found")
	ErrSubjectNotFound = errors.New("subject_not_found")

	// OTP
	ErrOTPNotFound       = errors.New("code_not_found")
	ErrOTPExpired        = errors.New("code_expired")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrTooManyAttempts   = errors.New("too_many_attempts")
	ErrRateLimitExceeded = errors.New("rate_limit_exceeded")
	ErrSMSNotConfigured  = errors.New("sms_not_configured")

	// Turn lifecycle
	ErrWrongStatus         = errors.New("wrong_status")
	ErrNotAssigned         = errors.New("not_assigned")
	ErrNoPhotosProvided    = errors.New("no_photos_provided")
	ErrLocationOutOfBounds = errors.New("location_out_of_bounds")

	ErrRowVersionConflict     = errors.New("row_version_conflict")
	ErrExternalServiceFailure = errors.New("external_service_failure")
)

// AppError carries the HTTP mapping of a service failure to the controller layer.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, appErr.Details, appErr.Err)
		return
	}
	RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
}
