package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dmeadows001/turn-qa-sub000/internal/middleware"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

var validate = validator.New()

type errMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Ordered: the first match wins.
var errMappings = []errMapping{
	{utils.ErrInvalidPayload, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload"},
	{utils.ErrNoPhotosProvided, http.StatusBadRequest, utils.ErrCodeValidation, "At least one photo is required"},
	{utils.ErrInvalidPhone, http.StatusBadRequest, utils.ErrCodeInvalidPhone, "Invalid phone number"},
	{utils.ErrOTPNotFound, http.StatusBadRequest, utils.ErrCodeCodeNotFound, "No active code for this phone"},
	{utils.ErrOTPExpired, http.StatusBadRequest, utils.ErrCodeCodeExpired, "Code expired"},
	{utils.ErrInvalidCode, http.StatusBadRequest, utils.ErrCodeInvalidCode, "invalid code"},
	{utils.ErrTokenExpired, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired"},
	{utils.ErrUnauthenticated, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthenticated"},
	{utils.ErrNoRole, http.StatusForbidden, utils.ErrCodeNoRole, "no role"},
	{utils.ErrNotAssigned, http.StatusForbidden, utils.ErrCodeNotAssigned, "Cleaner is not assigned to this property"},
	{utils.ErrLocationOutOfBounds, http.StatusForbidden, utils.ErrCodeLocationOutOfBounds, "Too far from the property"},
	{utils.ErrForbidden, http.StatusForbidden, utils.ErrCodeForbidden, "forbidden"},
	{utils.ErrSubjectNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Subject not found"},
	{utils.ErrNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Not found"},
	{utils.ErrPhoneOptedOut, http.StatusConflict, utils.ErrCodeOptedOut, "This number has opted out of SMS"},
	{utils.ErrWrongStatus, http.StatusConflict, utils.ErrCodeWrongStatus, "Turn is not in the required status"},
	{utils.ErrRowVersionConflict, http.StatusConflict, utils.ErrCodeRowVersionConflict, "Record was modified concurrently"},
	{utils.ErrPhoneExists, http.StatusConflict, utils.ErrCodeConflict, "Phone already in use"},
	{utils.ErrPhoneClaimed, http.StatusConflict, utils.ErrCodeConflict, "Account already has a different phone"},
	{utils.ErrTooManyAttempts, http.StatusTooManyRequests, utils.ErrCodeTooManyAttempts, "Too many attempts"},
	{utils.ErrRateLimitExceeded, http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded, "Please wait before requesting another code"},
	{utils.ErrSMSNotConfigured, http.StatusInternalServerError, utils.ErrCodeSMSNotConfigured, "SMS is not configured"},
	{utils.ErrExternalServiceFailure, http.StatusInternalServerError, utils.ErrCodeExternalServiceFailure, "Upstream service failed"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, utils.ErrCodeTimeout, "Request timed out"},
}

// toAppError translates a service error into its HTTP shape.
func toAppError(err error) *utils.AppError {
	for _, m := range errMappings {
		if errors.Is(err, m.target) {
			appErr := &utils.AppError{StatusCode: m.status, Code: m.code, Message: m.message, Err: err}
			switch m.target {
			case utils.ErrPhoneOptedOut:
				appErr.Details = map[string]string{"hint": "Reply START to this number to receive texts again"}
			case utils.ErrRateLimitExceeded:
				appErr.Details = map[string]string{"reason": err.Error()}
			}
			return appErr
		}
	}
	return &utils.AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       utils.ErrCodeInternal,
		Message:    "An unexpected error occurred",
		Err:        err,
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	utils.HandleAppError(w, toAppError(err))
}

// decodeAndValidate writes the 400 itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, err.Error(), nil, err)
		return false
	}
	return true
}

func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthenticated", nil)
		return models.Actor{}, false
	}
	return actor, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid "+name, nil, err)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}
