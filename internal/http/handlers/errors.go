// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings sent in the error envelope
// next to the HTTP status:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "transition_conflict",
//	  "message": "service is not in the required state"
//	}
//
// failErr maps service-layer sentinels to a status and code.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/services"
)

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodeServiceUnavailable = "service_unavailable"

	// Domain-specific:
	ErrCodeTransitionConflict = "transition_conflict"
	ErrCodeCodeTaken          = "code_taken"
	ErrCodeNotArchived        = "not_archived"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeValidation         = "validation_failed"
	ErrCodePayloadTooLarge    = "payload_too_large"
	ErrCodeCreateFailed       = "create_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeCleanupFailed      = "cleanup_failed"
)

// failErr writes the envelope matching err.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logErr(c, err)
		msg = "internal error"
	}
	fail(c, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrServiceNotFound),
		errors.Is(err, services.ErrClientNotFound),
		errors.Is(err, services.ErrEmployeeNotFound),
		errors.Is(err, services.ErrDocumentNotFound):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, ErrCodeTransitionConflict
	case errors.Is(err, services.ErrServiceConflict),
		errors.Is(err, services.ErrNotaryCodeTaken):
		return http.StatusConflict, ErrCodeCodeTaken
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrNotArchived):
		return http.StatusConflict, ErrCodeNotArchived

	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeInvalidCredentials

	case errors.Is(err, services.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge

	case errors.Is(err, services.ErrInvalidDeliveryWindow),
		errors.Is(err, services.ErrInvalidServiceType),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidPerson),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidDocumentType),
		errors.Is(err, services.ErrEmptyDocument),
		errors.Is(err, services.ErrDocumentClientMismatch),
		errors.Is(err, domain.ErrNotaryCodeRequired),
		errors.Is(err, domain.ErrNotaryCodeNotAllowed):
		return http.StatusBadRequest, ErrCodeValidation

	case errors.Is(err, services.ErrTransientStore):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	}
	return http.StatusInternalServerError, ErrCodeInternal
}
