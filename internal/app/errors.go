package app

import (
	"errors"
	"fmt"
	"net/http"

	"copilot/api/internal/auth"
	"copilot/api/internal/copilot"
	"copilot/api/internal/email"
	"copilot/api/internal/export"
	"copilot/api/internal/workspace"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{copilot.ErrNoLead, http.StatusConflict, "NO_LEAD", "Ingest a lead first"},
	{copilot.ErrLeadIngested, http.StatusConflict, "LEAD_ALREADY_INGESTED", "Lead already ingested"},
	{copilot.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{copilot.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", "Approval transition not allowed"},
	{copilot.ErrEmptyPricing, http.StatusUnprocessableEntity, "EMPTY_PRICING", "Pricing table is empty"},
	{copilot.ErrDiscountOutOfRange, http.StatusUnprocessableEntity, "DISCOUNT_OUT_OF_RANGE", "Requested discount out of range"},
	{copilot.ErrUnknownField, http.StatusUnprocessableEntity, "UNKNOWN_FIELD", "Unknown proposal field"},
	{copilot.ErrEmptyMessage, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Message is required"},
	{copilot.ErrEmptyName, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Name is required"},
	{copilot.ErrNotFinalized, http.StatusConflict, "NOT_FINALIZED", "Proposal is not approved"},
	{copilot.ErrComposerClosed, http.StatusConflict, "COMPOSER_CLOSED", "Email composer is not open"},
	{copilot.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not found"},
	{workspace.ErrNotFound, http.StatusNotFound, "WORKSPACE_NOT_FOUND", "Workspace expired or not found"},
	{workspace.ErrConflict, http.StatusConflict, "WORKSPACE_CONFLICT", "Workspace is busy, retry the request"},
	{export.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Format must be pdf or docx"},
	{export.ErrPDFDependencyMissing, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is unavailable"},
	{export.ErrDOCXDependencyMissing, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "DOCX export is unavailable"},
	{email.ErrNoRecipient, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Email recipient is required"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message, nil
		}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
