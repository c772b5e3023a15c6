package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrCacheEntryNotFound reports a cache read miss from any event cache store.
var ErrCacheEntryNotFound = errors.New("core: cache entry not found")

const (
	ServiceErrorBadInput         = "SERVICES_BAD_INPUT"
	ServiceErrorInvalidSignature = "SERVICES_INVALID_SIGNATURE"
	ServiceErrorMalformedPayload = "SERVICES_MALFORMED_PAYLOAD"
	ServiceErrorPipelineFailure  = "SERVICES_PIPELINE_FAILURE"
	ServiceErrorNotFound         = "SERVICES_NOT_FOUND"
	ServiceErrorOperationFailed  = "SERVICES_OPERATION_FAILED"
	ServiceErrorConflict         = "SERVICES_CONFLICT"
	ServiceErrorInternal         = "SERVICES_INTERNAL_ERROR"
)

// MapServiceError normalizes any error into a go-errors envelope with the
// module's text codes and an HTTP status derived from the category.
func MapServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ServiceErrorInvalidSignature)
	case strings.Contains(msg, "payload"), strings.Contains(msg, "deltas"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorMalformedPayload)
	case strings.Contains(msg, "not found"), strings.Contains(msg, "not registered"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ServiceErrorInvalidSignature
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
