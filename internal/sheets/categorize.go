package sheets

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryBadRequest  ErrorCategory = "bad_request"
	ErrorCategoryNotFound    ErrorCategory = "not_found"
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx ErrorCategory = "upstream_5xx"
	ErrorCategoryEmpty       ErrorCategory = "empty"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrTransport):
		return ErrorCategoryNetwork
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream5xx
	case errors.Is(err, ErrTableNotFound):
		return ErrorCategoryNotFound
	case errors.Is(err, ErrBadRequest):
		return ErrorCategoryBadRequest
	case errors.Is(err, ErrNoValues), errors.Is(err, ErrTooFewRows):
		return ErrorCategoryEmpty
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ErrorCategoryParsing
	}
	return ErrorCategoryUnknown
}
