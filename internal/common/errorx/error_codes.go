package errorx

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryInternal       ErrorCategory = "internal"
	CategoryUnavailable    ErrorCategory = "unavailable"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// APIError is the error body returned by every endpoint
type APIError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Category    ErrorCategory  `json:"category"`
	Severity    Severity       `json:"severity"`
	HTTPStatus  int            `json:"-"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// clone copies e so the package level templates are never mutated
func (e *APIError) clone() *APIError {
	c := *e
	c.Details = maps.Clone(e.Details)
	c.Suggestions = slices.Clone(e.Suggestions)
	return &c
}

// WithDetail returns a copy of the error carrying an extra detail
func (e *APIError) WithDetail(key string, value any) *APIError {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]any)
	}
	c.Details[key] = value
	return c
}

// WithMessage returns a copy of the error with a specific message
func (e *APIError) WithMessage(msg string) *APIError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithSuggestion returns a copy of the error with one more suggestion
func (e *APIError) WithSuggestion(suggestion string) *APIError {
	c := e.clone()
	c.Suggestions = append(c.Suggestions, suggestion)
	return c
}

var (
	// Validation Errors (E1000-E1999)
	ErrInvalidInput = &APIError{
		Code:       "E1001",
		Message:    "Invalid input provided",
		Category:   CategoryValidation,
		Severity:   SeverityError,
		HTTPStatus: http.StatusBadRequest,
		Suggestions: []string{
			"Check the request format and try again",
		},
	}

	ErrMissingField = &APIError{
		Code:       "E1002",
		Message:    "Required field is missing",
		Category:   CategoryValidation,
		Severity:   SeverityError,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFileTooLarge = &APIError{
		Code:       "E1003",
		Message:    "Uploaded file exceeds the size limit",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	ErrInvalidResultKind = &APIError{
		Code:       "E1004",
		Message:    "Unknown result kind",
		Category:   CategoryValidation,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusBadRequest,
		Suggestions: []string{
			"Use one of kpi, pareto, inventory, alert, peak_times",
		},
	}

	ErrSchemaInvalid = &APIError{
		Code:       "E1010",
		Message:    "The file does not match the tenant column mapping",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	// Authentication Errors (E2000-E2999)
	ErrUnauthorized = &APIError{
		Code:       "E2001",
		Message:    "Authentication required",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
		Suggestions: []string{
			"Check if your authentication token is valid",
		},
	}

	ErrTokenExpired = &APIError{
		Code:       "E2003",
		Message:    "Authentication token has expired",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	}

	// Authorization Errors (E3000-E3999)
	ErrForbidden = &APIError{
		Code:       "E3001",
		Message:    "Access denied",
		Category:   CategoryAuthorization,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusForbidden,
		Suggestions: []string{
			"Ask a tenant administrator for a membership",
		},
	}

	// Not Found Errors (E4000-E4999)
	ErrResourceNotFound = &APIError{
		Code:       "E4001",
		Message:    "Requested resource not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrAttemptNotFound = &APIError{
		Code:       "E4010",
		Message:    "Upload not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrTenantNotFound = &APIError{
		Code:       "E4011",
		Message:    "Tenant not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	// Conflict Errors (E4090-E4099)
	ErrDuplicateUpload = &APIError{
		Code:       "E4091",
		Message:    "This file was already uploaded for the tenant",
		Category:   CategoryConflict,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusConflict,
		Suggestions: []string{
			"Reprocess the existing upload instead",
		},
	}

	ErrInvalidTransition = &APIError{
		Code:       "E4092",
		Message:    "The upload is not in a status that allows this action",
		Category:   CategoryConflict,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusConflict,
	}

	// Internal Server Errors (E5000-E5999)
	ErrInternalServer = &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
		Suggestions: []string{
			"Please try again later",
		},
	}

	ErrStorage = &APIError{
		Code:       "E5010",
		Message:    "Storage operation failed",
		Category:   CategoryInternal,
		Severity:   SeverityError,
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrPipelineBusy = &APIError{
		Code:       "E5030",
		Message:    "The processing pipeline cannot accept work right now",
		Category:   CategoryUnavailable,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusServiceUnavailable,
		Suggestions: []string{
			"Retry the request later",
		},
	}
)
