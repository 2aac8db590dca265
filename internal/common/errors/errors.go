// Package errors provides standardized error handling for the agent pipeline and its Zeebe workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeEmptySearchResults     ErrorCode = "EMPTY_SEARCH_RESULTS"

	ErrCodeAgentExecutionFailed ErrorCode = "AGENT_EXECUTION_FAILED"
	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRequestFailed     ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeRuntimeUnavailable   ErrorCode = "RUNTIME_UNAVAILABLE"

	ErrCodeWebSearchFailed ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodePageFetchFailed ErrorCode = "PAGE_FETCH_FAILED"

	ErrCodeStorageFailed      ErrorCode = "STORAGE_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"

	ErrCodePipelineCancelled ErrorCode = "PIPELINE_CANCELLED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job error variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidRequestError reports a malformed or incomplete chat request.
func NewInvalidRequestError(details string) *StandardError {
	e := newError(ErrCodeInvalidRequest, "Invalid chat request", nil)
	e.Details = details
	return e
}

// NewSchemaValidationError reports agent output that could not be decoded into schema.
func NewSchemaValidationError(schema string, err error) *StandardError {
	return newError(ErrCodeSchemaValidationFailed,
		fmt.Sprintf("Could not parse output into %s", schema), err).
		WithMetadata("schema", schema)
}

// NewEmptySearchResultsError reports a search stage that produced no usable URLs.
func NewEmptySearchResultsError(query string) *StandardError {
	e := newError(ErrCodeEmptySearchResults, "Search returned no results", nil)
	e.Details = fmt.Sprintf("query: %s", query)
	return e
}

// NewAgentExecutionError reports a task the agent runtime could not complete.
func NewAgentExecutionError(task string, err error) *StandardError {
	return newError(ErrCodeAgentExecutionFailed,
		fmt.Sprintf("Agent task '%s' failed", task), err).
		WithMetadata("task", task)
}

// NewLLMTimeoutError reports an LLM call that exceeded its deadline.
func NewLLMTimeoutError(err error) *StandardError {
	e := newError(ErrCodeLLMTimeout, "LLM request timed out", err)
	e.Retryable = true
	return e
}

// NewLLMRequestFailedError reports a rejected or malformed LLM exchange.
func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "LLM request failed", err)
}

// NewRuntimeUnavailableError reports an agent runtime that cannot be reached.
func NewRuntimeUnavailableError(runtime string, err error) *StandardError {
	e := newError(ErrCodeRuntimeUnavailable,
		fmt.Sprintf("Agent runtime '%s' unavailable", runtime), err)
	e.Retryable = true
	return e
}

// NewStorageFailedError reports a storage collaborator failure.
func NewStorageFailedError(err error) *StandardError {
	return newError(ErrCodeStorageFailed, "Storing scraped data failed", err)
}

// NewNotificationFailedError reports a completion notification that could not be sent.
func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed,
		fmt.Sprintf("Notification via %s failed", channel), err)
}

// NewPipelineCancelledError reports a run aborted by context cancellation.
func NewPipelineCancelledError(err error) *StandardError {
	return newError(ErrCodePipelineCancelled, "Pipeline cancelled", err)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err)
}

// ==========================
// 4. Normalization & Conversion
// ==========================

// AsStandardError returns err as a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandardError(err).Code
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"errorCategory":     GetErrorCategory(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "AGENT") || strings.Contains(codeStr, "RUNTIME"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "PAGE"):
		return "WEB"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "NOTIFICATION"):
		return "COLLABORATOR"
	default:
		return "OTHER"
	}
}
