package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Persistence
	ErrCodeFormStateCorrupt   ErrorCode = "FORM_STATE_CORRUPT"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// Form editing
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidFieldPath     ErrorCode = "INVALID_FIELD_PATH"
	ErrCodeFormValidationFailed ErrorCode = "FORM_VALIDATION_FAILED"

	// Network collaborators
	ErrCodeVoucherLookupFailed ErrorCode = "VOUCHER_LOOKUP_FAILED"
	ErrCodeSubmissionFailed    ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionRejected  ErrorCode = "SUBMISSION_REJECTED"

	// Messaging platform
	ErrCodePlatformLoginUnavailable ErrorCode = "PLATFORM_LOGIN_UNAVAILABLE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape returned across package boundaries and
// serialized to API clients and job variables.
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// BPMNError is what the workflow worker throws back to the engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewFormStateCorruptError(err error) *StandardError {
	return newError(ErrCodeFormStateCorrupt, "Stored form data could not be decoded", err.Error(), false, err)
}

func NewStorageUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeStorageUnavailable, "Form storage is unavailable",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Malformed request", details, false, nil)
}

func NewInvalidFieldPathError(path string) *StandardError {
	return newError(ErrCodeInvalidFieldPath, "Unknown form field", fmt.Sprintf("path: %s", path), false, nil)
}

func NewFormValidationFailedError(errorCount int) *StandardError {
	return newError(ErrCodeFormValidationFailed, "入力内容に誤りがあります",
		fmt.Sprintf("%d validation errors", errorCount), false, nil)
}

func NewVoucherLookupFailedError(voucher string, err error) *StandardError {
	return newError(ErrCodeVoucherLookupFailed, "クーポンの確認に失敗しました",
		fmt.Sprintf("voucher: %q, error: %s", voucher, err.Error()), true, err)
}

func NewSubmissionFailedError(err error) *StandardError {
	return newError(ErrCodeSubmissionFailed, "データの送信に失敗しました", err.Error(), true, err)
}

func NewSubmissionRejectedError(code int, message string) *StandardError {
	return newError(ErrCodeSubmissionRejected, message, fmt.Sprintf("backend code: %d", code), false, nil)
}

func NewPlatformLoginUnavailableError(details string) *StandardError {
	return newError(ErrCodePlatformLoginUnavailable, "LIFF login is unavailable", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// AsStandard returns err as a *StandardError, wrapping it as INTERNAL_ERROR
// when it is not one already.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageUnavailable, ErrCodeSubmissionFailed:
		return 3
	case ErrCodeVoucherLookupFailed:
		return 1
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "STATE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "FIELD"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SUBMISSION") || strings.Contains(codeStr, "VOUCHER"):
		return "NETWORK"
	case strings.Contains(codeStr, "PLATFORM"):
		return "PLATFORM"
	default:
		return "OTHER"
	}
}
