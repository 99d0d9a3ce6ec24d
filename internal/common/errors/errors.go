// Package errors provides standardized error handling for the application
// automation engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Trigger-scoped errors: the run never starts.
	ErrCodeIncompleteProfile    ErrorCode = "INCOMPLETE_PROFILE"
	ErrCodeQuotaExceeded        ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeRunAlreadyInProgress ErrorCode = "RUN_ALREADY_IN_PROGRESS"

	// Candidate-scoped errors: the run continues.
	ErrCodeOracleUnavailable   ErrorCode = "ORACLE_UNAVAILABLE"
	ErrCodeSubmissionTransient ErrorCode = "SUBMISSION_TRANSIENT"
	ErrCodeSubmissionRejected  ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeInvariantViolation  ErrorCode = "INVARIANT_VIOLATION"

	// Infrastructure errors.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCriteriaValidationFailed ErrorCode = "CRITERIA_VALIDATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewIncompleteProfileError creates a non-retryable profile error listing
// the missing fields.
func NewIncompleteProfileError(missingFields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteProfile,
		Message:   "User profile is missing fields required for an automated run",
		Retryable: false,
		Metadata:  map[string]interface{}{"missingFields": missingFields},
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError creates a non-retryable quota error carrying the
// next window reset time.
func NewQuotaExceededError(resetAt time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Application quota exhausted for the current window",
		Retryable: false,
		Metadata:  map[string]interface{}{"resetAt": resetAt.UTC().Format(time.RFC3339)},
		Timestamp: time.Now().UTC(),
	}
}

// NewRunAlreadyInProgressError creates a transient concurrency error.
func NewRunAlreadyInProgressError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunAlreadyInProgress,
		Message:   "A run is already in progress for this user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleUnavailableError creates a retryable scoring oracle error.
func NewOracleUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleUnavailable,
		Message:   "Scoring oracle call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionTransientError creates a retryable submission channel error.
func NewSubmissionTransientError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionTransient,
		Message:   "Submission channel call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionRejectedError creates a non-retryable per-candidate error.
func NewSubmissionRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionRejected,
		Message:   "Submission channel refused the application",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvariantViolationError records a defect such as the duplicate
// fingerprint constraint firing despite the pre-check.
func NewInvariantViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvariantViolation,
		Message:   "Engine invariant violated",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable job source query error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Job source query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
// Notification failures never fail a run; callers log and move on.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCriteriaValidationFailedError creates a non-retryable criteria error.
func NewCriteriaValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCriteriaValidationFailed,
		Message:   "Search criteria failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification helpers
// ==========================

// IsRunFatal reports whether an error should halt an entire run. Only
// invariant violations and storage failures qualify; everything else is
// scoped to a single candidate or a single trigger attempt.
func IsRunFatal(err error) bool {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return false
	}
	switch stdErr.Code {
	case ErrCodeInvariantViolation,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return true
	}
	return false
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeIncompleteProfile, ErrCodeQuotaExceeded, ErrCodeRunAlreadyInProgress:
		return "trigger"
	case ErrCodeOracleUnavailable, ErrCodeSubmissionTransient, ErrCodeSubmissionRejected:
		return "candidate"
	case ErrCodeInvariantViolation:
		return "defect"
	default:
		return "infrastructure"
	}
}
