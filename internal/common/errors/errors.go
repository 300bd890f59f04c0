// internal/common/errors/errors.go
package errors

import (
	"fmt"
	"time"
)

type ErrorCode string

const (
	ErrCodeEmptyQuery ErrorCode = "EMPTY_QUERY"

	ErrCodeExpansionFailed ErrorCode = "EXPANSION_FAILED"

	ErrCodeSearchPageFailed  ErrorCode = "SEARCH_PAGE_FAILED"
	ErrCodeSearchRateLimited ErrorCode = "SEARCH_RATE_LIMITED"

	ErrCodeClassifyBatchFailed ErrorCode = "CLASSIFY_BATCH_FAILED"
	ErrCodeModelTimeout        ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelUnparsable     ErrorCode = "MODEL_UNPARSABLE"

	ErrCodeStoreUpsertFailed ErrorCode = "STORE_UPSERT_FAILED"
	ErrCodeRunLogFailed      ErrorCode = "RUN_LOG_FAILED"
)

// StandardError is the error shape used at component boundaries and when
// aggregating non-fatal failures into a run's debug output.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// String renders the compact form used in debug.errors lists.
func (e *StandardError) String() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewEmptyQueryError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyQuery,
		Message:   "query must not be empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExpansionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExpansionFailed,
		Message:   "query expansion degraded to fallback phrases",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchPageFailedError(query string, page int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchPageFailed,
		Message:   fmt.Sprintf("search page %d failed for %q", page, query),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchRateLimitedError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchRateLimited,
		Message:   fmt.Sprintf("search provider rate-limited %q", query),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewClassifyBatchFailedError(batch int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassifyBatchFailed,
		Message:   fmt.Sprintf("classification batch %d abandoned", batch),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewModelUnparsableError(batch int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnparsable,
		Message:   fmt.Sprintf("model output for batch %d is not a valid entity array", batch),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewStoreUpsertFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUpsertFailed,
		Message:   fmt.Sprintf("entity upsert failed for %q", key),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRunLogFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunLogFailed,
		Message:   "run log insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
