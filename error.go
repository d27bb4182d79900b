package marginalia

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Application error codes.
const (
	EINTERNAL = "internal"  // unexpected failure, a bug from the user's perspective
	EINVALID  = "invalid"   // validation failed on user-provided input
	ENOTFOUND = "not_found" // entity does not exist
	ESTORAGE  = "storage"   // the underlying key-value store failed
	ESEARCH   = "search"    // the interactive session could not run
)

// Error represents an application-specific error. Errors carry a
// machine-readable code and a human-readable message.
type Error struct {
	// Code is one of the E* constants above.
	Code string

	// Message is a human-readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("marginalia error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper for constructing an Error with a formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// BatchError collects per-annotation failures from a multi-annotation
// mutation. Updates that succeeded before or after a failure remain
// committed; the batch error only reports which identifiers failed.
type BatchError struct {
	failures map[string]error
}

// Add records a failure for the given annotation ID. The first
// failure per ID wins.
func (e *BatchError) Add(id string, err error) {
	if e.failures == nil {
		e.failures = make(map[string]error)
	}
	if _, ok := e.failures[id]; !ok {
		e.failures[id] = err
	}
}

// IDs returns the identifiers that failed, sorted.
func (e *BatchError) IDs() []string {
	ids := make([]string, 0, len(e.failures))
	for id := range e.failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Failure returns the recorded error for an ID, or nil.
func (e *BatchError) Failure(id string) error {
	return e.failures[id]
}

// Len returns the number of failed identifiers.
func (e *BatchError) Len() int {
	return len(e.failures)
}

// ErrorOrNil returns the batch error if any failure was recorded,
// nil otherwise. Callers should always return the result of this
// method rather than the BatchError itself.
func (e *BatchError) ErrorOrNil() error {
	if e == nil || len(e.failures) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("%d annotation(s) failed: %s", len(e.failures), strings.Join(e.IDs(), ", "))
}
