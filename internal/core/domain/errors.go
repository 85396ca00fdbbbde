package domain

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a job failure. The empty category means success.
type ErrorCategory string

const (
	ErrorUnsupportedURL ErrorCategory = "unsupported_url"
	ErrorAuth           ErrorCategory = "auth"
	ErrorDownload       ErrorCategory = "download"
	ErrorFolderCreation ErrorCategory = "folder_creation"
	ErrorUpload         ErrorCategory = "upload"
	ErrorUnexpected     ErrorCategory = "unexpected"
)

// Error attaches a failure category to an underlying error.
type Error struct {
	Category ErrorCategory
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a category.
func NewError(category ErrorCategory, err error) *Error {
	return &Error{Category: category, Err: err}
}

// Errorf builds a categorized error from a format string.
func Errorf(category ErrorCategory, format string, args ...any) *Error {
	return &Error{Category: category, Err: fmt.Errorf(format, args...)}
}

// Categorize wraps err with a category unless it already carries one. An
// auth failure surfacing inside an upload keeps its auth classification.
func Categorize(category ErrorCategory, err error) error {
	var domErr *Error
	if errors.As(err, &domErr) {
		return err
	}
	return &Error{Category: category, Err: err}
}

// CategoryOf returns the category attached to err, walking wrapped errors.
// Errors that carry no category are reported as ErrorUnexpected.
func CategoryOf(err error) ErrorCategory {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrorUnexpected
}
