package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed failure taxonomy every scrape error is normalized into.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindTimeout           ErrorKind = "timeout"
	KindNotFound          ErrorKind = "not_found"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindSSLError          ErrorKind = "ssl_error"
	KindForbidden         ErrorKind = "forbidden"
	KindServerError       ErrorKind = "server_error"
	KindScrapeFailed      ErrorKind = "scrape_failed"
	KindUnknown           ErrorKind = "unknown"
)

// Retryable reports whether another attempt could change the outcome.
func (k ErrorKind) Retryable() bool {
	return k != KindValidation
}

// ScrapeError is a failure that has already been classified.
type ScrapeError struct {
	Kind    ErrorKind
	Message string
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewValidationError returns a non-retryable validation failure.
func NewValidationError(format string, args ...any) *ScrapeError {
	return &ScrapeError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind of err, or KindUnknown when err was never classified.
func KindOf(err error) ErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
