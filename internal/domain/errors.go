package domain

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrTransport              = errors.New("transport failure")
	ErrSourceExhausted        = errors.New("all market sources failed")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrMalformedResponse      = errors.New("malformed response")
	ErrConflict               = errors.New("already exists")
	ErrNotFound               = errors.New("not found")
)

// APIError is returned when a collaborator answers with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// SourceFailure records why one source in a fallback chain was skipped.
type SourceFailure struct {
	Source string
	Err    error
}

// SourceExhaustedError aggregates every failure of a fallback chain so callers
// can tell "one bad source" from "no source reachable".
type SourceExhaustedError struct {
	Operation string
	Failures  []SourceFailure
}

func (e *SourceExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return fmt.Sprintf("%s: %s: [%s]", e.Operation, ErrSourceExhausted, strings.Join(parts, "; "))
}

// Unwrap exposes ErrSourceExhausted and every per-source cause to errors.Is/As.
func (e *SourceExhaustedError) Unwrap() []error {
	causes := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		causes = append(causes, f.Err)
	}
	return append([]error{ErrSourceExhausted}, multierr.Errors(multierr.Combine(causes...))...)
}
