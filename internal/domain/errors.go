package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the BFA.

// ParseError records a labelled value that matched but could not be parsed.
// It is collected, never fatal.
type ParseError struct {
	Label string `json:"label"`
	Raw   string `json:"raw"`
}

func (e ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q for label %q", e.Raw, e.Label)
}

// ErrMissingRequiredField indicates a computation lacked one of its inputs.
// The dependent metric is reported as unavailable.
type ErrMissingRequiredField struct {
	Metric string
	Field  StatementField
}

func (e *ErrMissingRequiredField) Error() string {
	return fmt.Sprintf("%s unavailable: missing %s", e.Metric, e.Field)
}

// ErrDivisionByZeroGuard indicates a degenerate denominator; the result is a
// zero sentinel.
type ErrDivisionByZeroGuard struct {
	Operation string
}

func (e *ErrDivisionByZeroGuard) Error() string {
	return fmt.Sprintf("%s: zero or absent denominator", e.Operation)
}

// ErrMissingHeaders indicates a CSV export lacks required columns.
type ErrMissingHeaders struct {
	Missing []string
}

func (e *ErrMissingHeaders) Error() string {
	return fmt.Sprintf("csv header missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ErrGatewayTimeout indicates the AI gateway did not answer in time.
type ErrGatewayTimeout struct {
	Task GatewayTask
}

func (e *ErrGatewayTimeout) Error() string {
	return fmt.Sprintf("gateway timed out: %s", e.Task)
}

// ErrGatewayUnavailable indicates the AI gateway call failed.
type ErrGatewayUnavailable struct {
	Task GatewayTask
	Err  error
}

func (e *ErrGatewayUnavailable) Error() string {
	return fmt.Sprintf("gateway unavailable [%s]: %v", e.Task, e.Err)
}

func (e *ErrGatewayUnavailable) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
