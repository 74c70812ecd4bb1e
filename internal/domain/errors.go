package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failed load or command against the backend:
// a transport error, an open circuit or a non-2xx response. It is always
// recoverable by retrying.
type ErrExternalService struct {
	Service string
	Status  int    // HTTP status, 0 for transport failures
	Message string // human-readable message extracted from the response
	Err     error
}

func (e *ErrExternalService) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("external service error [%s]: %s", e.Service, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("external service error [%s]: status %d", e.Service, e.Status)
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

// ErrInvalidTransition rejects a stage change before any backend call:
// the deal is terminal, the target is unknown, or the move is not allowed
// from where it was attempted.
type ErrInvalidTransition struct {
	DealID string
	From   Stage
	To     Stage
	Reason string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition for deal %s from %q to %q: %s", e.DealID, e.From, e.To, e.Reason)
}

// ErrTransitionRejected means the backend declined a stage change.
type ErrTransitionRejected struct {
	DealID  string
	To      Stage
	Status  int
	Message string
}

func (e *ErrTransitionRejected) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transition of deal %s to %q rejected: %s", e.DealID, e.To, e.Message)
	}
	return fmt.Sprintf("transition of deal %s to %q rejected with status %d", e.DealID, e.To, e.Status)
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
