package errors

import (
	"errors"
	"fmt"
)

var (
	// Product errors
	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product is not available")

	// Subscription errors
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrSubscriptionNotActive = errors.New("subscription is not active")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRefundWindowExpired = errors.New("refund window has expired")

	// User errors
	ErrChatIdentityMissing = errors.New("user has no chat identity")

	// Webhook errors
	ErrInvalidSignature = errors.New("invalid signature")

	// Gateway errors
	ErrGatewayRejected            = errors.New("gateway rejected the request")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrUnsupportedGateway         = errors.New("unsupported gateway")
)

// NotFoundError wraps an error with not found context
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found: %v", e.Entity, e.ID, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// GatewayError carries the provider's own rejection message so it can be
// shown to the user verbatim.
type GatewayError struct {
	Gateway string
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s gateway error %s: %s", e.Gateway, e.Code, e.Message)
	}
	return fmt.Sprintf("%s gateway error: %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error {
	if e.Err == nil {
		return ErrGatewayRejected
	}
	return e.Err
}

// NewGatewayError creates a rejection error for the given gateway
func NewGatewayError(gateway, code, message string) *GatewayError {
	return &GatewayError{Gateway: gateway, Code: code, Message: message}
}

// InvalidTransitionError is returned when the state machine guard rejects an edge
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
