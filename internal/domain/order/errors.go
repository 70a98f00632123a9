package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyItems = errors.New("order must contain at least one item")
)

// InvalidPaymentStateError indicates a payment attestation step attempted
// in the wrong order or payment state, e.g. confirming a payment that was
// never submitted.
type InvalidPaymentStateError struct {
	OrderID       string
	Status        Status
	PaymentStatus PaymentStatus
}

func (e *InvalidPaymentStateError) Error() string {
	return fmt.Sprintf("order %s: payment action not allowed in status %s, payment status %s",
		e.OrderID, e.Status, e.PaymentStatus)
}

// UnauthorizedError indicates the acting principal may not perform the
// operation, e.g. a buyer touching another buyer's order.
type UnauthorizedError struct {
	ActorID string
	Reason  string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s unauthorized: %s", e.ActorID, e.Reason)
}

// ValidationError indicates malformed order input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
