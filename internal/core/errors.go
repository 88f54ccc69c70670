package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSignature means the MAC did not match. It is deliberately indistinguishable
	// (to the requester) from ErrMalformedToken.
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedToken   = errors.New("malformed token")

	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrConflict is returned by InstanceStore.CompareAndSwap when the stored version moved on.
	ErrConflict = errors.New("instance was modified concurrently")

	// ErrLeaseHeld means another runner currently executes the instance.
	ErrLeaseHeld = errors.New("instance is leased by another runner")
)

// NotYetValidError is returned for a correctly signed trigger token used before its window opens.
type NotYetValidError struct {
	NotBefore time.Time
}

func (e NotYetValidError) Error() string {
	return fmt.Sprintf("token not valid before %s", e.NotBefore.UTC().Format(time.RFC3339))
}

// ExpiredError is returned for a correctly signed trigger token used after its window closed.
type ExpiredError struct {
	ExpiresAt time.Time
}

func (e ExpiredError) Error() string {
	return fmt.Sprintf("token expired at %s", e.ExpiresAt.UTC().Format(time.RFC3339))
}

// DeliveryError is a transient, retryable failure to hand a message to the transport.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("delivery to '%s' failed: %v", e.Recipient, e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}

// StepExhaustedError is recorded when a workflow step used up its retry budget.
type StepExhaustedError struct {
	Step     State
	Attempts int
	Last     error
}

func (e StepExhaustedError) Error() string {
	return fmt.Sprintf("step '%s' exhausted after %d attempts: %v", e.Step, e.Attempts, e.Last)
}

func (e StepExhaustedError) Unwrap() error {
	return e.Last
}

// InvalidTransitionError describes a transition that the state machine refused.
// Cancel on a terminal instance is reported through CancelResult instead, it is not an error.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from '%s' to '%s'", e.From, e.To)
}
