package core

import "time"

// UsageInvitation is the fixed usage value bound into every invitation signature.
const UsageInvitation = "invitation"

// UsageTrigger is the fixed usage value bound into every trigger token signature.
const UsageTrigger = "trigger"

// TriggerToken is a self-contained, time-bound credential allowing Identity to start a countdown.
// It is never persisted.
type TriggerToken struct {
	// Identity is the requester the token was issued for (e.g. an email address).
	Identity string `json:"identity"`

	// NotBefore is the first instant at which the token verifies.
	NotBefore time.Time `json:"not_before"`

	// ExpiresAt is the first instant at which the token no longer verifies.
	ExpiresAt time.Time `json:"expires_at"`

	// Signature is the raw MAC over the canonical payload.
	Signature []byte `json:"-"`

	// Value is the wire form of the token, as handed to the requester.
	Value string `json:"value"`
}

// TriggerClaims is the result of a successful trigger token verification.
type TriggerClaims struct {
	Identity  string    `json:"identity"`
	NotBefore time.Time `json:"not_before"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InvitationToken proves that Owner consented to Contact acting as a trusted requester.
// It carries no expiry: it stays valid for as long as the shared secret is not rotated,
// which also means it can be replayed without limit.
type InvitationToken struct {
	Owner     string `json:"owner"`
	Contact   string `json:"contact"`
	Usage     string `json:"usage"`
	Signature string `json:"signature"` // hex
}

// InviteResult records the outcome of a single invitation send within a fan-out.
type InviteResult struct {
	Contact   string `json:"contact"`
	Signature string `json:"signature,omitempty"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// Message is an outbound message handed to the router for transport.
type Message struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`

	// IdempotencyKey lets the transport suppress duplicates caused by step re-execution.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}
