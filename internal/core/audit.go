package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID), or the instance ID for background steps
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "trigger.issue", "workflow.cancel")
	Action string `json:"action"`

	// Identity is the requester or contact the action concerns
	Identity string `json:"identity,omitempty"`

	// Instance is the workflow instance involved, if any
	Instance string `json:"instance,omitempty"`

	// State is the workflow state after the action
	State State `json:"state,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Fingerprint identifies the credential involved without revealing it
	Fingerprint string `json:"fingerprint,omitempty"`

	// Metadata contains additional details
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors that keep entries queryable.
type AuditReader interface {
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
