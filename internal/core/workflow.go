package core

import "time"

// State is the lifecycle state of a countdown workflow instance.
type State string

const (
	StateCreated   State = "created"
	StateNotifying State = "notifying"
	StateSleeping  State = "sleeping"
	StateReleasing State = "releasing"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateNotifying, StateSleeping, StateReleasing,
		StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Cancellable reports whether an owner Cancel may still move an instance in s to StateCancelled.
// Releasing is excluded: once the release has begun it is irrevocable.
func (s State) Cancellable() bool {
	return s == StateCreated || s == StateNotifying || s == StateSleeping
}

// StartPolicy decides what a new instance does after Created.
type StartPolicy string

const (
	// StartCountdown notifies the owner, waits and then releases.
	StartCountdown StartPolicy = "countdown"
	// StartRelease releases right away. The waiting period already elapsed elsewhere,
	// e.g. in the not-before window of an owner-issued trigger token.
	StartRelease StartPolicy = "release"
)

func (p StartPolicy) IsValid() bool {
	return p == StartCountdown || p == StartRelease
}

// Instance is the durable record of one countdown workflow.
// Everything needed to resume after a restart lives here.
type Instance struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Identity string `json:"identity" gorm:"index"`
	Domain   string `json:"domain"`

	// Origin describes how the instance was started ("invitation" or "trigger").
	Origin string `json:"origin"`

	// Policy is fixed at start. An empty value reads as StartCountdown.
	Policy StartPolicy `json:"policy,omitempty"`

	State State `json:"state" gorm:"index"`

	// ResumeAt is when the orchestrator should run the next step.
	// A zero value on a terminal instance means "never".
	ResumeAt time.Time `json:"resume_at" gorm:"index"`

	// Attempt is the number of failed attempts of the current step.
	Attempt int `json:"attempt"`

	// SleepUntil is the end of the waiting period, set when Sleeping begins.
	SleepUntil time.Time `json:"sleep_until"`

	LastError string `json:"last_error,omitempty"`

	// Version is incremented on every write and used for compare-and-swap.
	Version int64 `json:"version"`

	LeaseOwner string    `json:"lease_owner,omitempty"`
	LeaseUntil time.Time `json:"lease_until"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// Due reports whether the next step of inst may run at now.
func (inst *Instance) Due(now time.Time) bool {
	return !inst.State.IsTerminal() && !now.Before(inst.ResumeAt)
}

// Clone returns a copy that can be mutated without affecting inst.
func (inst *Instance) Clone() *Instance {
	cpy := *inst
	if inst.NotifiedAt != nil {
		t := *inst.NotifiedAt
		cpy.NotifiedAt = &t
	}
	if inst.ReleasedAt != nil {
		t := *inst.ReleasedAt
		cpy.ReleasedAt = &t
	}
	return &cpy
}

// InstanceFilter narrows List results. Zero values match everything.
type InstanceFilter struct {
	Identity string
	States   []State
	Limit    int
}

func (Instance) TableName() string {
	return "workflow_instances"
}
