package domain

import (
	"time"
)

type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusAborted   InstanceStatus = "aborted"
	InstanceStatusSuspended InstanceStatus = "suspended"
	InstanceStatusError     InstanceStatus = "error"
)

// Terminal reports whether the status can never transition again. Suspended
// and Error instances are still recoverable.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusAborted
}

type ProcessError struct {
	FailedNodeID         int64
	FailedNodeInstanceID string
	Message              string
}

func (e *ProcessError) Error() string {
	return e.Message
}

// EventDescription describes an event type a process instance is currently
// waiting for, together with the node instance listening for it.
type EventDescription struct {
	EventType      string
	NodeID         int64
	NodeInstanceID string
}

type InstanceSnapshot struct {
	ID          string         `json:"id"`
	BusinessKey string         `json:"business_key,omitempty"`
	ProcessID   string         `json:"process_id"`
	Status      InstanceStatus `json:"status"`
	Variables   Variables      `json:"variables,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       *ProcessError  `json:"error,omitempty"`
}
