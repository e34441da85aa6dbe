package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidInput   = errors.New("invalid input")
)

// ConfigurationError indicates a broken process definition: a gateway with no
// matching constraint and no default, an unresolvable collection expression,
// a non-boolean completion condition. These are fatal and surface to the
// caller of start/send, never retried.
type ConfigurationError struct {
	ProcessID string
	NodeName  string
	Message   string
}

func (e *ConfigurationError) Error() string {
	if e.NodeName != "" {
		return fmt.Sprintf("process %s, node %s: %s", e.ProcessID, e.NodeName, e.Message)
	}
	return fmt.Sprintf("process %s: %s", e.ProcessID, e.Message)
}

func NewConfigurationError(processID, nodeName, message string) *ConfigurationError {
	return &ConfigurationError{ProcessID: processID, NodeName: nodeName, Message: message}
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// DuplicateInstanceError is returned by the instance store when a non-terminal
// instance already exists under the resolved key.
type DuplicateInstanceError struct {
	Key string
}

func (e *DuplicateInstanceError) Error() string {
	return "process instance already exists: " + e.Key
}

func NewDuplicateInstanceError(key string) *DuplicateInstanceError {
	return &DuplicateInstanceError{Key: key}
}

func IsDuplicateInstance(err error) bool {
	var dupErr *DuplicateInstanceError
	return errors.As(err, &dupErr)
}

// WorkflowError wraps a failure raised while executing a node, carrying the
// node that faulted.
type WorkflowError struct {
	ProcessID  string
	InstanceID string
	NodeName   string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow %s instance %s node %s: %v", e.ProcessID, e.InstanceID, e.NodeName, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func NewWorkflowError(processID, instanceID, nodeName string, err error) *WorkflowError {
	return &WorkflowError{ProcessID: processID, InstanceID: instanceID, NodeName: nodeName, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
