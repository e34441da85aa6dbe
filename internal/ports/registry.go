package ports

import (
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// Processes is the registry of process definitions supplied by the hosting
// application at startup.
type Processes interface {
	ProcessByID(id string) Process
	ProcessIDs() []string
}

// Process binds a process definition to its runtime services: instance
// creation and the store holding its live instances.
type Process interface {
	ID() string
	Definition() *domain.Process
	CreateInstance() (ProcessInstance, error)
	CreateInstanceWithBusinessKey(businessKey string, vars domain.Variables) (ProcessInstance, error)
	Instances() InstanceStore
}

// ProcessInstance is a single running occurrence of a process definition.
type ProcessInstance interface {
	ID() string
	BusinessKey() string
	Tags() []string
	Status() domain.InstanceStatus
	Variables() domain.Variables
	UpdateVariables(updates domain.Variables) error
	StartedAt() time.Time
	CompletedAt() *time.Time
	Err() *domain.ProcessError

	Start(trigger string, referenceID string) error
	StartFrom(nodeID int64, referenceID string) error
	Send(signal domain.Signal) error
	Abort() error

	TriggerNode(nodeID int64) error
	RetriggerNodeInstance(nodeInstanceID string) error
	CancelNodeInstance(nodeInstanceID string) error
	SkipNodeInstance(nodeInstanceID string) error

	Events() []domain.EventDescription
}
