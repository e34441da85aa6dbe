package ports

import (
	"github.com/eleven-am/weft/internal/domain"
)

// ProcessEventListener receives ordered lifecycle notifications from the
// process-instance state machine. Notifications for hidden bookkeeping nodes
// are suppressed.
type ProcessEventListener interface {
	BeforeNodeLeft(processID, instanceID string, node *domain.Node)
	AfterNodeLeft(processID, instanceID string, node *domain.Node)
	InstanceCompleted(processID, instanceID string, status domain.InstanceStatus)
}

// NoopEventListener discards all notifications.
type NoopEventListener struct{}

func (NoopEventListener) BeforeNodeLeft(processID, instanceID string, node *domain.Node) {}
func (NoopEventListener) AfterNodeLeft(processID, instanceID string, node *domain.Node)  {}
func (NoopEventListener) InstanceCompleted(processID, instanceID string, status domain.InstanceStatus) {
}
