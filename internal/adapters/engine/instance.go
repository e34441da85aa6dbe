package engine

import (
	"sync"
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// Instance is the runtime state machine of a single process instance. All
// entry points serialize on one mutex: two callers signalling the same
// instance concurrently are ordered by lock acquisition rather than racing
// over shared node-instance state.
type Instance struct {
	mu sync.Mutex

	runtime     *Runtime
	id          string
	businessKey string
	referenceID string
	tags        []string

	status      domain.InstanceStatus
	vars        domain.Variables
	createdAt   time.Time
	startedAt   time.Time
	completedAt *time.Time
	perr        *domain.ProcessError

	// Node-instance arena: every live node instance by id, with the root
	// container's children tracked separately in order.
	nodes        map[string]*nodeInstance
	rootChildren []string

	// listeners maps an event type to the node instances registered for it,
	// in registration order (which follows the depth-first growth of the
	// instance tree).
	listeners map[string][]string

	// groups holds exclusive-group memberships keyed by group id.
	groups map[string][]string

	timerSeq     int64
	currentLevel int
}

func (pi *Instance) ID() string                { return pi.id }
func (pi *Instance) BusinessKey() string       { return pi.businessKey }
func (pi *Instance) Tags() []string            { return pi.tags }
func (pi *Instance) StartedAt() time.Time      { return pi.startedAt }
func (pi *Instance) CompletedAt() *time.Time   { return pi.completedAt }
func (pi *Instance) Err() *domain.ProcessError { return pi.perr }

func (pi *Instance) Status() domain.InstanceStatus {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.status
}

func (pi *Instance) Variables() domain.Variables {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	snapshot := make(domain.Variables, len(pi.vars))
	for k, v := range pi.vars {
		snapshot[k] = v
	}
	return snapshot
}

func (pi *Instance) UpdateVariables(updates domain.Variables) error {
	pi.mu.Lock()
	merged, err := domain.MergeVariables(pi.vars, updates)
	if err != nil {
		pi.mu.Unlock()
		return err
	}
	pi.vars = merged
	pi.mu.Unlock()

	pi.runtime.store.Update(pi.key(), pi)
	return nil
}

// Start transitions the instance from pending to active and triggers its
// start nodes. A non-empty trigger selects the start node registered for that
// trigger type, falling back to the plain start nodes.
func (pi *Instance) Start(trigger string, referenceID string) error {
	err := pi.start(trigger, referenceID)
	// The store reads the status back during Update, so sync only after the
	// lock is released.
	pi.runtime.store.Update(pi.key(), pi)
	return err
}

func (pi *Instance) start(trigger string, referenceID string) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.status != domain.InstanceStatusPending {
		return domain.ErrInvalidInput
	}

	pi.status = domain.InstanceStatusActive
	pi.startedAt = time.Now()
	pi.referenceID = referenceID

	starts := pi.selectStartNodes(trigger)
	if len(starts) == 0 {
		return domain.NewConfigurationError(pi.runtime.process.ID, "", "process has no start node")
	}

	for _, node := range starts {
		if pi.status != domain.InstanceStatusActive {
			break
		}
		if err := pi.triggerNode(node, "", nil); err != nil {
			return err
		}
	}

	pi.checkCompletion()
	return nil
}

// StartFrom activates the instance with the given node as its first node,
// bypassing the start nodes.
func (pi *Instance) StartFrom(nodeID int64, referenceID string) error {
	err := pi.startFrom(nodeID, referenceID)
	pi.runtime.store.Update(pi.key(), pi)
	return err
}

func (pi *Instance) startFrom(nodeID int64, referenceID string) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.status != domain.InstanceStatusPending {
		return domain.ErrInvalidInput
	}

	node := pi.runtime.process.NodeByID(nodeID)
	if node == nil {
		return domain.ErrNotFound
	}

	pi.status = domain.InstanceStatusActive
	pi.startedAt = time.Now()
	pi.referenceID = referenceID

	if err := pi.triggerNode(node, "", nil); err != nil {
		return err
	}

	pi.checkCompletion()
	return nil
}

// Send delivers the signal to every active node instance registered for its
// type. A signal nobody listens for is dropped silently; sends to a
// non-active instance are no-ops.
func (pi *Instance) Send(signal domain.Signal) error {
	err := pi.send(signal)
	pi.runtime.store.Update(pi.key(), pi)
	return err
}

func (pi *Instance) send(signal domain.Signal) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.status != domain.InstanceStatusActive {
		return nil
	}

	registered := pi.listeners[signal.Type]
	if len(registered) == 0 {
		pi.runtime.logger.Debug("signal without listener dropped",
			"instance_id", pi.id,
			"signal_type", signal.Type)
		return nil
	}

	targets := make([]string, len(registered))
	copy(targets, registered)

	for _, id := range targets {
		if pi.status != domain.InstanceStatusActive {
			break
		}
		ni, exists := pi.nodes[id]
		if !exists {
			continue
		}
		if err := pi.deliverSignal(ni, signal); err != nil {
			return err
		}
	}

	pi.checkCompletion()
	return nil
}

// Abort marks the instance terminal and drops all active node instances,
// cancelling their pending timer jobs. Signals sent afterwards are no-ops.
func (pi *Instance) Abort() error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.status.Terminal() {
		return nil
	}

	for _, id := range append([]string(nil), pi.rootChildren...) {
		if ni, exists := pi.nodes[id]; exists {
			pi.removeNodeInstance(ni)
		}
	}

	pi.terminate(domain.InstanceStatusAborted)
	return nil
}

// TriggerNode creates and triggers a fresh instance of the given node in the
// root container of an active instance.
func (pi *Instance) TriggerNode(nodeID int64) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.status != domain.InstanceStatusActive {
		return domain.ErrInvalidInput
	}

	node := pi.runtime.process.NodeByID(nodeID)
	if node == nil {
		return domain.ErrNotFound
	}

	if err := pi.triggerNode(node, "", nil); err != nil {
		return err
	}
	pi.checkCompletion()
	return nil
}

// RetriggerNodeInstance re-runs the node instance that put the instance into
// the error state. The instance goes back to active first; a re-fault puts it
// into error again.
func (pi *Instance) RetriggerNodeInstance(nodeInstanceID string) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	ni, err := pi.failedNodeInstance(nodeInstanceID)
	if err != nil {
		return err
	}

	pi.status = domain.InstanceStatusActive
	pi.perr = nil

	if err := pi.executeNode(ni); err != nil {
		return err
	}
	pi.checkCompletion()
	return nil
}

// SkipNodeInstance drops the failed node instance and continues with its
// outgoing connections.
func (pi *Instance) SkipNodeInstance(nodeInstanceID string) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	ni, err := pi.failedNodeInstance(nodeInstanceID)
	if err != nil {
		return err
	}

	pi.status = domain.InstanceStatusActive
	pi.perr = nil

	if err := pi.completeAndFollow(ni); err != nil {
		return err
	}
	pi.checkCompletion()
	return nil
}

// CancelNodeInstance removes an active node instance. Cancelling a member of
// an exclusive group cancels the whole group.
func (pi *Instance) CancelNodeInstance(nodeInstanceID string) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	ni, exists := pi.nodes[nodeInstanceID]
	if !exists {
		return domain.ErrNotFound
	}

	if ni.groupID != "" {
		pi.cancelGroup(ni.groupID, "")
	} else {
		pi.removeNodeInstance(ni)
	}

	pi.checkCompletion()
	return nil
}

// Events lists the event types the instance is currently waiting for.
func (pi *Instance) Events() []domain.EventDescription {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	var events []domain.EventDescription
	for eventType, ids := range pi.listeners {
		for _, id := range ids {
			ni, exists := pi.nodes[id]
			if !exists {
				continue
			}
			events = append(events, domain.EventDescription{
				EventType:      eventType,
				NodeID:         ni.node.ID,
				NodeInstanceID: ni.id,
			})
		}
	}
	return events
}

// Snapshot captures the externally visible state of the instance.
func (pi *Instance) Snapshot() domain.InstanceSnapshot {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	vars := make(domain.Variables, len(pi.vars))
	for k, v := range pi.vars {
		vars[k] = v
	}
	return domain.InstanceSnapshot{
		ID:          pi.id,
		BusinessKey: pi.businessKey,
		ProcessID:   pi.runtime.process.ID,
		Status:      pi.status,
		Variables:   vars,
		StartedAt:   pi.startedAt,
		CompletedAt: pi.completedAt,
		Error:       pi.perr,
	}
}

func (pi *Instance) key() string {
	if pi.businessKey != "" {
		return pi.businessKey
	}
	return pi.id
}

func (pi *Instance) selectStartNodes(trigger string) []*domain.Node {
	starts := pi.runtime.process.StartNodes()
	if trigger == "" {
		return starts
	}
	for _, node := range starts {
		if node.EventType == trigger {
			return []*domain.Node{node}
		}
	}
	return starts
}

func (pi *Instance) failedNodeInstance(nodeInstanceID string) (*nodeInstance, error) {
	if pi.status != domain.InstanceStatusError || pi.perr == nil {
		return nil, domain.ErrInvalidInput
	}
	if pi.perr.FailedNodeInstanceID != nodeInstanceID {
		return nil, domain.ErrInvalidInput
	}
	ni, exists := pi.nodes[nodeInstanceID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return ni, nil
}

// checkCompletion finishes the instance once no active node instances remain.
func (pi *Instance) checkCompletion() {
	if pi.status != domain.InstanceStatusActive {
		return
	}
	if len(pi.rootChildren) > 0 {
		return
	}
	pi.terminate(domain.InstanceStatusCompleted)
}

func (pi *Instance) terminate(status domain.InstanceStatus) {
	pi.status = status
	now := time.Now()
	pi.completedAt = &now

	pi.runtime.store.Remove(pi.key())
	pi.runtime.listener.InstanceCompleted(pi.runtime.process.ID, pi.id, status)
	pi.runtime.logger.Debug("process instance finished", "instance_id", pi.id, "status", status)
}

func (pi *Instance) fault(ni *nodeInstance, err error) {
	pi.status = domain.InstanceStatusError
	pi.perr = &domain.ProcessError{
		FailedNodeID:         ni.node.ID,
		FailedNodeInstanceID: ni.id,
		Message:              err.Error(),
	}
	pi.runtime.logger.Warn("node execution faulted",
		"instance_id", pi.id,
		"node", ni.node.Name,
		"error", err)
}
