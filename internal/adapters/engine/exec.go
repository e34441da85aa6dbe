package engine

import (
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// timerTriggeredEvent is the signal type the job scheduler delivers when a
// timer job owned by this instance expires.
const timerTriggeredEvent = "timerTriggered"

func (pi *Instance) triggerNode(node *domain.Node, ownerID string, from *nodeInstance) error {
	ni := pi.followNode(node, ownerID)
	return pi.executeNode(ni)
}

func (pi *Instance) triggerConnection(conn *domain.Connection, ownerID string) error {
	return pi.triggerNode(conn.To, ownerID, nil)
}

// followNode creates the node instance a connection leads into. Joins are
// shared: a second connection arriving at a join reuses the instance already
// waiting in the container.
func (pi *Instance) followNode(node *domain.Node, ownerID string) *nodeInstance {
	if node.Kind == domain.KindJoinAnd {
		if existing := pi.findNodeInstance(node, ownerID); existing != nil {
			return existing
		}
	}
	return pi.addNodeInstance(node, ownerID)
}

func (pi *Instance) findNodeInstance(node *domain.Node, ownerID string) *nodeInstance {
	ids := pi.rootChildren
	if ownerID != "" {
		owner, exists := pi.nodes[ownerID]
		if !exists {
			return nil
		}
		ids = owner.children
	}
	for _, id := range ids {
		if ni, exists := pi.nodes[id]; exists && ni.node.ID == node.ID && ni.role == roleNormal {
			return ni
		}
	}
	return nil
}

// executeNode dispatches on the node kind. Task faults are absorbed into the
// instance error state; configuration errors propagate to the caller.
func (pi *Instance) executeNode(ni *nodeInstance) error {
	ni.triggerTime = time.Now()

	switch ni.node.Kind {
	case domain.KindStart:
		return pi.completeAndFollow(ni)

	case domain.KindEnd:
		pi.removeNodeInstance(ni)
		if ni.node.Terminate {
			for _, id := range append([]string(nil), pi.rootChildren...) {
				if child, exists := pi.nodes[id]; exists {
					pi.removeNodeInstance(child)
				}
			}
		}
		return nil

	case domain.KindTask:
		return pi.executeTask(ni)

	case domain.KindSplitAnd, domain.KindSplitXor, domain.KindSplitOr, domain.KindSplitXand:
		return pi.executeSplit(ni)

	case domain.KindJoinAnd:
		return pi.executeJoin(ni)

	case domain.KindForEach:
		return pi.executeForEach(ni)

	case domain.KindEvent:
		pi.registerListener(ni.node.EventType, ni)
		return nil

	case domain.KindTimer:
		return pi.scheduleTimer(ni)
	}

	return domain.NewConfigurationError(pi.runtime.process.ID, ni.node.Name, "unknown node kind")
}

func (pi *Instance) executeTask(ni *nodeInstance) error {
	if ni.node.Handler == nil {
		return pi.completeAndFollow(ni)
	}

	updates, err := ni.node.Handler(pi.visibleVars(ni))
	if err != nil {
		pi.fault(ni, err)
		return nil
	}

	if err := pi.setVariables(ni, updates); err != nil {
		return err
	}
	return pi.completeAndFollow(ni)
}

// executeJoin counts arrivals; the join completes once every incoming default
// connection has triggered it.
func (pi *Instance) executeJoin(ni *nodeInstance) error {
	ni.joinCount++

	required := len(ni.node.Incoming[domain.ConnectionDefault])
	if required == 0 {
		required = 1
	}
	if ni.joinCount < required {
		return nil
	}
	return pi.completeAndFollow(ni)
}

// completeAndFollow removes the node instance and follows its default
// outgoing connections, stopping early if the instance left the active state.
// Completing an iteration inside a for-each container routes into the join
// logic instead; completing an exclusive-group member cancels the rest of
// the group.
func (pi *Instance) completeAndFollow(ni *nodeInstance) error {
	if ni.owner != "" {
		if owner, exists := pi.nodes[ni.owner]; exists && owner.node.Kind == domain.KindForEach && ni.role == roleNormal {
			return pi.forEachIterationCompleted(owner, ni)
		}
	}

	if ni.groupID != "" {
		pi.cancelGroup(ni.groupID, ni.id)
		ni.groupID = ""
	}

	owner := ni.owner
	outgoing := ni.node.OutgoingDefault()
	pi.removeNodeInstance(ni)

	for _, conn := range outgoing {
		if pi.status != domain.InstanceStatusActive {
			return nil
		}
		if err := pi.triggerConnection(conn, owner); err != nil {
			return err
		}
	}
	return nil
}

func (pi *Instance) deliverSignal(ni *nodeInstance, signal domain.Signal) error {
	switch ni.node.Kind {
	case domain.KindEvent:
		if ni.node.VariableName != "" {
			if err := pi.setVariables(ni, domain.Variables{ni.node.VariableName: signal.Payload}); err != nil {
				return err
			}
		}
		return pi.completeAndFollow(ni)

	case domain.KindTimer:
		fired, ok := signal.Payload.(domain.TimerFired)
		if !ok || fired.TimerID != ni.timerID {
			return nil
		}
		if ni.node.TimerInterval > 0 && fired.Remaining > 0 {
			// Repeating timer: fan out without leaving the node, the
			// scheduler re-arms the job.
			owner := ni.owner
			for _, conn := range ni.node.OutgoingDefault() {
				if pi.status != domain.InstanceStatusActive {
					return nil
				}
				if err := pi.triggerConnection(conn, owner); err != nil {
					return err
				}
			}
			return nil
		}
		// The job fired for the last time; nothing left to cancel.
		ni.jobID = ""
		return pi.completeAndFollow(ni)
	}

	return nil
}

func (pi *Instance) scheduleTimer(ni *nodeInstance) error {
	pi.timerSeq++
	ni.timerID = pi.timerSeq

	node := ni.node
	expiration := domain.ExpireAt(time.Now().Add(node.TimerDelay))
	if node.TimerInterval > 0 {
		expiration = domain.ExpireEvery(time.Now().Add(node.TimerDelay), node.TimerInterval, node.TimerLimit)
	}

	jobID := domain.NewJobID(ni.timerID)
	description := domain.ProcessInstanceJobDescription{
		ID:                jobID,
		TriggerType:       timerTriggeredEvent,
		ProcessID:         pi.runtime.process.ID,
		ProcessVersion:    pi.runtime.process.Version,
		ProcessInstanceID: pi.id,
		Expiration:        expiration,
	}

	if _, err := pi.runtime.jobs.ScheduleProcessInstanceJob(description); err != nil {
		return err
	}

	ni.jobID = jobID
	pi.registerListener(timerTriggeredEvent, ni)
	return nil
}
