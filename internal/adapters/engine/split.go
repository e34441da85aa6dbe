package engine

import (
	"math"

	"github.com/eleven-am/weft/internal/domain"
)

func (pi *Instance) executeSplit(ni *nodeInstance) error {
	switch ni.node.Kind {
	case domain.KindSplitAnd:
		return pi.completeAndFollow(ni)
	case domain.KindSplitXor:
		return pi.executeXorSplit(ni)
	case domain.KindSplitOr:
		return pi.executeOrSplit(ni)
	case domain.KindSplitXand:
		return pi.executeXandSplit(ni)
	}
	return domain.NewConfigurationError(pi.runtime.process.ID, ni.node.Name, "illegal split kind")
}

// executeXorSplit evaluates the non-default constraints in ascending priority
// order and follows the first match; a missing match falls back to the
// default connection. No match and no default is a configuration error.
func (pi *Instance) executeXorSplit(ni *nodeInstance) error {
	node := ni.node
	vars := pi.visibleVars(ni)

	priority := math.MaxInt
	var selected *domain.Connection
	for _, conn := range node.OutgoingDefault() {
		constraint := node.Constraint(conn)
		if constraint == nil || constraint.Default || constraint.Priority >= priority {
			continue
		}
		if constraint.Eval != nil && constraint.Eval(vars) {
			selected = conn
			priority = constraint.Priority
		}
	}

	owner := ni.owner
	pi.removeNodeInstance(ni)

	if selected == nil {
		for _, conn := range node.OutgoingDefault() {
			if node.IsDefault(conn) {
				selected = conn
				break
			}
		}
	}
	if selected == nil {
		return domain.NewConfigurationError(pi.runtime.process.ID, node.Name,
			"XOR split could not find at least one valid outgoing connection")
	}

	// A connection that reaches back to this split continues a loop; nodes
	// triggered by the next iteration record a deeper level. Leaving the
	// loop resets it.
	if pi.hasLoop(selected.To, node) {
		pi.currentLevel++
	} else {
		pi.currentLevel = 1
	}

	return pi.triggerConnection(selected, owner)
}

// executeOrSplit repeatedly picks the lowest-priority remaining non-default
// constraint, follows it when it evaluates true, and keeps going until the
// candidate pool is drained. When nothing matched, the default connection is
// followed; no match and no default is a configuration error.
func (pi *Instance) executeOrSplit(ni *nodeInstance) error {
	node := ni.node
	vars := pi.visibleVars(ni)
	owner := ni.owner

	pi.removeNodeInstance(ni)

	outgoing := node.OutgoingDefault()
	remaining := append([]*domain.Connection(nil), outgoing...)

	found := false
	var followed []*nodeInstance
	for len(remaining) > 0 {
		priority := math.MaxInt
		selectedIdx := -1
		var selectedConstraint *domain.Constraint
		for i, conn := range remaining {
			constraint := node.Constraint(conn)
			if constraint != nil && !constraint.Default && constraint.Priority < priority {
				priority = constraint.Priority
				selectedIdx = i
				selectedConstraint = constraint
			}
		}
		if selectedConstraint == nil {
			break
		}
		conn := remaining[selectedIdx]
		if selectedConstraint.Eval != nil && selectedConstraint.Eval(vars) {
			followed = append(followed, pi.followNode(conn.To, owner))
			found = true
		}
		remaining = append(remaining[:selectedIdx], remaining[selectedIdx+1:]...)
	}

	for _, target := range followed {
		// Stop if this process instance has been aborted or completed.
		if pi.status != domain.InstanceStatusActive {
			return nil
		}
		if err := pi.executeNode(target); err != nil {
			return err
		}
	}

	if !found {
		for _, conn := range outgoing {
			constraint := node.Constraint(conn)
			if (constraint != nil && constraint.Default) || node.IsDefault(conn) {
				if err := pi.triggerConnection(conn, owner); err != nil {
					return err
				}
				found = true
				break
			}
		}
	}
	if !found {
		return domain.NewConfigurationError(pi.runtime.process.ID, node.Name,
			"OR split could not find at least one valid outgoing connection")
	}
	return nil
}

// executeXandSplit registers all spawned node instances as one exclusive
// group in the containing context, then triggers each of them, surrounding
// every trigger with node-left notifications unless the split is hidden.
func (pi *Instance) executeXandSplit(ni *nodeInstance) error {
	node := ni.node
	owner := ni.owner

	pi.removeNodeInstance(ni)

	connections := node.OutgoingDefault()
	if len(connections) == 0 {
		return nil
	}

	members := make([]*nodeInstance, 0, len(connections))
	for _, conn := range connections {
		members = append(members, pi.followNode(conn.To, owner))
	}
	pi.newGroup(members)

	for _, member := range members {
		if pi.status != domain.InstanceStatusActive {
			return nil
		}
		if !node.Hidden {
			pi.runtime.listener.BeforeNodeLeft(pi.runtime.process.ID, pi.id, node)
		}
		if err := pi.executeNode(member); err != nil {
			return err
		}
		if !node.Hidden {
			pi.runtime.listener.AfterNodeLeft(pi.runtime.process.ID, pi.id, node)
		}
	}
	return nil
}

// hasLoop reports whether lookFor is reachable from startAt over
// default-typed connections. Used by XOR splits to distinguish loop
// continuation from fresh iteration.
func (pi *Instance) hasLoop(startAt, lookFor *domain.Node) bool {
	visited := make(map[int64]struct{})
	return pi.checkNodes(startAt, lookFor, visited)
}

func (pi *Instance) checkNodes(current, lookFor *domain.Node, visited map[int64]struct{}) bool {
	if current == nil {
		return false
	}
	if current.ID == lookFor.ID {
		return true
	}
	for _, conn := range current.OutgoingDefault() {
		next := conn.To
		if next == nil {
			continue
		}
		if _, seen := visited[next.ID]; seen {
			continue
		}
		visited[next.ID] = struct{}{}
		if next.ID == lookFor.ID {
			return true
		}
		if pi.checkNodes(next, lookFor, visited) {
			return true
		}
	}
	return false
}
