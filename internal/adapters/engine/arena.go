package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/weft/internal/domain"
)

type nodeRole int

const (
	roleNormal nodeRole = iota
	roleForEachSplit
	roleForEachJoin
)

// nodeInstance is one entry of the instance's node arena. Ownership is
// tree-shaped: containers hold ordered child-id lists, children hold only the
// owner's id, so there is never a reference cycle between a container and its
// children.
type nodeInstance struct {
	id    string
	node  *domain.Node
	owner string
	role  nodeRole
	level int

	triggerTime time.Time

	// scope holds local variables for container node instances and for-each
	// iterations; nil means the instance root scope applies.
	scope domain.Variables

	// children is maintained for container-kind node instances only.
	children []string

	// remaining counts live for-each iterations.
	remaining int

	// joinCount tracks how many incoming connections have triggered a join.
	joinCount int

	groupID string

	jobID   string
	timerID int64
}

func (pi *Instance) addNodeInstance(node *domain.Node, ownerID string) *nodeInstance {
	ni := &nodeInstance{
		id:          uuid.NewString(),
		node:        node,
		owner:       ownerID,
		level:       pi.currentLevel,
		triggerTime: time.Now(),
	}

	pi.nodes[ni.id] = ni
	pi.attach(ni)
	return ni
}

func (pi *Instance) attach(ni *nodeInstance) {
	if ni.owner == "" {
		pi.rootChildren = append(pi.rootChildren, ni.id)
		return
	}
	if owner, exists := pi.nodes[ni.owner]; exists {
		owner.children = append(owner.children, ni.id)
	}
}

// removeNodeInstance detaches the node instance from its container and drops
// it together with any children, listener registrations, group memberships
// and pending timer jobs.
func (pi *Instance) removeNodeInstance(ni *nodeInstance) {
	for _, childID := range append([]string(nil), ni.children...) {
		if child, exists := pi.nodes[childID]; exists {
			pi.removeNodeInstance(child)
		}
	}

	pi.detach(ni)
	pi.deregisterListeners(ni.id)
	pi.leaveGroup(ni)

	if ni.jobID != "" {
		if err := pi.runtime.jobs.CancelJob(ni.jobID); err != nil {
			pi.runtime.logger.Warn("failed to cancel timer job",
				"instance_id", pi.id,
				"job_id", ni.jobID,
				"error", err)
		}
		ni.jobID = ""
	}

	delete(pi.nodes, ni.id)
}

func (pi *Instance) detach(ni *nodeInstance) {
	if ni.owner == "" {
		pi.rootChildren = removeID(pi.rootChildren, ni.id)
		return
	}
	if owner, exists := pi.nodes[ni.owner]; exists {
		owner.children = removeID(owner.children, ni.id)
	}
}

func (pi *Instance) registerListener(eventType string, ni *nodeInstance) {
	pi.listeners[eventType] = append(pi.listeners[eventType], ni.id)
}

func (pi *Instance) deregisterListeners(nodeInstanceID string) {
	for eventType, ids := range pi.listeners {
		filtered := removeID(ids, nodeInstanceID)
		if len(filtered) == 0 {
			delete(pi.listeners, eventType)
		} else {
			pi.listeners[eventType] = filtered
		}
	}
}

// visibleVars flattens the variable scopes from the instance root down to the
// node instance; inner scopes shadow outer ones.
func (pi *Instance) visibleVars(ni *nodeInstance) domain.Variables {
	var chain []*nodeInstance
	for cursor := ni; cursor != nil; {
		chain = append(chain, cursor)
		if cursor.owner == "" {
			break
		}
		cursor = pi.nodes[cursor.owner]
	}

	merged := make(domain.Variables, len(pi.vars))
	for k, v := range pi.vars {
		merged[k] = v
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].scope {
			merged[k] = v
		}
	}
	return merged
}

// resolveVariable walks the scope chain from the node instance up to the
// instance root.
func (pi *Instance) resolveVariable(ni *nodeInstance, name string) (interface{}, bool) {
	for cursor := ni; cursor != nil; {
		if cursor.scope != nil {
			if v, ok := cursor.scope[name]; ok {
				return v, true
			}
		}
		if cursor.owner == "" {
			break
		}
		cursor = pi.nodes[cursor.owner]
	}
	v, ok := pi.vars[name]
	return v, ok
}

// setVariables merges handler output into the nearest scope: the node's own
// scope when it has one, otherwise the instance root.
func (pi *Instance) setVariables(ni *nodeInstance, updates domain.Variables) error {
	if len(updates) == 0 {
		return nil
	}
	if ni != nil && ni.scope != nil {
		for k, v := range updates {
			ni.scope[k] = v
		}
		return nil
	}
	merged, err := domain.MergeVariables(pi.vars, updates)
	if err != nil {
		return err
	}
	pi.vars = merged
	return nil
}

func (pi *Instance) newGroup(members []*nodeInstance) string {
	groupID := uuid.NewString()
	ids := make([]string, 0, len(members))
	for _, member := range members {
		member.groupID = groupID
		ids = append(ids, member.id)
	}
	pi.groups[groupID] = ids
	return groupID
}

func (pi *Instance) leaveGroup(ni *nodeInstance) {
	if ni.groupID == "" {
		return
	}
	groupID := ni.groupID
	ni.groupID = ""
	pi.groups[groupID] = removeID(pi.groups[groupID], ni.id)
	if len(pi.groups[groupID]) == 0 {
		delete(pi.groups, groupID)
	}
}

// cancelGroup removes every member of an exclusive group except the one
// identified by keep.
func (pi *Instance) cancelGroup(groupID string, keep string) {
	members := append([]string(nil), pi.groups[groupID]...)
	delete(pi.groups, groupID)
	for _, id := range members {
		if id == keep {
			continue
		}
		if member, exists := pi.nodes[id]; exists {
			member.groupID = ""
			pi.removeNodeInstance(member)
		}
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
