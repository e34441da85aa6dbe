package domain

import (
	"time"
)

// ConnectionDefault is the connection type followed by normal sequence flow.
const ConnectionDefault = "default"

type NodeKind int

const (
	KindStart NodeKind = iota
	KindEnd
	KindTask
	KindSplitAnd
	KindSplitXor
	KindSplitOr
	KindSplitXand
	KindJoinAnd
	KindForEach
	KindEvent
	KindTimer
)

func (k NodeKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindTask:
		return "task"
	case KindSplitAnd:
		return "split-and"
	case KindSplitXor:
		return "split-xor"
	case KindSplitOr:
		return "split-or"
	case KindSplitXand:
		return "split-xand"
	case KindJoinAnd:
		return "join-and"
	case KindForEach:
		return "for-each"
	case KindEvent:
		return "event"
	case KindTimer:
		return "timer"
	}
	return "unknown"
}

type Variables map[string]interface{}

// TaskHandler executes the work of a task node. Returned variables are merged
// into the instance scope.
type TaskHandler func(vars Variables) (Variables, error)

// Constraint guards an outgoing connection of a gateway node. Constraints with
// lower Priority values are evaluated first. A constraint marked Default is
// only followed when nothing else matched.
type Constraint struct {
	Name     string
	Priority int
	Default  bool
	Eval     func(vars Variables) bool
}

type Connection struct {
	From     *Node
	To       *Node
	FromType string
	ToType   string
}

type Node struct {
	ID   int64
	Name string
	Kind NodeKind

	Outgoing map[string][]*Connection
	Incoming map[string][]*Connection

	// Constraints maps an outgoing connection to the constraint guarding it.
	Constraints map[*Connection]*Constraint

	// Hidden marks internal bookkeeping nodes inserted by rewrites such as
	// the for-each expansion; lifecycle notifications are suppressed for them.
	Hidden bool

	Handler TaskHandler

	// Event node fields.
	EventType string

	// Timer node fields.
	TimerDelay    time.Duration
	TimerInterval time.Duration
	TimerLimit    int

	// For-each node fields.
	Collection          string
	CollectionExpr      func(vars Variables) interface{}
	VariableName        string
	OutputVariableName  string
	OutputCollection    string
	CompletionCondition func(vars Variables) interface{}
	WaitForCompletion   bool
	Body                *Node

	// Terminate marks an end node that aborts all remaining node instances.
	Terminate bool
}

// OutgoingDefault returns the default-typed outgoing connections of the node.
func (n *Node) OutgoingDefault() []*Connection {
	if n.Outgoing == nil {
		return nil
	}
	return n.Outgoing[ConnectionDefault]
}

func (n *Node) Constraint(conn *Connection) *Constraint {
	if n.Constraints == nil {
		return nil
	}
	return n.Constraints[conn]
}

// IsDefault reports whether the connection is the explicitly marked default
// outgoing connection of the node.
func (n *Node) IsDefault(conn *Connection) bool {
	c := n.Constraint(conn)
	return c != nil && c.Default
}

type Process struct {
	ID      string
	Version string
	Name    string
	Nodes   []*Node
}

func (p *Process) NodeByID(id int64) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (p *Process) StartNodes() []*Node {
	var starts []*Node
	for _, n := range p.Nodes {
		if n.Kind == KindStart {
			starts = append(starts, n)
		}
	}
	return starts
}

// VersionedID returns the process id suffixed with its version, used as the
// owner definition id of persisted jobs.
func (p *Process) VersionedID() string {
	if p.Version == "" {
		return p.ID
	}
	return p.ID + "_" + sanitizeVersion(p.Version)
}

func sanitizeVersion(version string) string {
	out := make([]byte, len(version))
	for i := 0; i < len(version); i++ {
		if version[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = version[i]
		}
	}
	return string(out)
}
