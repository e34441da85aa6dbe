package domain

import (
	"testing"
)

func TestVersionedID(t *testing.T) {
	tests := []struct {
		name     string
		process  Process
		expected string
	}{
		{
			name:     "version with dots",
			process:  Process{ID: "orders", Version: "1.0.2"},
			expected: "orders_1_0_2",
		},
		{
			name:     "no version",
			process:  Process{ID: "orders"},
			expected: "orders",
		},
		{
			name:     "plain version",
			process:  Process{ID: "orders", Version: "7"},
			expected: "orders_7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.process.VersionedID(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNodeLookups(t *testing.T) {
	start := &Node{ID: 1, Kind: KindStart}
	task := &Node{ID: 2, Kind: KindTask}
	end := &Node{ID: 3, Kind: KindEnd}
	process := Process{ID: "p", Nodes: []*Node{start, task, end}}

	if process.NodeByID(2) != task {
		t.Error("Expected NodeByID to find the task node")
	}
	if process.NodeByID(99) != nil {
		t.Error("Expected NodeByID to return nil for unknown id")
	}

	starts := process.StartNodes()
	if len(starts) != 1 || starts[0] != start {
		t.Errorf("Expected exactly the start node, got %v", starts)
	}
}

func TestConnectionHelpers(t *testing.T) {
	from := &Node{ID: 1}
	to := &Node{ID: 2}
	conn := &Connection{From: from, To: to, FromType: ConnectionDefault, ToType: ConnectionDefault}
	from.Outgoing = map[string][]*Connection{ConnectionDefault: {conn}}
	from.Constraints = map[*Connection]*Constraint{conn: {Name: "fallback", Default: true}}

	if len(from.OutgoingDefault()) != 1 {
		t.Error("Expected one default outgoing connection")
	}
	if !from.IsDefault(conn) {
		t.Error("Expected connection to be the marked default")
	}
	if to.Constraint(conn) != nil {
		t.Error("Expected no constraint on a node without constraints")
	}
}
