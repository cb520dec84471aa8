// Package workflow defines the declarative workflow shape the orchestrator
// validates and executes, and the structural/reference validation that
// guards against malformed DAGs before a run is ever created.
package workflow

// NodeType identifies the kind of a workflow node. Only Agent is executed
// by the core; the others are recognized so a producer document can declare
// them, but WorkflowValidator rejects any workflow containing one (see
// Validate).
type NodeType string

const (
	NodeAgent     NodeType = "agent"
	NodeCondition NodeType = "condition"
	NodeParallel  NodeType = "parallel"
	NodeLoop      NodeType = "loop"
)

// RetryPolicy configures per-node retry on transient failure.
type RetryPolicy struct {
	MaxAttempts int   // >= 1; 1 means no retry
	BackoffMS   int64 // >= 0, milliseconds
}

// Node is one vertex of a workflow DAG.
type Node struct {
	ID        string
	Type      NodeType
	AgentRef  string // reference into the AgentRegistry, required for Type == NodeAgent
	Name      string
	Inputs    map[string]any // property name -> literal or "{{template}}" string
	Retry     *RetryPolicy   // nil means no retry
}

// Edge is a directed arc between two node ids. Condition is parsed but
// never evaluated by the core (spec §9 third open question).
type Edge struct {
	From      string
	To        string
	Condition string
}

// Spec is a complete workflow definition as consumed by the core. The
// textual document parser that produces this shape is an external
// collaborator (spec §1); the core only ever sees this in-memory form.
type Spec struct {
	ID          string
	Name        string
	Description string
	Version     string
	OwnerUserID string
	Chain       string
	Token       string
	MaxBudget   int64 // atomic integer, > 0
	Nodes       []Node
	Edges       []Edge
	EntryNodeID string
	// Outputs, when non-empty, is a mapping of output-key to a template
	// string resolved against the final dataflow context; it overrides the
	// default "last node in topological order" output rule (spec §9).
	Outputs map[string]string
}

// NodeByID returns the node with the given id, or false if absent.
func (s *Spec) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
